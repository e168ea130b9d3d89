// Package webui serves a live view of run events over a websocket.
package webui

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/patchsmith/patchsmith/pkg/events"
	"github.com/patchsmith/patchsmith/pkg/logging"
)

// SafeConn serializes writes to a websocket connection. gorilla/websocket
// permits only one concurrent writer per connection.
type SafeConn struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

// WriteJSON writes v as a JSON message.
func (c *SafeConn) WriteJSON(v interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteJSON(v)
}

// Ping sends a control ping frame.
func (c *SafeConn) Ping() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Close closes the underlying connection.
func (c *SafeConn) Close() error {
	return c.conn.Close()
}

// Server streams run events to browser clients.
type Server struct {
	bus      *events.Bus
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mutex  sync.Mutex
	nextID int
}

// NewServer creates a Server publishing events from bus on addr.
func NewServer(bus *events.Bus, addr string) *Server {
	return &Server{
		bus:    bus,
		addr:   addr,
		logger: logging.GetLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start serves until the listener fails. It blocks the calling goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	server := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.Logf("web ui listening on %s", s.addr)
	return server.ListenAndServe()
}

func (s *Server) subscriberName() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextID++
	return fmt.Sprintf("webui-%d", s.nextID)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.LogError(fmt.Errorf("websocket upgrade failed: %w", err))
		return
	}
	safe := &SafeConn{conn: conn}
	name := s.subscriberName()
	ch := s.bus.Subscribe(name)
	defer func() {
		s.bus.Unsubscribe(name)
		safe.Close()
	}()

	// Drain client frames so close and pong frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := safe.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := safe.Ping(); err != nil {
				return
			}
		}
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>patchsmith</title>
<style>
body { font-family: monospace; background: #1e1e1e; color: #d4d4d4; margin: 2em; }
.event { padding: 4px 8px; border-left: 3px solid #569cd6; margin-bottom: 4px; }
.event.run_failed { border-color: #f44747; }
.event.patch_applied { border-color: #6a9955; }
</style>
</head>
<body>
<h2>patchsmith run events</h2>
<div id="events"></div>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (msg) => {
  const e = JSON.parse(msg.data);
  const div = document.createElement("div");
  div.className = "event " + e.type;
  div.textContent = e.timestamp + " " + e.type + " " + JSON.stringify(e.data);
  document.getElementById("events").prepend(div);
};
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}
