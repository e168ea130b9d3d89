// Package events provides the fan-out bus carrying run lifecycle events to
// the CLI and the web UI.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Event is one run lifecycle notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Event types published by the builder.
const (
	TypeRunStarted     = "run_started"
	TypeModelCall      = "model_call"
	TypeModeFallback   = "mode_fallback"
	TypeToolExecution  = "tool_execution"
	TypePatchApplied   = "patch_applied"
	TypeContextRequest = "context_request"
	TypeRunCompleted   = "run_completed"
	TypeRunFailed      = "run_failed"
)

// Bus distributes events to named subscribers. Slow subscribers are skipped
// rather than blocking a run.
type Bus struct {
	subscribers map[string]chan Event
	mutex       sync.RWMutex
	nextID      int64
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a named subscriber and returns its channel.
func (b *Bus) Subscribe(name string) <-chan Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ch := make(chan Event, 100)
	b.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(name string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if ch, exists := b.subscribers[name]; exists {
		delete(b.subscribers, name)
		close(ch)
	}
}

// Publish broadcasts an event to every subscriber without holding the lock
// during delivery.
func (b *Bus) Publish(eventType string, data any) {
	b.mutex.Lock()
	b.nextID++
	event := Event{
		ID:        fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), b.nextID),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	targets := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mutex.Unlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// Full buffer means a stalled subscriber; dropping beats blocking the run.
		}
	}
}
