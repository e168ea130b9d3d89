// Package logging provides the rotating workspace log every component
// writes to.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes to the rotating workspace log file. Console output is the
// CLI's business; everything here lands in the file only.
type Logger struct {
	logger        *log.Logger
	jsonMode      bool
	correlationID string
}

var (
	globalLogger *Logger
	once         sync.Once
)

// GetLogger returns the singleton logger, initializing the rotating file
// handler on first use.
func GetLogger() *Logger {
	once.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   ".patchsmith/patchsmith.log",
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = &Logger{
			logger: log.New(logFile, "", log.LstdFlags),
		}
		if os.Getenv("PATCHSMITH_JSON_LOGS") == "1" {
			globalLogger.jsonMode = true
		}
		globalLogger.correlationID = os.Getenv("PATCHSMITH_CORRELATION_ID")
	})
	return globalLogger
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	if logFile, ok := l.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}

// Log writes a message to the log file.
func (l *Logger) Log(message string) {
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{"level": "info", "msg": message, "cid": l.correlationID})
		return
	}
	l.logger.Print(message)
}

// Logf writes a formatted message to the log file.
func (l *Logger) Logf(format string, v ...interface{}) {
	if l.jsonMode {
		l.Log(fmt.Sprintf(format, v...))
		return
	}
	l.logger.Printf(format, v...)
}

// LogError records an error.
func (l *Logger) LogError(err error) {
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{"level": "error", "error": err.Error(), "cid": l.correlationID})
		return
	}
	l.logger.Printf("Error: %s", err)
}

// LogProcessStep records the current step of a run.
func (l *Logger) LogProcessStep(step string) {
	l.logger.Printf("Process Step: %s", step)
}
