package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ConnectionLog is one structured record per accepted connection's
// lifetime, the per-connection analogue of a per-invocation
// RequestLog: fd, owning listener, worker pid, accept-to-close duration,
// bytes moved, and how the connection ended.
type ConnectionLog struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkerPID  int       `json:"worker_pid"`
	FD         int       `json:"fd"`
	Listener   string    `json:"listener"`
	DurationMs int64     `json:"duration_ms"`
	BytesRead  int64     `json:"bytes_read"`
	BytesWrite int64     `json:"bytes_written"`
	FinalState string    `json:"final_state"` // "closed", "timeout", "reset", "error"
	Error      string    `json:"error,omitempty"`
}

// Logger writes ConnectionLog entries to an optional file (JSON lines)
// and/or the console (human-readable), a dual-sink
// request logger.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the process-wide connection logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file, reopening it in place the way a
// "reopen files" — a worker calls SetOutput again with the same path
// after a REOPEN signal to pick up a rotated log.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes one connection log entry.
func (l *Logger) Log(entry *ConnectionLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "closed"
		if entry.FinalState != "" {
			status = entry.FinalState
		}
		fmt.Printf("[conn] worker=%d fd=%d listener=%s %s %dms rx=%d tx=%d\n",
			entry.WorkerPID, entry.FD, entry.Listener, status, entry.DurationMs,
			entry.BytesRead, entry.BytesWrite)
		if entry.Error != "" {
			fmt.Printf("[conn]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
