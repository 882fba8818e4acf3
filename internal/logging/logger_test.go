package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.log")

	l := &Logger{enabled: true}
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&ConnectionLog{WorkerPID: 42, FD: 7, Listener: "0.0.0.0:8080", FinalState: "closed"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"worker_pid":42`) {
		t.Fatalf("expected worker_pid field in log line, got %s", data)
	}
	if !strings.Contains(string(data), `"final_state":"closed"`) {
		t.Fatalf("expected final_state field in log line, got %s", data)
	}
}

func TestSetLevelFromStringUnknownIsNoop(t *testing.T) {
	SetLevelFromString("info")
	before := logLevel.Level()
	SetLevelFromString("not-a-level")
	if logLevel.Level() != before {
		t.Fatalf("expected unknown level string to leave level unchanged")
	}
}
