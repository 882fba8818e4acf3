package master

import (
	"path/filepath"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quasar.pid")
	if err := writePIDFile(path, 4242); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != 4242 {
		t.Fatalf("got %d, want 4242", pid)
	}
	if err := removePIDFile(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := readPIDFile(path); err == nil {
		t.Fatalf("expected error reading removed pidfile")
	}
}

func TestNewbinPath(t *testing.T) {
	if got := newbinPath("/var/run/quasar.pid"); got != "/var/run/quasar.pid.newbin" {
		t.Fatalf("got %q", got)
	}
	if got := newbinPath(""); got != "" {
		t.Fatalf("expected empty path to stay empty, got %q", got)
	}
}
