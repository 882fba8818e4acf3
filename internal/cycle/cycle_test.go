package cycle

import (
	"path/filepath"
	"testing"

	"github.com/oriys/quasar/internal/config"
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ErrorLog = filepath.Join(dir, "error.log")
	cfg.Listen = []config.Listen{{Address: "127.0.0.1:0", Backlog: 16}}
	return cfg
}

func TestNewBindsFreshListenerWhenNoPrior(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	c, stale, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	if len(stale) != 0 {
		t.Fatalf("expected no stale listeners, got %d", len(stale))
	}
	if len(c.Listeners.All()) != 1 {
		t.Fatalf("expected 1 bound listener, got %d", len(c.Listeners.All()))
	}
	if c.Generation == "" {
		t.Fatalf("expected a non-empty generation id")
	}
}

func TestNewReusesPriorListenerOnReconfigure(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	first, _, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	defer first.Destroy()

	firstAddr := first.Listeners.All()[0].Listener.Addr().String()
	cfg2 := testConfig(t, dir)
	cfg2.Listen = []config.Listen{{Address: firstAddr, Backlog: 16}}

	second, stale, err := New(cfg2, first.Listeners.All())
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	defer second.Listeners.CloseAll()

	if len(stale) != 0 {
		t.Fatalf("expected matched listener to not be stale, got %d", len(stale))
	}
	if second.Listeners.All()[0].FD != first.Listeners.All()[0].FD {
		t.Fatalf("expected fd reuse across reconfigure: %d vs %d",
			second.Listeners.All()[0].FD, first.Listeners.All()[0].FD)
	}
}

func TestDestroyClosesArenaAndListeners(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	c, _, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Destroy()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected alloc on destroyed arena to panic")
		}
	}()
	c.Arena.Alloc(8)
}
