package signal

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestTakeClearsFlagAfterRead(t *testing.T) {
	var f Flags
	f.SetQuit()
	if !f.TakeQuit() {
		t.Fatalf("expected quit to be set")
	}
	if f.TakeQuit() {
		t.Fatalf("expected quit to be cleared after Take")
	}
}

func TestPeekDoesNotClear(t *testing.T) {
	var f Flags
	f.SetTerminate()
	if !f.PeekTerminate() {
		t.Fatalf("expected terminate set")
	}
	if !f.PeekTerminate() {
		t.Fatalf("peek must not clear the flag")
	}
	if !f.TakeTerminate() {
		t.Fatalf("take should still observe it")
	}
}

func TestListenerMapsSignalToFlag(t *testing.T) {
	var f Flags
	l := Listen(&f, map[os.Signal]Action{
		syscall.SIGUSR1: func(f *Flags) { f.reopen.Store(true) },
	})
	defer l.Stop()

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("find self: %v", err)
	}
	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("signal self: %v", err)
	}

	select {
	case <-l.Wake:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for wake")
	}

	if !f.TakeReopen() {
		t.Fatalf("expected reopen flag to be set by SIGUSR1")
	}
}
