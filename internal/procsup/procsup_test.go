package procsup

import (
	"os"
	"testing"
	"time"
)

// TestHelperProcess is not a real test: it is re-exec'd as a child
// process by TestSpawnRoundTripsChannelMessage, following the standard
// library's own os/exec test pattern (see go/src/os/exec/exec_test.go).
// It reads its inherited control channel (fd 3) and echoes back a reply
// with PID set to its own pid, proving the worker side of Spawn can
// recover and use the channel handed to it across exec.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("QUASAR_PROCSUP_HELPER") != "1" {
		t.Skip("not running as helper process")
	}
	ch := FromFD(3, "channel[1]")
	msg, err := ch.Recv()
	if err != nil {
		os.Exit(2)
	}
	_ = ch.Send(Message{Command: msg.Command, PID: int32(os.Getpid()), Slot: msg.Slot, FD: -1})
	os.Exit(0)
}

func TestSpawnRoundTripsChannelMessage(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	tbl := New()
	spec := Spec{
		Path: self,
		Args: []string{"-test.run=TestHelperProcess", "-test.v"},
		Env:  append(os.Environ(), "QUASAR_PROCSUP_HELPER=1"),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	idx, master, pid, err := tbl.Spawn(spec, "worker-0", Respawn)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected positive pid, got %d", pid)
	}
	if master.Fd() <= 2 {
		t.Fatalf("invariant violated: channel fd %d collides with stdio", master.Fd())
	}

	if err := master.Send(Message{Command: CmdOpen, PID: int32(pid), Slot: int32(idx), FD: -1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	replyCh := make(chan Message, 1)
	go func() {
		if m, err := master.Recv(); err == nil {
			replyCh <- m
		}
	}()

	select {
	case m := <-replyCh:
		if int(m.PID) != pid {
			t.Fatalf("expected reply pid %d, got %d", pid, m.PID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for helper reply")
	}

	select {
	case ex := <-tbl.Exits():
		if ex.Slot != idx {
			t.Fatalf("expected exit for slot %d, got %d", idx, ex.Slot)
		}
		if ex.Code != 0 {
			t.Fatalf("expected clean exit, got code %d", ex.Code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for child exit")
	}
}

func TestAllocReusesReleasedSlot(t *testing.T) {
	tbl := New()
	idx, _ := tbl.Alloc()
	tbl.Release(idx)
	idx2, _ := tbl.Alloc()
	if idx2 != idx {
		t.Fatalf("expected released slot %d to be reused, got %d", idx, idx2)
	}
}

func TestLiveFalseWhenNoSlots(t *testing.T) {
	tbl := New()
	if tbl.Live() {
		t.Fatalf("expected empty table to report no live children")
	}
}
