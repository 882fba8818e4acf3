//go:build linux

package readiness

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/oriys/quasar/internal/conntable"
)

func TestEpollReportsWritableSocketAndStaleDelDiscards(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ep := NewEpoll()
	if err := ep.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer ep.Done()

	tag := conntable.Tag{Index: 3, Generation: 7}
	if err := ep.AddEvent(tag, fds[0], true); err != nil {
		t.Fatalf("add write event: %v", err)
	}

	events, err := ep.Process(1000)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one ready event, got %d", len(events))
	}
	if !events[0].Writable {
		t.Fatalf("expected writable event, got %+v", events[0])
	}
	if events[0].Tag != tag {
		t.Fatalf("expected tag roundtrip %+v, got %+v", tag, events[0].Tag)
	}

	if err := ep.DelEvent(tag, fds[0], true); err != nil {
		t.Fatalf("del event: %v", err)
	}
	// after deletion the fd is no longer registered at all; a zero
	// timeout poll must report nothing.
	events, err = ep.Process(0)
	if err != nil {
		t.Fatalf("process after del: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after del, got %d", len(events))
	}
}

func TestEpollAddThenAddOtherDirectionPreservesFirst(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ep := NewEpoll()
	if err := ep.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer ep.Done()

	tag := conntable.Tag{Index: 1, Generation: 1}
	if err := ep.AddEvent(tag, fds[0], true); err != nil { // write side always ready on a fresh socketpair
		t.Fatalf("add write: %v", err)
	}
	if err := ep.AddEvent(tag, fds[0], false); err != nil { // now add read interest too (MOD path)
		t.Fatalf("add read: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events, err := ep.Process(1000)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected a single fd to report both directions, got %d events", len(events))
	}
	if !events[0].Readable || !events[0].Writable {
		t.Fatalf("expected both directions active, got %+v", events[0])
	}
}
