// Package readiness defines the capability set every backend
// implements: add/remove
// interest in an fd's read or write direction, drain the ready set for
// one iteration, and report backend behavior flags. The worker loop
// holds exactly one Backend value selected at startup, taking the place
// of nginx's ngx_event_actions global and its static module-descriptor
// list.
package readiness

import "github.com/oriys/quasar/internal/conntable"

// Flags describes a backend's behavior, read by the worker loop to
// decide things like whether accept() should be called in a loop until
// EAGAIN (greedy) or once per notification.
type Flags struct {
	EdgeTriggered bool
	GreedyAccept  bool
}

// ReadyEvent is one fd reported ready by Process. Tag identifies which
// connection/event cell registered the interest; Readable/Writable
// report which directions fired (edge-triggered backends may report
// both in one event).
type ReadyEvent struct {
	Tag      conntable.Tag
	Readable bool
	Writable bool
}

// Backend is the capability set a readiness engine implementation
// provides. All methods except Process must be safe to call from within
// a Process-driven callback. The worker loop itself calls
// AddEvent/DelEvent between Process calls, registering listener interest
// before one and deregistering it after.
type Backend interface {
	Init() error
	Done() error
	Flags() Flags

	// AddEvent registers interest in fd's read (write=false) or write
	// (write=true) direction, tagged for later recovery from Process.
	AddEvent(tag conntable.Tag, fd int, write bool) error
	// DelEvent removes interest in one direction. It is a no-op if that
	// direction was not registered.
	DelEvent(tag conntable.Tag, fd int, write bool) error

	// Process waits up to timeoutMS milliseconds (0 = do not block, -1 =
	// block indefinitely) for ready fds and returns them. A timeoutMS of
	// 0 still performs one non-blocking poll rather than skipping the
	// call outright; "don't wait at all" is a decision the event loop
	// makes by choosing timeoutMS, not something the backend special-cases.
	Process(timeoutMS int) ([]ReadyEvent, error)
}

// NewDefault returns the platform's canonical backend (epoll on Linux).
// A worker built for a different OS target would substitute a
// different Backend here; the substitution is left to the
// platform build tag rather than runtime selection.
func NewDefault() (Backend, error) {
	return NewEpoll(), nil
}
