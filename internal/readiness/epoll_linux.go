//go:build linux

package readiness

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/oriys/quasar/internal/conntable"
)

// Epoll is the canonical readiness backend: an
// edge-triggered multiplexer. Per-fd state is collapsed into a single
// kernel interest mask; adding a second direction on an already-watched
// fd issues EPOLL_CTL_MOD instead of ADD, and removing one direction
// while the other remains active does the same, preserving the opposite
// bit the event-dispatch loop expects.
type Epoll struct {
	fd int

	mu    sync.Mutex
	state map[int]*fdState // OS fd -> current interest

	eventsBuf []unix.EpollEvent
}

type fdState struct {
	readActive  bool
	writeActive bool
	readTag     conntable.Tag
	writeTag    conntable.Tag
}

// NewEpoll constructs an unopened Epoll backend; call Init before use.
func NewEpoll() *Epoll {
	return &Epoll{fd: -1, state: make(map[int]*fdState), eventsBuf: make([]unix.EpollEvent, 512)}
}

func (e *Epoll) Flags() Flags {
	return Flags{EdgeTriggered: true, GreedyAccept: true}
}

func (e *Epoll) Init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	e.fd = fd
	return nil
}

func (e *Epoll) Done() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}

func packTag(t conntable.Tag) (fd32, pad32 int32) {
	return int32(t.Index), int32(t.Generation)
}

func unpackTag(fd32, pad32 int32) conntable.Tag {
	return conntable.Tag{Index: uint32(fd32), Generation: uint32(pad32)}
}

func (e *Epoll) AddEvent(tag conntable.Tag, fd int, write bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state[fd]
	op := unix.EPOLL_CTL_MOD
	if !ok {
		st = &fdState{}
		e.state[fd] = st
		op = unix.EPOLL_CTL_ADD
	}
	if write {
		st.writeActive = true
		st.writeTag = tag
	} else {
		st.readActive = true
		st.readTag = tag
	}
	return e.applyLocked(fd, st, op)
}

func (e *Epoll) DelEvent(tag conntable.Tag, fd int, write bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state[fd]
	if !ok {
		return nil
	}
	if write {
		st.writeActive = false
	} else {
		st.readActive = false
	}
	if !st.readActive && !st.writeActive {
		delete(e.state, fd)
		return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	return e.applyLocked(fd, st, unix.EPOLL_CTL_MOD)
}

func (e *Epoll) applyLocked(fd int, st *fdState, op int) error {
	var mask uint32 = unix.EPOLLET
	// the cookie we hand back on wake must let Process recover both
	// directions' tags, so pack the read tag's index/generation when
	// read is active, else the write tag's — Process disambiguates
	// direction via the EPOLLIN/EPOLLOUT bits independent of which tag
	// was packed, since both tags share the same connection slot index.
	tag := st.readTag
	if !st.readActive && st.writeActive {
		tag = st.writeTag
	}
	if st.readActive {
		mask |= unix.EPOLLIN
	}
	if st.writeActive {
		mask |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: mask}
	ev.Fd, ev.Pad = packTag(tag)
	return unix.EpollCtl(e.fd, op, fd, &ev)
}

func (e *Epoll) Process(timeoutMS int) ([]ReadyEvent, error) {
	n, err := unix.EpollWait(e.fd, e.eventsBuf, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll_wait: %w", err)
	}
	out := make([]ReadyEvent, 0, n)
	for i := 0; i < n; i++ {
		raw := e.eventsBuf[i]
		tag := unpackTag(raw.Fd, raw.Pad)
		re := ReadyEvent{Tag: tag}
		if raw.Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			re.Readable = true
		}
		if raw.Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			re.Writable = true
		}
		out = append(out, re)
	}
	return out, nil
}
