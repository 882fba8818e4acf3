// Package worker implements the per-process event loop a spawned child
// runs once attached to its inherited listener set and control channel:
// accept arbitration, the readiness-driven dispatch loop, the timer
// queue, and the deferred-events queue that lets synchronous accepts
// run to completion before any other ready fd is serviced in the same
// pass.
package worker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oriys/quasar/internal/acceptlock"
	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/conntable"
	"github.com/oriys/quasar/internal/listener"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/procsup"
	"github.com/oriys/quasar/internal/proctitle"
	"github.com/oriys/quasar/internal/readiness"
	"github.com/oriys/quasar/internal/signal"
	"github.com/oriys/quasar/internal/timerqueue"
)

// maxWaitMS bounds how long a single Process call may block when no
// timer is pending, so the loop still wakes periodically to notice a
// quit/terminate flag set from the channel reader goroutine.
const maxWaitMS = 1000

// Worker is one spawned child's view of the system: its slice of the
// cycle's listeners, its own fixed-size connection table (sized from
// WorkerConnections) and timer queue (neither shared with any other
// process), and the channel back to the master.
type Worker struct {
	cfg       *config.Config
	listeners []*listener.Listening
	conns     *conntable.Table
	timers    *timerqueue.Queue
	backend   readiness.Backend
	lock      *acceptlock.Lock
	channel   *procsup.Channel
	metrics   *metrics.Registry
	flags     *signal.Flags
	sigs      *signal.Listener

	listenerConns    []*conntable.Connection
	acceptRegistered bool
	deferred         []conntable.Tag
	quitting         bool
}

// New builds a Worker attached to listeners, with a connection table
// sized per cfg.WorkerConnections and an empty timer queue, ready to accept on
// whichever listeners it wins the shared lock for.
func New(cfg *config.Config, channel *procsup.Channel, listeners []*listener.Listening, lockPath string) (*Worker, error) {
	backend, err := readiness.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("worker: init readiness backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("worker: readiness init: %w", err)
	}

	lock, err := acceptlock.Open(lockPath)
	if err != nil {
		backend.Done()
		return nil, err
	}

	w := &Worker{
		cfg:       cfg,
		listeners: listeners,
		conns:     conntable.New(cfg.WorkerConnections),
		timers:    timerqueue.New(),
		backend:   backend,
		lock:      lock,
		channel:   channel,
		metrics:   metrics.New(os.Getpid()),
		flags:     &signal.Flags{},
	}

	w.listenerConns = make([]*conntable.Connection, len(listeners))
	for i, l := range listeners {
		c, ok := w.conns.GetConnection(l.FD)
		if !ok {
			backend.Done()
			lock.Close()
			return nil, fmt.Errorf("worker: connection table too small for %d listeners", len(listeners))
		}
		c.Listener = l
		c.Read.Accept = true
		w.listenerConns[i] = c
	}

	return w, nil
}

// MetricsHandler exposes this worker's Prometheus registry for an
// optional per-process /metrics HTTP server.
func (w *Worker) MetricsHandler() http.Handler { return w.metrics.Handler() }

// Start installs the worker's own OS signal mapping (QUIT/TERM/USR1
// reach a worker directly since the master signals the whole process
// group) and a goroutine draining channel messages
// from the master.
func (w *Worker) Start() {
	w.sigs = installWorkerSignals(w.flags)
	go w.channelLoop()
}

// Run drives the readiness loop until a quit or terminate flag is
// observed and every connection has drained (for quit) or immediately
// (for terminate), the distinction between graceful
// and fast shutdown as seen from the worker side.
func (w *Worker) Run(ctx context.Context) error {
	defer w.lock.Close()
	defer w.backend.Done()

	for {
		if w.flags.TakeTerminate() {
			logging.Op().Info("worker fast shutdown")
			return nil
		}
		if w.flags.TakeQuit() {
			w.quitting = true
			proctitle.Set("quasar: worker process is shutting down")
			logging.Op().Info("worker graceful shutdown requested")
		}
		// The listener connections claimed in New stay bound for the
		// worker's whole life, so "drained" means only they remain.
		if w.quitting && w.conns.Free() == w.conns.Capacity()-len(w.listenerConns) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.processEvents(); err != nil {
			return err
		}
	}
}

// processEvents runs one pass of the event loop's algorithm: compute the
// wait budget from the timer queue, try the accept lock, wait on the
// readiness backend, dispatch ready events (synchronous accepts
// immediately, everything else onto the deferred queue), release the
// lock, expire timers, then drain the deferred queue.
func (w *Worker) processEvents() error {
	waitMS := computeWaitMS(w.timers.MinExpiryMS(), nowMS(), w.quitting)

	heldLock := w.tryAcquireAccept()

	events, err := w.backend.Process(waitMS)
	if err != nil {
		return fmt.Errorf("worker: readiness process: %w", err)
	}

	now := nowMS()
	w.deferred = w.deferred[:0]
	for _, ev := range events {
		c, cell, ok := w.conns.Resolve(ev.Tag, ev.Writable && !ev.Readable)
		if !ok {
			w.metrics.IncStaleDiscarded()
			continue
		}
		w.metrics.IncEventsProcessed()
		if cell.Accept {
			w.acceptOne(c)
			continue
		}
		w.deferred = append(w.deferred, ev.Tag)
	}

	if heldLock {
		w.releaseAccept()
	}

	w.timers.Expire(now)
	w.metrics.SetTimerQueueDepth(w.timers.Len())
	w.metrics.SetConnectionsActive(w.conns.Capacity() - w.conns.Free())

	w.drainDeferred()
	return nil
}

// tryAcquireAccept implements the overload-shedding rule: a
// worker with fewer free connection slots than it has listeners skips
// the attempt entirely rather than accepting connections it has no
// table capacity left for, and deregisters its listener interest if it
// currently holds the lock from a prior iteration.
func (w *Worker) tryAcquireAccept() bool {
	if !w.cfg.AcceptMutex || w.quitting {
		w.releaseAccept()
		return false
	}
	if w.conns.Free() < len(w.listeners) {
		w.metrics.IncAcceptDisabled()
		w.releaseAccept()
		return false
	}
	held, err := w.lock.TryLock()
	if err != nil {
		logging.Op().Warn("accept lock error", "error", err)
		return false
	}
	w.metrics.SetAcceptMutexHeld(held)
	if held && !w.acceptRegistered {
		w.registerListeners()
	}
	if !held && w.acceptRegistered {
		w.deregisterListeners()
	}
	return held
}

func (w *Worker) releaseAccept() {
	if w.acceptRegistered {
		w.deregisterListeners()
	}
	if w.lock.Held() {
		_ = w.lock.Unlock()
		w.metrics.SetAcceptMutexHeld(false)
	}
}

func (w *Worker) registerListeners() {
	for i, c := range w.listenerConns {
		if err := w.backend.AddEvent(c.Read.Tag(), w.listeners[i].FD, false); err != nil {
			logging.Op().Warn("register listener failed", "fd", w.listeners[i].FD, "error", err)
		}
	}
	w.acceptRegistered = true
}

func (w *Worker) deregisterListeners() {
	for i, c := range w.listenerConns {
		_ = w.backend.DelEvent(c.Read.Tag(), w.listeners[i].FD, false)
	}
	w.acceptRegistered = false
}

// acceptOne drains every pending connection on c's listener in a loop
// until EAGAIN, the "drain the listen
// backlog before returning to Process" rule for an edge-triggered,
// greedy-accept backend. Accepted connections are not bound into the
// table and get no read/write interest: no request protocol is
// implemented here, so each one is counted, logged and immediately
// closed.
func (w *Worker) acceptOne(c *conntable.Connection) {
	ln, ok := c.Listener.(*listener.Listening)
	if !ok || ln.Listener == nil {
		return
	}
	first := true
	for {
		dl, canDeadline := ln.Listener.(interface{ SetDeadline(t time.Time) error })
		if first {
			// Clear any short deadline left by a previous pass so the
			// attempt the readiness event promised is not cut off by it.
			if canDeadline {
				_ = dl.SetDeadline(time.Time{})
			}
		} else {
			// net.Listener has no non-blocking Accept; a short deadline
			// on every attempt after the one the readiness event actually
			// promised gives the same "stop once nothing more is
			// pending" behavior a raw EAGAIN would, without blocking the
			// single-threaded event loop indefinitely on a connection
			// that never arrives.
			if !canDeadline {
				return
			}
			_ = dl.SetDeadline(time.Now().Add(time.Millisecond))
		}
		first = false

		acceptedAt := time.Now()
		conn, err := ln.Listener.Accept()
		if err != nil {
			if !isTemporary(err) {
				logging.Op().Warn("accept error", "error", err)
			}
			return
		}
		w.metrics.IncConnections()
		fd := connFD(conn)
		conn.Close()
		logging.Default().Log(&logging.ConnectionLog{
			WorkerPID:  os.Getpid(),
			FD:         fd,
			Listener:   ln.Spec.Address,
			DurationMs: time.Since(acceptedAt).Milliseconds(),
			FinalState: "closed",
		})
		if !w.backend.Flags().GreedyAccept {
			return
		}
	}
}

// drainDeferred runs every deferred event's handler, resolving its tag
// fresh each time so a handler that frees its own connection mid-pass
// never touches a reused slot, preserving same-pass reuse safety as a
// property for same-pass reuse.
func (w *Worker) drainDeferred() {
	for _, tag := range w.deferred {
		c, ev, ok := w.conns.Resolve(tag, false)
		if !ok {
			w.metrics.IncStaleDiscarded()
			continue
		}
		if ev.Handler != nil {
			ev.Handler(c, ev)
		}
	}
}

// connFD best-effort extracts the raw fd backing conn for the
// connection log; File() returns a dup the caller must close, so it is
// only used for its Fd() value here and closed immediately.
func connFD(conn net.Conn) int {
	fl, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return -1
	}
	f, err := fl.File()
	if err != nil {
		return -1
	}
	defer f.Close()
	return int(f.Fd())
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	te, ok := err.(temporary)
	return ok && te.Temporary()
}

// nowMS is the wall-clock millisecond time (Unix epoch) the worker loop
// times against; wrapped so tests can substitute a fake clock indirectly
// through computeWaitMS instead.
func nowMS() int64 { return time.Now().UnixMilli() }

// computeWaitMS derives the Process() timeout budget: block until the
// next timer if one is pending (clamped to maxWaitMS so a quit flag is
// still noticed promptly), zero (non-blocking poll) while draining
// during a graceful shutdown, or maxWaitMS when idle with nothing
// scheduled.
func computeWaitMS(minExpiryMS, nowMS int64, quitting bool) int {
	if quitting {
		return 0
	}
	if minExpiryMS < 0 {
		return maxWaitMS
	}
	budget := minExpiryMS - nowMS
	if budget <= 0 {
		return 0
	}
	if budget > maxWaitMS {
		return maxWaitMS
	}
	return int(budget)
}
