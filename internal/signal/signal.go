// Package signal implements the signal layer: translation of
// process signals into a small, fixed set of flags a main loop polls in
// priority order. A signal handler function that may
// only touch sig_atomic_t variables because it runs on the signal stack;
// Go's runtime already does that job for us underneath os/signal (the
// actual POSIX signal handler lives in the runtime and forwards onto a
// channel from a regular goroutine), so the "handler" here is an ordinary
// goroutine, but it keeps the same shape: it does
// nothing but flip a flag and, for the timer signal, nothing at all
// (Go's monotonic clock makes a periodic "update the time cache
// inside the handler" step unnecessary).
package signal

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// Flags is the fixed set of global flags the master loop consults. Each
// signal sets at most one field, and a field is cleared by the main loop that
// observes it, mirroring one ngx_*-prefixed sig_atomic_t each.
type Flags struct {
	reap         atomic.Bool
	quit         atomic.Bool
	terminate    atomic.Bool
	reconfigure  atomic.Bool
	reopen       atomic.Bool
	changeBinary atomic.Bool
	noaccept     atomic.Bool
	timer        atomic.Bool
}

// Take reports whether the flag was set and clears it atomically, i.e.
// read and cleared once by the main loop each tick.
func take(f *atomic.Bool) bool { return f.CompareAndSwap(true, false) }

func (f *Flags) TakeReap() bool         { return take(&f.reap) }
func (f *Flags) TakeQuit() bool         { return take(&f.quit) }
func (f *Flags) TakeTerminate() bool    { return take(&f.terminate) }
func (f *Flags) TakeReconfigure() bool  { return take(&f.reconfigure) }
func (f *Flags) TakeReopen() bool       { return take(&f.reopen) }
func (f *Flags) TakeChangeBinary() bool { return take(&f.changeBinary) }
func (f *Flags) TakeNoaccept() bool     { return take(&f.noaccept) }
func (f *Flags) TakeTimer() bool        { return take(&f.timer) }

// Peek* variants read a flag without clearing it, so a later Take* still
// observes it.
func (f *Flags) PeekTerminate() bool { return f.terminate.Load() }
func (f *Flags) PeekQuit() bool      { return f.quit.Load() }

// Set* are exposed so a process can raise a flag without going through
// the kernel (e.g. the admin API or the fleet notifier requesting a
// reconfigure).
func (f *Flags) SetQuit()         { f.quit.Store(true) }
func (f *Flags) SetTerminate()    { f.terminate.Store(true) }
func (f *Flags) SetReconfigure()  { f.reconfigure.Store(true) }
func (f *Flags) SetTimer()        { f.timer.Store(true) }
func (f *Flags) SetReap()         { f.reap.Store(true) }
func (f *Flags) SetReopen()       { f.reopen.Store(true) }
func (f *Flags) SetChangeBinary() { f.changeBinary.Store(true) }
func (f *Flags) SetNoaccept()     { f.noaccept.Store(true) }

// PeekNoaccept reads the noaccept flag without clearing it.
func (f *Flags) PeekNoaccept() bool { return f.noaccept.Load() }

// Listener installs a mapping from OS signals to Flags mutations and
// delivers wakeups on Wake for the "sleep until any signal" primitive
// the signal handlers install.
type Listener struct {
	ch   chan os.Signal
	Wake chan struct{}
	stop chan struct{}
}

// Action mutates Flags in response to one received signal.
type Action func(*Flags)

// Listen registers for the given signals and returns a Listener that
// applies actions[sig] as each arrives, then posts to Wake. Call Stop to
// deregister.
func Listen(flags *Flags, actions map[os.Signal]Action) *Listener {
	sigs := make([]os.Signal, 0, len(actions))
	for s := range actions {
		sigs = append(sigs, s)
	}
	l := &Listener{
		ch:   make(chan os.Signal, 16),
		Wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	signal.Notify(l.ch, sigs...)
	go l.loop(flags, actions)
	return l
}

func (l *Listener) loop(flags *Flags, actions map[os.Signal]Action) {
	for {
		select {
		case <-l.stop:
			return
		case s := <-l.ch:
			if act, ok := actions[s]; ok {
				act(flags)
			}
			select {
			case l.Wake <- struct{}{}:
			default:
			}
		}
	}
}

// Stop deregisters the listener. It does not drain Wake.
func (l *Listener) Stop() {
	signal.Stop(l.ch)
	close(l.stop)
}
