// Package cycle ties together the "Cycle" aggregate: the root of one
// configuration generation, owning the pool, the error log, the
// listener set, the list of persistent open files, and a back-reference
// to the previous cycle for handoff. Rather than one process-wide cycle
// struct being inherited into every forked worker, quasar's workers are
// separate re-exec'd processes (internal/procsup), so only the
// master-side state — config, listener fds, open files — lives here;
// each worker builds its own connection table and timer queue sized from
// Config.WorkerConnections once it starts (internal/worker).
package cycle

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/container"
	"github.com/oriys/quasar/internal/listener"
	"github.com/oriys/quasar/internal/memarena"
)

// arenaBlockSize sizes each cycle's arena head block; a cycle's own
// scratch needs (parsed config copies, listener bookkeeping) are tiny
// compared to a worker's per-connection arena, so this is generous but
// not large.
const arenaBlockSize = 64 * 1024

// Cycle is one configuration generation. Invariant: at most one
// "current" cycle exists at any time, and a cycle's pool outlives every
// object allocated within it.
type Cycle struct {
	Generation string // uuid, stable across a cycle's lifetime, for log/trace correlation
	Config     *config.Config
	Arena      *memarena.Arena
	Listeners  *listener.Set
	OpenFiles  *container.ChunkedList[*os.File]
	Prev       *Cycle // retained until every worker it spawned has exited
}

// New builds a fresh cycle from cfg. priorListeners, when non-nil, is
// matched by address against cfg.Listen (the hot-upgrade reconciliation):
// callers pass the previous cycle's listener set across a RECONFIGURE, or
// a set of inherited fds parsed from the handoff environment variable
// across a hot binary upgrade. Either way, matched addresses keep their
// existing fd; unmatched configured addresses are freshly bound; and any
// leftover prior listener is returned in stale for the caller to close.
func New(cfg *config.Config, priorListeners []*listener.Listening) (c *Cycle, stale []*listener.Listening, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	specs := make([]listener.Spec, 0, len(cfg.Listen))
	for _, l := range cfg.Listen {
		spec, err := specFromConfig(l)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
	}

	set, stale, err := listener.Reconcile(specs, priorListeners)
	if err != nil {
		return nil, nil, fmt.Errorf("cycle: reconcile listeners: %w", err)
	}

	c = &Cycle{
		Generation: uuid.NewString(),
		Config:     cfg,
		Arena:      memarena.New(arenaBlockSize),
		Listeners:  set,
		OpenFiles:  container.NewChunkedList[*os.File](4),
	}

	if err := c.openPersistentFiles(); err != nil {
		set.CloseAll()
		return nil, nil, err
	}

	return c, stale, nil
}

func specFromConfig(l config.Listen) (listener.Spec, error) {
	if l.Vsock {
		return listener.ParseSpec("vsock:"+l.Address, l.Backlog)
	}
	return listener.ParseSpec(l.Address, l.Backlog)
}

// openPersistentFiles opens the cycle's error log (and any future
// registered log file) through OpenFiles, the same
// "list of persistent open files" (ngx_cycle_t.open_files): an fd
// registry REOPEN walks uniformly, whatever component owns each entry.
func (c *Cycle) openPersistentFiles() error {
	if c.Config.ErrorLog == "" {
		return nil
	}
	f, err := os.OpenFile(c.Config.ErrorLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cycle: open error_log %s: %w", c.Config.ErrorLog, err)
	}
	*c.OpenFiles.Push() = f
	return nil
}

// Reopen closes and reopens every file in OpenFiles in place, matching
// the REOPEN handling both the cycle and the master loop need.
func (c *Cycle) Reopen() error {
	var firstErr error
	c.OpenFiles.Each(func(f **os.File) {
		if *f == nil {
			return
		}
		path := (*f).Name()
		(*f).Close()
		nf, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("cycle: reopen %s: %w", path, err)
			}
			return
		}
		*f = nf
	})
	return firstErr
}

// Destroy releases the cycle's arena and closes its listeners and open
// files. Called once every worker spawned from this cycle has exited,
// matching a "destroy pool" on final shutdown, and
// the retained-until-drained rule for an outgoing cycle during
// reconfigure.
func (c *Cycle) Destroy() {
	if c.Listeners != nil {
		c.Listeners.CloseAll()
	}
	c.OpenFiles.Each(func(f **os.File) {
		if *f != nil {
			(*f).Close()
		}
	})
	if c.Arena != nil {
		c.Arena.Destroy()
	}
}
