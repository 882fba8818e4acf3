// Package master implements the master process loop:
// the single long-lived process that owns the current configuration
// cycle, the worker process table, and the priority-ordered state
// machine that reconciles signal flags and child exits into respawns,
// reconfigures, log reopens, and hot binary upgrades.
package master

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/configsource"
	"github.com/oriys/quasar/internal/cycle"
	"github.com/oriys/quasar/internal/handoff"
	"github.com/oriys/quasar/internal/listener"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/procsup"
	"github.com/oriys/quasar/internal/signal"
)

// tickInterval bounds how long the master sleeps when nothing wakes it:
// a live child exit or a signal both post to faster channels, so this
// only matters for picking up a just-armed ALRM escalation promptly.
const tickInterval = 20 * time.Millisecond

// Master owns one cycle at a time and the worker cohort spawned from it.
type Master struct {
	cfgPath    string
	binaryPath string

	cfg   *config.Config
	cyc   *cycle.Cycle
	table *procsup.Table

	flags    *signal.Flags
	sigs     *signal.Listener
	metrics  *metrics.Registry

	quitting    bool
	terminating bool
	killDelay   time.Duration
	alrm        *time.Timer // armed by stepTerminate; nil between escalation steps

	upgradePID int // pid of an in-flight change-binary child, 0 if none
	startedAt  time.Time
}

// New loads cfgPath, binds its listeners, and returns a Master ready to
// spawn its first worker cohort from Start.
func New(cfgPath string) (*Master, error) {
	cfg, err := configsource.Load(context.Background(), cfgPath)
	if err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("master: resolve own executable: %w", err)
	}

	var inherited []*listener.Listening
	if fds, present, err := handoff.FromEnviron(); err != nil {
		return nil, err
	} else if present {
		for _, fd := range fds {
			l, err := listener.AdoptInherited(fd)
			if err != nil {
				return nil, err
			}
			inherited = append(inherited, l)
		}
	}

	cyc, stale, err := cycle.New(cfg, inherited)
	if err != nil {
		return nil, err
	}
	for _, s := range stale {
		s.Listener.Close()
	}

	return &Master{
		cfgPath:    cfgPath,
		binaryPath: exe,
		cfg:        cfg,
		cyc:        cyc,
		table:      procsup.New(),
		flags:      &signal.Flags{},
		metrics:    metrics.New(os.Getpid()),
	}, nil
}

// Start writes the pidfile, installs the signal layer, and spawns the
// first worker cohort.
func (m *Master) Start() error {
	if err := writePIDFile(m.cfg.PidPath, os.Getpid()); err != nil {
		return fmt.Errorf("master: write pidfile: %w", err)
	}
	m.sigs = installSignals(m.flags)
	m.startedAt = time.Now()
	return m.spawnCohort(procsup.Respawn)
}

// spawnCohort launches n workers (n = cfg.WorkerProcesses) attached to
// the current cycle's listener set, tagging each slot with policy so a
// reconfigure-spawned cohort can be told apart from a steady-state one
// for one loop iteration, the window during which a reconfigure-spawned
// cohort must not yet be treated as the steady-state one.
func (m *Master) spawnCohort(policy procsup.RespawnPolicy) error {
	files := make([]*os.File, 0, len(m.cyc.Listeners.All()))
	for _, l := range m.cyc.Listeners.All() {
		files = append(files, l.File)
	}
	for i := 0; i < m.cfg.WorkerProcesses; i++ {
		args := []string{"--worker-fd=3", "--config=" + m.cfgPath}
		if m.cfg.MetricsBasePort > 0 {
			args = append(args, fmt.Sprintf("--metrics-port=%d", m.cfg.MetricsBasePort+i))
		}
		idx, ch, pid, err := m.table.Spawn(procsup.Spec{
			Path:           m.binaryPath,
			Args:           args,
			Env:            os.Environ(),
			Stdout:         os.Stdout,
			Stderr:         os.Stderr,
			InheritedFiles: files,
		}, fmt.Sprintf("worker-%d", i), policy)
		if err != nil {
			return fmt.Errorf("master: spawn worker %d: %w", i, err)
		}
		m.table.BroadcastOpen(idx, pid, ch.Fd())
		logging.Op().Info("spawned worker", "pid", pid, "slot", idx)
	}
	return nil
}

// Run drives the master state machine until the process should exit,
// in priority order: reap, then exit-if-drained,
// then terminate-escalate, then quit, then reconfigure, then reopen,
// then change-binary, then noaccept.
func (m *Master) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ex := <-m.table.Exits():
			m.reap(ex)
		case <-m.wakeChan():
		case <-ticker.C:
		}

		if done := m.tick(); done {
			return nil
		}
	}
}

// wakeChan returns the signal listener's wake channel, or a nil channel
// (which blocks forever in a select) before Start installs one, so Run
// can be exercised in tests without a live signal listener.
func (m *Master) wakeChan() <-chan struct{} {
	if m.sigs == nil {
		return nil
	}
	return m.sigs.Wake
}

// reap applies one child exit to the process table's respawn policy,
// the highest-priority step of the master's state machine.
func (m *Master) reap(ex procsup.Exit) {
	slot := m.table.Get(ex.Slot)
	logging.Op().Info("worker exited", "pid", ex.PID, "code", ex.Code, "signaled", ex.Signaled)
	if ex.PID == m.upgradePID {
		m.upgradePID = 0
	}
	if slot == nil || slot.Exiting || m.quitting || m.terminating {
		return
	}
	if slot.Policy == procsup.Respawn || slot.Policy == procsup.JustRespawn {
		m.metrics.IncWorkerRespawns()
		if err := m.spawnCohort(procsup.Respawn); err != nil {
			logging.Op().Error("respawn failed", "error", err)
		}
	}
}

// tick runs one pass of the priority-ordered state machine and reports
// whether the master should exit its Run loop.
func (m *Master) tick() bool {
	if (m.quitting || m.terminating) && !m.table.Live() {
		m.shutdown()
		return true
	}

	if m.terminating {
		m.stepTerminate()
		return false
	}

	if m.flags.TakeQuit() {
		m.quitting = true
		logging.Op().Info("graceful shutdown requested")
		m.table.SignalAll(syscall.SIGQUIT, false)
	}

	if m.flags.TakeTerminate() {
		m.terminating = true
		m.killDelay = 0
		m.alrm = nil
		m.table.SignalAll(syscall.SIGTERM, false)
	}

	if !m.quitting && !m.terminating {
		if m.flags.TakeReconfigure() {
			m.stepReconfigure()
		}
		if m.flags.TakeReopen() {
			m.stepReopen()
		}
		if m.flags.TakeChangeBinary() {
			m.stepChangeBinary()
		}
		if m.flags.TakeNoaccept() {
			m.table.SignalAll(syscall.SIGWINCH, false)
		}
		m.table.SettleJustRespawn()
	}

	return false
}

// stepTerminate advances the escalating kill ladder. SIGTERM already
// went out when terminating was set; this only arms and re-arms an
// ALRM-style timer for the {50,100,200,400,800}ms ladder and acts once
// that timer actually fires, rather than once per tick — tick() runs
// every tickInterval (20ms), and advancing the ladder on every pass
// would reach SIGKILL in ~6 ticks regardless of the computed delays.
func (m *Master) stepTerminate() {
	if m.alrm == nil {
		delay, _ := nextKillDelay(m.killDelay)
		m.killDelay = delay
		m.alrm = time.NewTimer(delay)
		return
	}

	select {
	case <-m.alrm.C:
	default:
		return
	}

	next, escalate := nextKillDelay(m.killDelay)
	if escalate {
		logging.Op().Warn("escalating to SIGKILL", "delay", m.killDelay)
		m.table.SignalAll(syscall.SIGKILL, true)
		m.alrm = nil
		return
	}
	m.killDelay = next
	m.alrm.Reset(next)
}

// shutdown removes the pidfile and destroys the current cycle once
// every worker has exited.
func (m *Master) shutdown() {
	m.cyc.Destroy()
	_ = removePIDFile(m.cfg.PidPath)
	if m.sigs != nil {
		m.sigs.Stop()
	}
	logging.Op().Info("master shutdown complete")
}
