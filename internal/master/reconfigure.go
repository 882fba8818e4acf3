package master

import (
	"context"
	"os"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/configsource"
	"github.com/oriys/quasar/internal/cycle"
	"github.com/oriys/quasar/internal/handoff"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/internal/procsup"

	"syscall"
)

const (
	sigQuit = syscall.SIGQUIT
	sigUSR1 = syscall.SIGUSR1
)

// stepReconfigure reparses the config file, builds a fresh cycle that
// reconciles listeners against the outgoing one, spawns a new worker
// cohort attached to it, and tells the outgoing cohort to drain,
// reconciling listener fds by address against the outgoing set.
func (m *Master) stepReconfigure() {
	_, span := observability.StartSpan(context.Background(), "master.reconfigure",
		observability.AttrCycleGeneration.String(m.cyc.Generation))
	defer span.End()

	cfg, err := configsource.Load(context.Background(), m.cfgPath)
	if err != nil {
		logging.Op().Error("reconfigure: reload config failed, keeping old cycle", "error", err)
		observability.SetSpanError(span, err)
		return
	}
	config.LoadFromEnv(cfg)

	next, stale, err := cycle.New(cfg, m.cyc.Listeners.All())
	if err != nil {
		logging.Op().Error("reconfigure: build new cycle failed, keeping old cycle", "error", err)
		observability.SetSpanError(span, err)
		return
	}
	for _, s := range stale {
		s.Listener.Close()
	}

	old := m.cyc
	old.Prev = nil
	next.Prev = old
	m.cyc = next
	m.cfg = cfg

	if err := m.spawnCohort(procsup.JustRespawn); err != nil {
		logging.Op().Error("reconfigure: spawn new cohort failed", "error", err)
		observability.SetSpanError(span, err)
		return
	}

	m.retireOutgoingCohort()

	m.metrics.IncReconfigure()
	observability.SetSpanOK(span)
	logging.Op().Info("reconfigure complete", "generation", next.Generation)
}

// retireOutgoingCohort marks every worker slot that predates the
// current cycle's cohort as exiting and sends it QUIT, letting it
// drain its own connections before exiting on its own schedule.
func (m *Master) retireOutgoingCohort() {
	for i, s := range m.table.Slots() {
		if s == nil || s.Exited || s.Policy == procsup.Detached {
			continue
		}
		if s.Policy == procsup.JustRespawn {
			continue
		}
		m.table.MarkExiting(i)
		_ = m.table.Signal(i, sigQuit)
	}
}

// stepReopen reopens the cycle's persistent files (the error log) and
// forwards SIGUSR1 to every worker so each reopens its own handles too,
// and forwarding REOPEN to every worker so each reopens its own handles.
func (m *Master) stepReopen() {
	if err := m.cyc.Reopen(); err != nil {
		logging.Op().Error("reopen failed", "error", err)
		return
	}
	m.table.SignalAll(sigUSR1, false)
	logging.Op().Info("reopened log files")
}

// stepChangeBinary re-execs the running binary as a detached child,
// handing it the current listener set through the NGINX-style
// environment variable so it can bind a fresh master without dropping
// any connection.
func (m *Master) stepChangeBinary() {
	if m.upgradePID != 0 {
		logging.Op().Warn("change-binary requested while an upgrade is already in flight")
		return
	}

	_, span := observability.StartSpan(context.Background(), "master.upgrade",
		observability.AttrListenerCount.Int(len(m.cyc.Listeners.All())))
	defer span.End()

	// Spawn always places the new control channel at fd 3 in the child
	// (procsup.Spawn prepends it to ExtraFiles regardless of spec.Path),
	// so the inherited listeners the handoff env var describes start at
	// fd 4, the same convention runWorker uses for its own listener fds.
	files := make([]*os.File, 0, len(m.cyc.Listeners.All()))
	fds := make([]int, 0, len(m.cyc.Listeners.All()))
	for i, l := range m.cyc.Listeners.All() {
		files = append(files, l.File)
		fds = append(fds, 4+i)
	}

	env := append(os.Environ(), handoff.EnvEntry(fds))
	idx, _, pid, err := m.table.Spawn(procsup.Spec{
		Path:           m.binaryPath,
		Args:           []string{"--config=" + m.cfgPath},
		Env:            env,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		InheritedFiles: files,
	}, "change-binary", procsup.Detached)
	if err != nil {
		logging.Op().Error("change-binary exec failed", "error", err)
		observability.SetSpanError(span, err)
		return
	}

	m.upgradePID = pid
	span.SetAttributes(observability.AttrUpgradePID.Int(pid))
	observability.SetSpanOK(span)
	logging.Op().Info("spawned replacement master binary", "pid", pid, "slot", idx)
}
