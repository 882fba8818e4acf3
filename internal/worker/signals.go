package worker

import (
	"os"
	"syscall"

	"github.com/oriys/quasar/internal/signal"
)

// installWorkerSignals maps the subset of signals a worker reacts to
// directly: QUIT/TERM mirror the master's own graceful/fast distinction
// (the master signals the whole process group, so a worker sees the
// same signal its master decided to send), and USR1 sets the reopen
// flag. The worker loop never takes that flag: a worker reopens no log
// handles on USR1 and forwards nothing to other processes.
func installWorkerSignals(flags *signal.Flags) *signal.Listener {
	return signal.Listen(flags, map[os.Signal]signal.Action{
		syscall.SIGQUIT: func(f *signal.Flags) { f.SetQuit() },
		syscall.SIGTERM: func(f *signal.Flags) { f.SetTerminate() },
		syscall.SIGUSR1: func(f *signal.Flags) { f.SetReopen() },
	})
}
