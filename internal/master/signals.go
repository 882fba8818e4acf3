package master

import (
	"os"
	"syscall"

	"github.com/oriys/quasar/internal/signal"
)

// installSignals registers the master's OS signal -> flag mapping,
// where QUIT is graceful shutdown, TERM/INT is
// fast shutdown, HUP is reconfigure, USR1 is reopen logs, USR2 is
// change binary, WINCH is stop accepting (used after a successful
// upgrade to retire the old worker cohort without killing the old
// master).
func installSignals(flags *signal.Flags) *signal.Listener {
	return signal.Listen(flags, map[os.Signal]signal.Action{
		syscall.SIGQUIT:  func(f *signal.Flags) { f.SetQuit() },
		syscall.SIGTERM:  func(f *signal.Flags) { f.SetTerminate() },
		syscall.SIGINT:   func(f *signal.Flags) { f.SetTerminate() },
		syscall.SIGHUP:   func(f *signal.Flags) { f.SetReconfigure() },
		syscall.SIGUSR1:  func(f *signal.Flags) { f.SetReopen() },
		syscall.SIGUSR2:  func(f *signal.Flags) { f.SetChangeBinary() },
		syscall.SIGWINCH: func(f *signal.Flags) { f.SetNoaccept() },
		syscall.SIGCHLD:  func(f *signal.Flags) { f.SetReap() },
	})
}
