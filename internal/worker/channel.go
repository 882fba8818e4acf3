package worker

import (
	"errors"
	"io"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/procsup"
)

// channelLoop reads control messages from the master until the channel
// closes (the master process exited, or this worker's slot was torn
// down), translating each into the same signal.Flags a direct OS signal
// would set — the channel is the belt, OS signals the suspenders, per
// "today only master<->worker is used, but the slot
// table is maintained uniformly."
func (w *Worker) channelLoop() {
	for {
		msg, err := w.channel.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Op().Warn("channel closed", "error", err)
			}
			return
		}
		switch msg.Command {
		case procsup.CmdQuit:
			w.flags.SetQuit()
		case procsup.CmdTerminate:
			w.flags.SetTerminate()
		case procsup.CmdReopen:
			w.flags.SetReopen()
		case procsup.CmdOpen, procsup.CmdClose:
			// peer channel bookkeeping; no peer-to-peer worker
			// communication is implemented beyond the slot table itself.
		}
	}
}
