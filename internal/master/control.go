package master

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oriys/quasar/internal/admin"
	"github.com/oriys/quasar/internal/signal"
)

// Flags exposes the master's signal flags so an external notifier (e.g.
// internal/fleet's Redis subscription) can set them the same way an
// OS signal would, without the master package depending on the
// notifier's package.
func (m *Master) Flags() *signal.Flags { return m.flags }

// Status reports the master's current generation and cohort size, the
// payload behind the admin gRPC surface's Status call.
func (m *Master) Status() admin.Status {
	return admin.Status{
		Generation:  m.cyc.Generation,
		WorkerCount: len(m.table.PIDs()),
		UpgradePID:  m.upgradePID,
		StartedAt:   timestamppb.New(m.startedAt),
	}
}

// RequestReconfigure, RequestReopen, and RequestUpgrade let the admin
// surface (or any other in-process caller) trigger the same state
// transitions a HUP/USR1/USR2 signal would, satisfying admin.Controller
// without the master package depending on admin for anything but the
// Status value type.
func (m *Master) RequestReconfigure() { m.flags.SetReconfigure() }
func (m *Master) RequestReopen()      { m.flags.SetReopen() }
func (m *Master) RequestUpgrade()     { m.flags.SetChangeBinary() }
