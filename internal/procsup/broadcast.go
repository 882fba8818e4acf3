package procsup

import "syscall"

// BroadcastOpen sends an OPEN_CHANNEL message describing the newly
// spawned child (pid, slot, and its master-side channel fd) to every
// other live slot's channel: "The parent then
// broadcasts an OPEN_CHANNEL message to every existing child ... so
// peers can communicate if ever needed (today only master<->worker is
// used, but the slot table is maintained uniformly)."
func (t *Table) BroadcastOpen(newSlot int, newPID int, newChannelFD int) {
	for i, s := range t.Slots() {
		if i == newSlot || s == nil || s.Exited || s.Channel == nil {
			continue
		}
		_ = s.Channel.Send(Message{
			Command: CmdOpen,
			PID:     int32(newPID),
			Slot:    int32(newSlot),
			FD:      newChannelFD,
		})
	}
}

// Signal sends sig to slot idx's process group (negative pid), matching
// a worker-signaling fan-out that signals every
// worker uniformly. Using the process group rather than the bare pid
// also reaches any grandchild the worker itself spawned, the same reason
// internal/firecracker/vm.go signals -pid instead of pid.
func (t *Table) Signal(idx int, sig syscall.Signal) error {
	s := t.Get(idx)
	if s == nil || s.Exited {
		return nil
	}
	return syscall.Kill(-s.PID, sig)
}

// SignalAll signals every live, non-detached slot — the master's
// broadcast primitive used for QUIT/TERM/REOPEN fan-out.
func (t *Table) SignalAll(sig syscall.Signal, includeDetached bool) {
	for i, s := range t.Slots() {
		if s == nil || s.Exited {
			continue
		}
		if s.Policy == Detached && !includeDetached {
			continue
		}
		_ = t.Signal(i, sig)
	}
}

// MarkExiting flags a slot as gracefully shutting down so a future exit
// is not treated as an unexpected crash eligible for respawn.
func (t *Table) MarkExiting(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx >= 0 && idx < len(t.slots) && t.slots[idx] != nil {
		t.slots[idx].Exiting = true
	}
}
