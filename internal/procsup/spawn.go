package procsup

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spec is everything Spawn needs to launch one child: the binary to
// re-exec (the running binary itself, found via os.Executable), its
// argv, environment, and any listener fds that must be inherited beyond
// the control channel (always handed over as fd 3).
type Spec struct {
	Path          string
	Args          []string
	Env           []string
	Stdout        *os.File
	Stderr        *os.File
	InheritedFiles []*os.File // appended after the control channel
}

// Exit describes how a spawned process ended, reported asynchronously on
// the Table's Exits channel in place of a SIGCHLD + waitpid dance: a
// goroutine blocks in Cmd.Wait() per child and the master loop selects
// on Exits alongside its signal wakeup channel.
type Exit struct {
	Slot     int
	PID      int
	Code     int
	Signaled bool
	Signal   int
}

// Spawn allocates a slot, creates a control-channel socketpair, and
// launches a child process with the worker end of the channel (and any
// InheritedFiles) passed as inherited file descriptors, mirroring a
// fork()+socketpair()+fork() sequence without needing an actual fork.
// On success the returned Channel is the master's end; the child is
// expected to call FromFD(3, ...) for its end.
//
// On failure the slot is released back to the table so a later Spawn
// can reuse it.
func (t *Table) Spawn(spec Spec, name string, policy RespawnPolicy) (slotIdx int, master *Channel, pid int, err error) {
	idx, slot := t.Alloc()

	masterCh, workerCh, err := NewSocketpair()
	if err != nil {
		t.Release(idx)
		return 0, nil, 0, err
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.ExtraFiles = append([]*os.File{workerCh.File()}, spec.InheritedFiles...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		masterCh.Close()
		workerCh.Close()
		t.Release(idx)
		return 0, nil, 0, fmt.Errorf("procsup: spawn %s: %w", name, err)
	}
	// the child has its own copy across exec; the parent's reference to
	// the worker end would otherwise leak an fd for the life of the
	// master, and would also let the master's side believe the channel
	// still has a second local reader.
	workerCh.Close()

	if err := validateSlot(slot, cmd.Process.Pid, masterCh); err != nil {
		_ = cmd.Process.Kill()
		masterCh.Close()
		t.Release(idx)
		return 0, nil, 0, err
	}

	slot.PID = cmd.Process.Pid
	slot.Cmd = cmd
	slot.Channel = masterCh
	slot.Name = name
	slot.Policy = policy
	slot.Exiting = false
	slot.Exited = false

	t.watch(idx, cmd)

	return idx, masterCh, slot.PID, nil
}

// watch starts the per-child reaper goroutine.
func (t *Table) watch(idx int, cmd *exec.Cmd) {
	go func() {
		err := cmd.Wait()
		ex := Exit{Slot: idx, PID: cmd.Process.Pid}
		if err != nil {
			if ee, ok := err.(*exec.ExitError); ok {
				if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
					if ws.Signaled() {
						ex.Signaled = true
						ex.Signal = int(ws.Signal())
					} else {
						ex.Code = ws.ExitStatus()
					}
				}
			}
		}
		t.mu.Lock()
		if idx >= 0 && idx < len(t.slots) && t.slots[idx] != nil {
			t.slots[idx].Exited = true
			t.slots[idx].ExitCode = ex.Code
			t.slots[idx].Signaled = ex.Signaled
		}
		t.mu.Unlock()
		t.exits <- ex
	}()
}

// Exits delivers one Exit per child as it terminates. The master loop's
// "reap" step drains it, consistent with the master loop's
// "waitpid-drain all exited children".
func (t *Table) Exits() <-chan Exit {
	return t.exits
}
