// Package procsup implements the process table, spawn/respawn policy,
// and master<->worker channel protocol.
//
// A forking supervisor would have the child start as a copy-on-write
// clone of the parent
// that simply stops doing master-loop work and starts doing worker-loop
// work. Go processes cannot fork and keep their runtime usable (the
// scheduler, GC, and all other goroutines would be in an undefined state
// in the child), so spawn here re-executes the same binary
// (os.Executable) as a child process via os/exec, the same os/exec +
// SysProcAttr{Setpgid: true} + escalating-signal-on-timeout shape any
// supervised-subprocess package in this stack uses. The worker end of
// the master<->worker channel is handed to
// the child as an inherited file descriptor via exec.Cmd.ExtraFiles,
// which is the fork-free equivalent of a socketpair-before-
// fork: both ends exist before the child exists, and the child simply
// inherits its end across exec the same way it would across fork.
package procsup

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Command codes for the fixed channel record.
const (
	CmdOpen      = 1
	CmdClose     = 2
	CmdQuit      = 3
	CmdTerminate = 4
	CmdReopen    = 5
)

// Message is the fixed record exchanged over a Channel. FD is carried as
// ancillary (SCM_RIGHTS) data, not inline, the way the wire format
// describes; a Message with FD == -1 carries no ancillary data.
type Message struct {
	Command int32
	PID     int32
	Slot    int32
	FD      int
}

const wireSize = 12 // Command + PID + Slot, each int32; FD travels out-of-band

// Channel wraps one end of a socketpair-backed master<->worker control
// channel.
type Channel struct {
	file *os.File
}

// NewSocketpair creates a connected pair of non-blocking, close-on-exec
// UNIX domain sockets, returned as (masterEnd, workerEnd). The worker end
// is handed to the child via exec.Cmd.ExtraFiles by the caller.
func NewSocketpair() (master, worker *Channel, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("procsup: socketpair: %w", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		return nil, nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		return nil, nil, err
	}
	return &Channel{file: os.NewFile(uintptr(fds[0]), "channel[0]")},
		&Channel{file: os.NewFile(uintptr(fds[1]), "channel[1]")}, nil
}

// FromFD wraps an already-open, inherited fd (e.g. fd 3 in a freshly
// exec'd worker, received via ExtraFiles) as a Channel.
func FromFD(fd uintptr, name string) *Channel {
	return &Channel{file: os.NewFile(fd, name)}
}

// File exposes the underlying *os.File, e.g. for exec.Cmd.ExtraFiles.
func (c *Channel) File() *os.File { return c.file }

// Fd returns the raw file descriptor.
func (c *Channel) Fd() int { return int(c.file.Fd()) }

// Close closes this end of the channel.
func (c *Channel) Close() error { return c.file.Close() }

// Send writes one Message, passing FD as SCM_RIGHTS ancillary data when
// FD >= 0. The underlying fd is non-blocking, so the actual syscall runs
// through SyscallConn: that routes EAGAIN back into Go's runtime
// netpoller instead of busy-spinning or returning early, the same way
// the net package drives non-blocking sockets.
func (c *Channel) Send(m Message) error {
	buf := make([]byte, wireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Command))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.PID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.Slot))

	var oob []byte
	if m.FD >= 0 {
		oob = unix.UnixRights(m.FD)
	}

	rc, err := c.file.SyscallConn()
	if err != nil {
		return err
	}
	var sendErr error
	werr := rc.Write(func(fd uintptr) bool {
		sendErr = unix.Sendmsg(int(fd), buf, oob, nil, 0)
		return sendErr != unix.EAGAIN
	})
	if werr != nil {
		return werr
	}
	return sendErr
}

// Recv reads one Message, decoding any ancillary fd into m.FD (-1 if
// none was sent). Like Send, the syscall runs through SyscallConn so a
// Recv with nothing pending parks the calling goroutine on the
// netpoller instead of spinning or failing with EAGAIN.
func (c *Channel) Recv() (Message, error) {
	buf := make([]byte, wireSize)
	oob := make([]byte, unix.CmsgSpace(4))

	rc, err := c.file.SyscallConn()
	if err != nil {
		return Message{}, err
	}

	var n, oobn int
	var recvErr error
	rerr := rc.Read(func(fd uintptr) bool {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(fd), buf, oob, 0)
		return recvErr != unix.EAGAIN
	})
	if rerr != nil {
		return Message{}, rerr
	}
	if recvErr != nil {
		return Message{}, recvErr
	}
	if n < wireSize {
		return Message{}, fmt.Errorf("procsup: short read: %d bytes", n)
	}

	m := Message{
		Command: int32(binary.LittleEndian.Uint32(buf[0:4])),
		PID:     int32(binary.LittleEndian.Uint32(buf[4:8])),
		Slot:    int32(binary.LittleEndian.Uint32(buf[8:12])),
		FD:      -1,
	}
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err == nil && len(cmsgs) > 0 {
			if fds, err := unix.ParseUnixRights(&cmsgs[0]); err == nil && len(fds) > 0 {
				m.FD = fds[0]
			}
		}
	}
	return m, nil
}
