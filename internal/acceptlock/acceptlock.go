// Package acceptlock implements the cross-worker accept arbitration
// primitive: a process-shared mutex only one worker at
// a time may hold, gating the right to call accept on the shared
// listener set.
//
// A classic implementation of this uses an atomic CAS on a word in a
// mmap'd SHM segment shared by every worker, with exponential backoff on
// contention. Workers here are real OS processes too (spawned by
// internal/procsup the same way nginx forks), so the same "shared
// storage, non-blocking try" shape applies; this implementation uses an
// advisory flock(2) on a file under the cycle's run directory instead of
// raw shared memory and a CAS loop, since flock already gives exactly the
// try-lock/unlock semantics flock(2) offers natively, without unsafe pointer
// arithmetic over an mmap'd region, and Go's standard unix syscall
// wrappers (golang.org/x/sys/unix) expose it directly.
package acceptlock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is one worker's handle to the shared accept mutex. Each worker
// process opens its own fd on the same path; flock's semantics (lock
// state is per open file description) give us exactly the "one holder at
// a time, try-lock never blocks" behavior accept arbitration requires.
type Lock struct {
	path string
	fd   int
	held bool
}

// Open creates (if necessary) and opens the lock file at path. Every
// worker sharing one accept arbitration domain must pass the same path,
// typically derived from the cycle's run directory so a reconfigure's
// new cohort still arbitrates against any outgoing cohort still
// draining connections.
func Open(path string) (*Lock, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("acceptlock: open %s: %w", path, err)
	}
	return &Lock{path: path, fd: fd}, nil
}

// TryLock attempts to acquire the mutex without blocking. A false return
// with a nil error means another worker currently holds it — the caller
// should deregister listeners and retry after accept_mutex_delay, per
// the event loop's accept-arbitration attempt.
func (l *Lock) TryLock() (bool, error) {
	if l.held {
		return true, nil
	}
	err := unix.Flock(l.fd, unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		l.held = true
		return true, nil
	}
	if err == unix.EWOULDBLOCK {
		return false, nil
	}
	return false, fmt.Errorf("acceptlock: flock: %w", err)
}

// Unlock releases the mutex if held. It is always safe to call, matching
// the event loop's end-of-pass cleanup ("release the accept lock if held").
func (l *Lock) Unlock() error {
	if !l.held {
		return nil
	}
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		return fmt.Errorf("acceptlock: unlock: %w", err)
	}
	l.held = false
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *Lock) Held() bool { return l.held }

// Close releases the underlying fd. The lock is implicitly released by
// the kernel on close if still held.
func (l *Lock) Close() error {
	l.held = false
	return unix.Close(l.fd)
}

// RemoveStale deletes the lock file; used by the master when tearing
// down a cycle's run directory after every worker it spawned has exited.
func RemoveStale(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
