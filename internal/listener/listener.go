// Package listener manages the cycle's listener set: binding fresh
// sockets from configuration, re-attaching inherited fds during a hot
// binary upgrade, and extracting raw fds for the next upgrade's
// handoff. Matches the "Listening socket" entity.
package listener

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Kind distinguishes the transport a listener spec binds.
type Kind int

const (
	KindTCP Kind = iota
	KindUnix
	KindVsock
)

// Spec is one entry of the configured listen[] set, e.g. "0.0.0.0:8080",
// "unix:/run/quasar.sock", or "vsock:1024".
type Spec struct {
	Kind    Kind
	Address string // host:port for TCP, path for unix, decimal port for vsock
	Backlog int
}

// ParseSpec parses one listen directive value into a Spec.
func ParseSpec(raw string, backlog int) (Spec, error) {
	switch {
	case strings.HasPrefix(raw, "unix:"):
		return Spec{Kind: KindUnix, Address: strings.TrimPrefix(raw, "unix:"), Backlog: backlog}, nil
	case strings.HasPrefix(raw, "vsock:"):
		return Spec{Kind: KindVsock, Address: strings.TrimPrefix(raw, "vsock:"), Backlog: backlog}, nil
	default:
		return Spec{Kind: KindTCP, Address: raw, Backlog: backlog}, nil
	}
}

// Listening is a bound, listening socket plus the metadata the master
// carries it with across a cycle: address, backlog, and whether it was
// inherited from a parent binary during upgrade rather than freshly
// bound.
type Listening struct {
	Spec      Spec
	Listener  net.Listener
	File      *os.File // dup'd fd backing FD; kept open for handoff/ExtraFiles use
	FD        int
	Inherited bool
}

// Set is the ordered list of listening sockets owned by a cycle.
type Set struct {
	items []*Listening
}

// NewSet returns an empty listener set.
func NewSet() *Set { return &Set{} }

// All returns every listening socket in the set.
func (s *Set) All() []*Listening { return s.items }

// Bind opens a fresh socket for spec and appends it to the set.
func (s *Set) Bind(spec Spec) (*Listening, error) {
	l, err := bind(spec)
	if err != nil {
		return nil, err
	}
	s.items = append(s.items, l)
	return l, nil
}

// bind is Set.Bind's socket-opening core, split out so Reconcile can
// bind several unmatched specs concurrently (via errgroup) without
// contending on a single Set's items slice.
func bind(spec Spec) (*Listening, error) {
	var (
		ln  net.Listener
		err error
	)
	switch spec.Kind {
	case KindTCP:
		ln, err = net.Listen("tcp", spec.Address)
	case KindUnix:
		_ = os.Remove(spec.Address)
		ln, err = net.Listen("unix", spec.Address)
	case KindVsock:
		port, perr := strconv.ParseUint(spec.Address, 10, 32)
		if perr != nil {
			return nil, fmt.Errorf("listener: invalid vsock port %q: %w", spec.Address, perr)
		}
		ln, err = vsock.Listen(uint32(port), nil)
	default:
		return nil, fmt.Errorf("listener: unknown kind %d", spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("listener: bind %s: %w", spec.Address, err)
	}

	f, err := fdOf(ln)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &Listening{Spec: spec, Listener: ln, File: f, FD: int(f.Fd())}, nil
}

// AdoptInherited wraps an inherited fd (one that arrived via the
// NGINX-style handoff env var) as a Listening marked Inherited, without
// knowing its configured Spec yet — Reconcile matches it against config
// by address+port once the local address has been resolved.
func AdoptInherited(fd int) (*Listening, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("listener: set nonblocking inherited fd %d: %w", fd, err)
	}
	f := os.NewFile(uintptr(fd), fmt.Sprintf("inherited-listener-%d", fd))
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("listener: adopt inherited fd %d: %w", fd, err)
	}
	return &Listening{Listener: ln, File: f, FD: fd, Inherited: true}, nil
}

// Reconcile matches a freshly parsed config listener set against an
// inherited set by address, re-using inherited fds on a match, binding
// fresh sockets otherwise (concurrently, since each bind is an
// independent syscall), and returning any inherited listener left
// unmatched as the second result for the caller to close — the
// hot-upgrade handoff reconciliation.
func Reconcile(configured []Spec, inherited []*Listening) (*Set, []*Listening, error) {
	used := make([]bool, len(inherited))
	results := make([]*Listening, len(configured))

	var g errgroup.Group
	for i, spec := range configured {
		matched := -1
		for j, inh := range inherited {
			if used[j] {
				continue
			}
			if sameAddress(spec, inh) {
				matched = j
				break
			}
		}
		if matched >= 0 {
			used[matched] = true
			l := inherited[matched]
			l.Spec = spec
			results[i] = l
			continue
		}

		i, spec := i, spec
		g.Go(func() error {
			l, err := bind(spec)
			if err != nil {
				return err
			}
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, l := range results {
			if l != nil && !l.Inherited {
				l.Listener.Close()
			}
		}
		return nil, nil, err
	}

	var stale []*Listening
	for i, inh := range inherited {
		if !used[i] {
			stale = append(stale, inh)
		}
	}
	return &Set{items: results}, stale, nil
}

func sameAddress(spec Spec, l *Listening) bool {
	return spec.Address == l.Listener.Addr().String()
}

// FDs returns the raw fd of every listener in the set, in order, for
// serializing into the next upgrade's handoff environment variable.
func (s *Set) FDs() []int {
	fds := make([]int, len(s.items))
	for i, l := range s.items {
		fds[i] = l.FD
	}
	return fds
}

// CloseAll closes every listener in the set, along with the dup'd fd
// kept alongside it for handoff purposes.
func (s *Set) CloseAll() {
	for _, l := range s.items {
		l.Listener.Close()
		if l.File != nil {
			l.File.Close()
		}
	}
}

type filer interface {
	File() (*os.File, error)
}

// fdOf extracts the raw fd backing a net.Listener by asking for its
// *os.File (net.TCPListener, net.UnixListener, and vsock.Listener all
// implement File()), then setting it non-blocking again since File()
// returns a blocking dup for the caller to own independently.
func fdOf(ln net.Listener) (*os.File, error) {
	fl, ok := ln.(filer)
	if !ok {
		return nil, fmt.Errorf("listener: %T does not expose a file descriptor", ln)
	}
	f, err := fl.File()
	if err != nil {
		return nil, fmt.Errorf("listener: extract fd: %w", err)
	}
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
