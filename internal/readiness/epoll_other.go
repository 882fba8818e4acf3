//go:build !linux

package readiness

import (
	"errors"

	"github.com/oriys/quasar/internal/conntable"
)

// Epoll is only available on Linux; non-epoll
// readiness backends (kqueue/poll/select) as external collaborators
// whose interface is specified but not implemented here. This stub lets
// the module build on other platforms while making the unsupported
// backend explicit rather than silently degrading.
type Epoll struct{}

// NewEpoll returns a backend that fails on Init; it exists so callers
// compiled on non-Linux targets get a clear error instead of a missing
// symbol.
func NewEpoll() *Epoll { return &Epoll{} }

var errUnsupported = errors.New("readiness: epoll backend is only available on linux")

func (e *Epoll) Flags() Flags                             { return Flags{} }
func (e *Epoll) Init() error                              { return errUnsupported }
func (e *Epoll) Done() error                              { return nil }
func (e *Epoll) AddEvent(conntable.Tag, int, bool) error  { return errUnsupported }
func (e *Epoll) DelEvent(conntable.Tag, int, bool) error  { return errUnsupported }
func (e *Epoll) Process(int) ([]ReadyEvent, error)        { return nil, errUnsupported }
