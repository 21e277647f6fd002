package provider

import (
	"sync"

	"github.com/hojin-sohn/echo/logging"
)

// release is one deferred cleanup step on a resource stack.
type release struct {
	label string
	fn    func() error
}

// resourceStack is a LIFO of release functions scoped to one provider
// connection. Everything pushed during startup (process handle, transport
// session) is released together, in reverse acquisition order, on every exit
// path. Close is idempotent; a failing release is logged and never blocks
// the remaining releases.
type resourceStack struct {
	mu       sync.Mutex
	releases []release
	closed   bool
}

func newResourceStack() *resourceStack {
	return &resourceStack{}
}

// Push registers a cleanup step. Later pushes release first.
func (s *resourceStack) Push(label string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = append(s.releases, release{label: label, fn: fn})
}

// Close unwinds the stack. Safe to call more than once.
func (s *resourceStack) Close(logger logging.Logger) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i].fn(); err != nil {
			logger.Warn("provider.release.error", "resource", releases[i].label, "error", err.Error())
		}
	}
}
