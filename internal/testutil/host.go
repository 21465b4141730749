package testutil

import (
	"sync"

	"github.com/roach88/tickhost/internal/script"
)

// FakeHost is a minimal hosting domain for scheduler tests.
//
// AbortScript interrupts the script immediately and marks it stopped once
// its goroutine has exited, mirroring what the real domain does without the
// join timeout or journaling.
type FakeHost struct {
	mu      sync.Mutex
	sources map[*script.Script]string
	aborts  map[*script.Script]int
}

// NewFakeHost creates an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		sources: make(map[*script.Script]string),
		aborts:  make(map[*script.Script]int),
	}
}

// SetSource records the source path reported for s.
func (h *FakeHost) SetSource(s *script.Script, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources[s] = path
}

// SourcePath implements script.Host.
func (h *FakeHost) SourcePath(s *script.Script) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sources[s]
}

// AbortScript implements script.Host.
func (h *FakeHost) AbortScript(s *script.Script) {
	h.mu.Lock()
	h.aborts[s]++
	h.mu.Unlock()

	s.Interrupt()
	go func() {
		<-s.Done()
		s.MarkStopped()
	}()
}

// Aborts returns how many times AbortScript was called for s.
func (h *FakeHost) Aborts(s *script.Script) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aborts[s]
}
