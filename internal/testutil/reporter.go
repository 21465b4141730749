package testutil

import (
	"sync"

	"github.com/roach88/tickhost/internal/script"
)

// RecordingReporter keeps every fault it receives, in order.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingReporter struct {
	mu     sync.Mutex
	faults []script.Fault
}

// Report implements script.Reporter.
func (r *RecordingReporter) Report(f script.Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, f)
}

// Faults returns a copy of the recorded faults.
func (r *RecordingReporter) Faults() []script.Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]script.Fault, len(r.faults))
	copy(out, r.faults)
	return out
}

// Count returns the number of recorded faults with the given fatality.
func (r *RecordingReporter) Count(fatal bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.faults {
		if f.Fatal == fatal {
			n++
		}
	}
	return n
}
