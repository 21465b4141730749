// Package rendezvous provides the single-slot wake signal used for the
// driver/script handshake.
//
// A Signal behaves like an auto-resetting event: Set marks it, and exactly
// one Wait consumes the mark. Setting an already-set signal is a no-op, so
// a burst of Set calls wakes at most one waiter.
//
// Two signals form the handshake of one script:
//
//	driver                       script goroutine
//	------                       ----------------
//	resume.Set()          -->    resume.Wait() returns
//	idle.Wait()                  ... tick ...
//	idle.Wait() returns   <--    idle.Set()
//
// The channel of capacity one carries the whole state; no other locking is
// needed.
package rendezvous

// Signal is a single-slot, auto-resetting wake signal.
//
// The zero value is not usable; construct with New.
type Signal struct {
	c chan struct{}
}

// New creates an unset signal.
func New() *Signal {
	return &Signal{c: make(chan struct{}, 1)}
}

// Set marks the signal. Never blocks.
// If the signal is already set, Set does nothing.
func (s *Signal) Set() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is set, then clears it.
func (s *Signal) Wait() {
	<-s.c
}

// WaitOr blocks until the signal is set or done is closed.
// Returns true if the signal was consumed.
//
// When both are ready, the set state wins so that a grant issued just
// before shutdown is never silently discarded.
func (s *Signal) WaitOr(done <-chan struct{}) bool {
	select {
	case <-s.c:
		return true
	default:
	}

	select {
	case <-s.c:
		return true
	case <-done:
		return false
	}
}

// C exposes the receive side for composing with other channels in a select.
// Receiving from C consumes the set state exactly like Wait.
func (s *Signal) C() <-chan struct{} {
	return s.c
}
