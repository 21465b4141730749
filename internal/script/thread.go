package script

import (
	"sync/atomic"
	"time"
)

// Thread is the scheduling context of a script's dedicated goroutine.
//
// Every handler receives the Thread of the script it belongs to. Wait and
// Yield are only legal on that Thread, from inside a dispatch, while the
// script is running. The Thread is passed explicitly instead of being looked
// up from process-wide state.
//
// A Thread is only usable while the script goroutine is inside a dispatch
// and not already waiting, so one that escapes its handler (stored, or
// captured by another goroutine) is rejected between dispatches.
type Thread struct {
	script *Script

	// dispatching is true while a key or tick dispatch runs.
	dispatching atomic.Bool
	// waiting guards against a second Wait while one is blocked.
	waiting atomic.Bool
}

// Script returns the script this thread schedules.
func (t *Thread) Script() *Script {
	if t == nil {
		return nil
	}
	return t.script
}

// Tick returns the number of the tick currently being dispatched.
func (t *Thread) Tick() int64 {
	if t == nil || t.script == nil {
		return 0
	}
	return t.script.ticks.Load()
}

// Wait hands control back to the driver until at least d has elapsed.
//
// Each step signals idle and blocks for the driver's next grant, so the real
// sleeping is done by however many driver steps fit in d. Wait(0) is exactly
// one step. Negative durations behave like zero.
//
// Returns ErrIllegalContext, without touching either signal, when called on
// a nil or stale Thread, outside a handler dispatch, while the thread is
// already waiting, or on a script that is not running. Returns
// ErrAborted when the script is interrupted while blocked; handlers should
// return it.
func (t *Thread) Wait(d time.Duration) error {
	if err := t.check(); err != nil {
		return err
	}
	if !t.dispatching.Load() {
		return newError(ErrCodeIllegalContext, t.script.name, "wait called outside a handler dispatch", nil)
	}
	return t.wait(d)
}

// wait is Wait without the dispatch check; the main loop uses it for the
// interval wait between iterations.
func (t *Thread) wait(d time.Duration) error {
	if err := t.check(); err != nil {
		return err
	}
	s := t.script
	if !t.waiting.CompareAndSwap(false, true) {
		return newError(ErrCodeIllegalContext, s.name, "wait called while the thread is already waiting", nil)
	}
	defer t.waiting.Store(false)

	if d < 0 {
		d = 0
	}
	deadline := s.clock.Now().Add(d)

	for {
		s.idle.Set()
		if !s.resume.WaitOr(s.interrupt) {
			return newError(ErrCodeAborted, s.name, "interrupted while waiting", nil)
		}
		if !s.clock.Now().Before(deadline) {
			return nil
		}
	}
}

// enterDispatch marks the thread as inside a handler dispatch. Call the
// returned func when the dispatch ends.
func (t *Thread) enterDispatch() func() {
	t.dispatching.Store(true)
	return func() { t.dispatching.Store(false) }
}

// Yield cedes exactly one driver step. Same as Wait(0).
func (t *Thread) Yield() error {
	return t.Wait(0)
}

func (t *Thread) check() error {
	if t == nil || t.script == nil {
		return newError(ErrCodeIllegalContext, "", "wait called without a script thread", nil)
	}
	s := t.script
	if s.active.Load() != t {
		return newError(ErrCodeIllegalContext, s.name, "wait called outside the script main loop", nil)
	}
	if !s.Running() {
		return newError(ErrCodeIllegalContext, s.name, "wait called on a script that is not running", nil)
	}
	return nil
}
