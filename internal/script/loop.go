package script

import (
	"log/slog"
)

// Run is the body of the script's dedicated goroutine.
//
// Run blocks for admission, then loops: drain key events, dispatch the tick,
// wait for the interval. It returns when the script is interrupted or its
// tick faults. Calling Run a second time returns immediately.
//
// Every script error is caught here and handed to the Reporter; nothing
// unwinds past the loop.
func (s *Script) Run() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	// Release a driver blocked on idle, whatever the exit path.
	defer s.idle.Set()

	if !s.transition(StateIdle, StateAwaitingFirstResume) {
		return
	}

	if !s.resume.WaitOr(s.interrupt) {
		return
	}
	if !s.transition(StateAwaitingFirstResume, StateRunning) {
		return
	}

	th := &Thread{script: s}
	s.active.Store(th)
	defer s.active.Store(nil)

	slog.Info("script started", "script", s.name, "id", s.id)

	// Acknowledge admission; the first iteration starts on the next grant.
	s.idle.Set()
	if !s.resume.WaitOr(s.interrupt) {
		return
	}

	for s.Running() {
		if res := s.drainEvents(th); !res.ok() {
			s.report(res)
		}

		if !s.Running() {
			break
		}

		if res := s.dispatchTick(th); !res.ok() {
			s.report(res)
			s.Abort()
			break
		}

		if !s.Running() {
			break
		}

		if err := th.wait(s.Interval()); err != nil {
			break
		}
	}

	slog.Info("script loop exited",
		"script", s.name,
		"id", s.id,
		"ticks", s.ticks.Load(),
		"state", s.State().String(),
	)
}

// drainEvents dispatches queued key events in FIFO order.
//
// On the first handler fault, draining stops for this iteration: the
// failing event is consumed, the remaining events stay queued for the next
// iteration.
func (s *Script) drainEvents(th *Thread) dispatchResult {
	for s.Running() {
		ev, ok := s.events.TryDequeue()
		if !ok {
			return dispatchResult{}
		}
		if res := s.dispatchKey(th, ev); !res.ok() {
			return res
		}
	}
	return dispatchResult{}
}

func (s *Script) dispatchKey(th *Thread, ev queuedEvent) (res dispatchResult) {
	defer th.enterDispatch()()
	defer func() {
		if p := recover(); p != nil {
			err := panicError(p)
			if s.interrupted(err) {
				res = dispatchResult{}
				return
			}
			res = dispatchResult{
				kind: FaultHandler,
				err:  newError(ErrCodeHandlerFault, s.name, "key handler panicked", err),
			}
		}
	}()

	for _, fn := range s.table.keyHandlers(ev.Down) {
		if err := fn(th, ev.Event); err != nil {
			if s.interrupted(err) {
				return dispatchResult{}
			}
			return dispatchResult{
				kind: FaultHandler,
				err:  newError(ErrCodeHandlerFault, s.name, "key handler failed for "+string(ev.Event.Key), err),
			}
		}
	}
	return dispatchResult{}
}

func (s *Script) dispatchTick(th *Thread) (res dispatchResult) {
	tick := s.ticks.Add(1)

	defer th.enterDispatch()()
	defer func() {
		if p := recover(); p != nil {
			res = dispatchResult{
				kind: FaultTick,
				err:  newError(ErrCodeTickFault, s.name, "tick handler panicked", panicError(p)),
			}
		}
	}()

	slog.Debug("dispatching tick", "script", s.name, "tick", tick)

	for _, fn := range s.table.tickHandlers() {
		if err := fn(th); err != nil {
			if s.interrupted(err) {
				return dispatchResult{}
			}
			return dispatchResult{
				kind: FaultTick,
				err:  newError(ErrCodeTickFault, s.name, "tick handler failed", err),
			}
		}
	}
	return dispatchResult{}
}

// interrupted reports whether a handler error is just the echo of a
// teardown in progress rather than a fault of its own.
func (s *Script) interrupted(err error) bool {
	if s.Running() {
		return false
	}
	return IsAborted(err) || IsIllegalContext(err)
}
