package script

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tickhost/internal/rendezvous"
	"github.com/roach88/tickhost/internal/settings"
	"github.com/roach88/tickhost/internal/view"
)

// Host is the hosting domain as seen by a script.
type Host interface {
	// SourcePath returns the path the script was loaded from.
	// Used to derive the settings path. May be empty.
	SourcePath(s *Script) string

	// AbortScript asks the domain to interrupt and tear down s.
	// Called from the script's own goroutine after a fatal fault, so it
	// must not block on the script goroutine exiting.
	AbortScript(s *Script)
}

// State is the scheduler lifecycle state of a script.
type State int32

const (
	// StateIdle means constructed, goroutine not started.
	StateIdle State = iota
	// StateAwaitingFirstResume means the goroutine is blocked on admission.
	StateAwaitingFirstResume
	// StateRunning means executing, or about to execute, an iteration.
	StateRunning
	// StateAborting means interrupted; the goroutine is on its way out.
	StateAborting
	// StateStopped is terminal: the domain joined the goroutine.
	StateStopped
)

// String returns the journal name of the state.
func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstResume:
		return "awaiting_first_resume"
	case StateRunning:
		return "running"
	case StateAborting:
		return "aborting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateObserver is notified after every lifecycle transition, on the
// goroutine that performed it.
type StateObserver func(s *Script, from, to State)

// Option configures a Script.
type Option func(*Script)

// WithID sets the script identity. The domain assigns a UUIDv7.
func WithID(id string) Option {
	return func(s *Script) {
		s.id = id
	}
}

// WithInterval sets the initial interval. Negative values clamp to zero.
func WithInterval(d time.Duration) Option {
	return func(s *Script) {
		s.SetInterval(d)
	}
}

// WithClock overrides the wall clock used for wait deadlines.
func WithClock(c Clock) Option {
	return func(s *Script) {
		s.clock = c
	}
}

// WithReporter sets the fault sink. Defaults to LogReporter.
func WithReporter(r Reporter) Option {
	return func(s *Script) {
		s.reporter = r
	}
}

// WithKeyBindings sets the view surface's navigation keys.
func WithKeyBindings(kb KeyBindings) Option {
	return func(s *Script) {
		s.keys = kb
	}
}

// WithStateObserver adds a lifecycle observer.
func WithStateObserver(fn StateObserver) Option {
	return func(s *Script) {
		s.observers = append(s.observers, fn)
	}
}

// Script is one unit of hosted logic with its own cooperative scheduler.
//
// Thread-safety model:
//   - Run(): the body of the dedicated goroutine; call exactly once
//   - Admit()/Advance(): the driver goroutine only
//   - KeyDown()/KeyUp(): safe from any goroutine
//   - OnTick()/OnKeyDown()/OnKeyUp()/Unsubscribe(): safe from any goroutine
//   - Thread.Wait()/Thread.Yield(): the script goroutine only, inside dispatch
//
// INVARIANTS:
//   - driver grants (resume) and script idles (idle) strictly alternate
//   - state only moves forward: idle, awaiting, running, aborting, stopped
//   - interval is read once per wait, when the wait begins
type Script struct {
	id        string
	name      string
	host      Host
	clock     Clock
	reporter  Reporter
	keys      KeyBindings
	observers []StateObserver

	interval atomic.Int64 // nanoseconds, never negative
	state    atomic.Int32
	ticks    atomic.Int64

	resume *rendezvous.Signal
	idle   *rendezvous.Signal
	events *eventQueue
	table  dispatchTable
	active atomic.Pointer[Thread]

	started  atomic.Bool
	admitted atomic.Bool
	// pendingGrant is set when a driver handshake was abandoned by its
	// context; the next handshake first collects the outstanding idle.
	pendingGrant atomic.Bool

	interrupt     chan struct{}
	interruptOnce sync.Once
	done          chan struct{}

	companionMu sync.Mutex
	view        *view.Viewport
	settings    *settings.File
}

// New creates a script bound to host. The goroutine is not started; the
// domain runs it with `go s.Run()`.
func New(host Host, name string, opts ...Option) *Script {
	s := &Script{
		name:      name,
		host:      host,
		clock:     SystemClock{},
		reporter:  LogReporter{},
		keys:      DefaultKeyBindings(),
		resume:    rendezvous.New(),
		idle:      rendezvous.New(),
		events:    newEventQueue(),
		interrupt: make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID returns the identity assigned by the domain.
func (s *Script) ID() string {
	return s.id
}

// Name returns the script name.
func (s *Script) Name() string {
	return s.name
}

// Interval returns the minimum time between tick dispatches.
func (s *Script) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the interval. Negative values clamp to zero.
// A wait already in progress keeps its deadline; the change applies to the
// next one.
func (s *Script) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.interval.Store(int64(d))
}

// State returns the current lifecycle state.
func (s *Script) State() State {
	return State(s.state.Load())
}

// Running reports whether the script is in StateRunning.
func (s *Script) Running() bool {
	return s.State() == StateRunning
}

// Ticks returns how many tick dispatches have started.
func (s *Script) Ticks() int64 {
	return s.ticks.Load()
}

// Thread returns the scheduling thread of the running loop, nil before
// admission and after the loop exits. Waiting on it is only legal from
// inside a dispatch.
func (s *Script) Thread() *Thread {
	return s.active.Load()
}

// Pending returns the number of queued, undrained key events.
func (s *Script) Pending() int {
	return s.events.Len()
}

// Done is closed when the script goroutine has returned.
func (s *Script) Done() <-chan struct{} {
	return s.done
}

// KeyDown queues a key-down event for the next iteration.
// Returns false once the script is shutting down.
func (s *Script) KeyDown(ev KeyEvent) bool {
	return s.events.Enqueue(queuedEvent{Down: true, Event: ev})
}

// KeyUp queues a key-up event for the next iteration.
// Returns false once the script is shutting down.
func (s *Script) KeyUp(ev KeyEvent) bool {
	return s.events.Enqueue(queuedEvent{Down: false, Event: ev})
}

// OnTick registers a tick handler.
func (s *Script) OnTick(fn TickHandler) Subscription {
	return s.table.addTick(fn)
}

// OnKeyDown registers a key-down handler.
func (s *Script) OnKeyDown(fn KeyHandler) Subscription {
	return s.table.addKey(pointKeyDown, fn)
}

// OnKeyUp registers a key-up handler.
func (s *Script) OnKeyUp(fn KeyHandler) Subscription {
	return s.table.addKey(pointKeyUp, fn)
}

// Unsubscribe removes a handler. Returns false if it was not registered.
func (s *Script) Unsubscribe(sub Subscription) bool {
	return s.table.remove(sub)
}

// Admit performs the first grant: the script leaves StateAwaitingFirstResume,
// enters StateRunning and acknowledges. Admit returns after the
// acknowledgement; no tick runs until the first Advance.
//
// May be called before Run has started: the grant is latched.
func (s *Script) Admit(ctx context.Context) error {
	if !s.admitted.CompareAndSwap(false, true) {
		return newError(ErrCodeAlreadyAdmitted, s.name, "script already admitted", nil)
	}
	if st := s.State(); st >= StateAborting {
		return newError(ErrCodeNotRunning, s.name, "cannot admit a script in state "+st.String(), nil)
	}

	slog.Debug("admitting script", "script", s.name, "id", s.id)
	return s.handshake(ctx)
}

// Advance grants the script one driver step and blocks until the script
// reports idle, its goroutine exits, or ctx is done.
//
// Advance never blocks for a script's logical wait duration: a script in the
// middle of Wait(d) reports idle after every step.
func (s *Script) Advance(ctx context.Context) error {
	if !s.admitted.Load() {
		return newError(ErrCodeNotRunning, s.name, "script not admitted", nil)
	}
	if !s.Running() {
		return newError(ErrCodeNotRunning, s.name, "cannot advance a script in state "+s.State().String(), nil)
	}
	return s.handshake(ctx)
}

// handshake is one driver-side rendezvous: grant, then wait for idle.
func (s *Script) handshake(ctx context.Context) error {
	if s.pendingGrant.Load() {
		if err := s.awaitIdle(ctx); err != nil {
			return err
		}
		s.pendingGrant.Store(false)
	}

	s.resume.Set()
	if err := s.awaitIdle(ctx); err != nil {
		s.pendingGrant.Store(true)
		return err
	}
	return nil
}

func (s *Script) awaitIdle(ctx context.Context) error {
	select {
	case <-s.idle.C():
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort releases a driver waiting for idle and asks the domain to tear the
// script down. Safe to call repeatedly and from handlers.
//
// Abort does not change the state itself; the domain does, via Interrupt
// and MarkStopped.
func (s *Script) Abort() {
	s.idle.Set()
	if s.host != nil {
		s.host.AbortScript(s)
	}
}

// Interrupt moves the script to StateAborting and unblocks its goroutine
// if it is waiting for a grant. Owned by the hosting domain. Idempotent.
func (s *Script) Interrupt() {
	s.interruptOnce.Do(func() {
		for {
			cur := s.State()
			if cur >= StateAborting {
				break
			}
			if s.transition(cur, StateAborting) {
				break
			}
		}
		s.events.Close()
		close(s.interrupt)
		s.idle.Set()
	})
}

// MarkStopped records that the domain finished teardown. Owned by the
// hosting domain; call after Done is closed (or the join gave up).
func (s *Script) MarkStopped() {
	for {
		cur := s.State()
		if cur == StateStopped {
			return
		}
		if s.transition(cur, StateStopped) {
			return
		}
	}
}

// transition moves from one state to a later one. Returns false if the
// current state is not from.
func (s *Script) transition(from, to State) bool {
	if to <= from {
		return false
	}
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	slog.Debug("script state changed",
		"script", s.name,
		"id", s.id,
		"from", from.String(),
		"to", to.String(),
	)
	for _, fn := range s.observers {
		fn(s, from, to)
	}
	return true
}

func (s *Script) report(res dispatchResult) {
	safeReport(s.reporter, Fault{
		ScriptID: s.id,
		Script:   s.name,
		Kind:     res.kind,
		Err:      res.err,
		Fatal:    res.kind.Fatal(),
		Tick:     s.ticks.Load(),
		Time:     s.clock.Now(),
	})
}
