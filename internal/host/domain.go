package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tickhost/internal/script"
)

// DefaultJoinTimeout bounds how long teardown waits for a script goroutine
// to exit before giving up on it.
const DefaultJoinTimeout = 2 * time.Second

// ErrClosed is returned by Load and Start after Stop.
var ErrClosed = errors.New("domain is stopped")

// Definition describes a script to load.
type Definition struct {
	// Name identifies the script in logs and the journal.
	Name string

	// Source is the path the script was loaded from. The settings
	// companion is derived from it. May be empty.
	Source string

	// Interval is the initial minimum time between ticks.
	Interval time.Duration

	// Setup registers the script's handlers. It runs before the script
	// goroutine starts; an error aborts the load.
	Setup func(s *script.Script) error
}

// Frame is a snapshot of one script for display.
type Frame struct {
	ID    string
	Name  string
	State script.State
	Ticks int64
	// View is the last drawn viewport frame, empty if the script has no view.
	View string
}

type entry struct {
	s      *script.Script
	source string

	started   atomic.Bool
	abortOnce sync.Once
	// stopped is closed once the domain marked the script stopped.
	stopped chan struct{}
}

// Domain hosts scripts: it loads and admits them, pumps one driver step per
// tick to each, fans input out, and tears them down.
//
// Thread-safety model:
//   - Tick(), Run(): the driver goroutine only
//   - Load(), Start(), KeyDown(), KeyUp(), Abort(), Stop(): safe from any goroutine
//   - AbortScript(): called by scripts, from their own goroutine
//
// INVARIANTS:
//   - scripts are ticked in load order
//   - a script is torn down at most once
//   - teardown never blocks the caller; the join runs on its own goroutine
type Domain struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	byPtr   map[*script.Script]*entry

	ids         IDGenerator
	clock       script.Clock
	reporter    script.Reporter
	keys        script.KeyBindings
	observers   []script.StateObserver
	joinTimeout time.Duration

	frames atomic.Int64
	closed atomic.Bool
}

// Option configures a Domain.
type Option func(*Domain)

// WithIDGenerator sets how script IDs are assigned. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Domain) {
		d.ids = g
	}
}

// WithClock sets the clock handed to every script.
func WithClock(c script.Clock) Option {
	return func(d *Domain) {
		d.clock = c
	}
}

// WithReporter sets the fault sink shared by all scripts. Teardown faults
// are reported to it too.
func WithReporter(r script.Reporter) Option {
	return func(d *Domain) {
		d.reporter = r
	}
}

// WithKeyBindings sets the view navigation keys of every script.
func WithKeyBindings(kb script.KeyBindings) Option {
	return func(d *Domain) {
		d.keys = kb
	}
}

// WithStateObserver adds a lifecycle observer to every script.
func WithStateObserver(fn script.StateObserver) Option {
	return func(d *Domain) {
		d.observers = append(d.observers, fn)
	}
}

// WithJoinTimeout bounds teardown joins. Default: DefaultJoinTimeout.
func WithJoinTimeout(timeout time.Duration) Option {
	return func(d *Domain) {
		d.joinTimeout = timeout
	}
}

// New creates an empty domain.
func New(opts ...Option) *Domain {
	d := &Domain{
		byID:        make(map[string]*entry),
		byPtr:       make(map[*script.Script]*entry),
		ids:         UUIDv7Generator{},
		clock:       script.SystemClock{},
		reporter:    script.LogReporter{},
		keys:        script.DefaultKeyBindings(),
		joinTimeout: DefaultJoinTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Load creates a script from def and runs its Setup. The script is not
// started; call Start.
func (d *Domain) Load(def Definition) (*script.Script, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if def.Name == "" {
		return nil, fmt.Errorf("load script: name is required")
	}

	opts := []script.Option{
		script.WithID(d.ids.Generate()),
		script.WithInterval(def.Interval),
		script.WithClock(d.clock),
		script.WithReporter(d.reporter),
		script.WithKeyBindings(d.keys),
	}
	for _, fn := range d.observers {
		opts = append(opts, script.WithStateObserver(fn))
	}
	s := script.New(d, def.Name, opts...)

	if def.Setup != nil {
		if err := def.Setup(s); err != nil {
			return nil, fmt.Errorf("load script %s: %w", def.Name, err)
		}
	}

	e := &entry{
		s:       s,
		source:  def.Source,
		stopped: make(chan struct{}),
	}

	d.mu.Lock()
	d.entries = append(d.entries, e)
	d.byID[s.ID()] = e
	d.byPtr[s] = e
	d.mu.Unlock()

	slog.Info("script loaded",
		"script", s.Name(),
		"id", s.ID(),
		"source", def.Source,
		"interval", s.Interval(),
	)

	return s, nil
}

// Start launches the script goroutine and admits it.
func (d *Domain) Start(ctx context.Context, s *script.Script) error {
	if d.closed.Load() {
		return ErrClosed
	}
	e := d.lookup(s)
	if e == nil {
		return fmt.Errorf("start script %s: not loaded by this domain", s.Name())
	}
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("start script %s: already started", s.Name())
	}

	go s.Run()
	if err := s.Admit(ctx); err != nil {
		return fmt.Errorf("start script %s: %w", s.Name(), err)
	}
	return nil
}

// Launch loads and starts a script.
func (d *Domain) Launch(ctx context.Context, def Definition) (*script.Script, error) {
	s, err := d.Load(def)
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Tick advances every running script by one driver step, in load order.
//
// A script that stopped running since the snapshot is skipped. Tick returns
// early only if ctx is done.
func (d *Domain) Tick(ctx context.Context) error {
	frame := d.frames.Add(1)

	for _, s := range d.Scripts() {
		if !s.Running() {
			continue
		}
		if err := s.Advance(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, script.ErrNotRunning) {
				continue
			}
			return fmt.Errorf("advance %s: %w", s.Name(), err)
		}
	}

	slog.Debug("frame done", "frame", frame)
	return nil
}

// Frames returns the number of Tick calls so far.
func (d *Domain) Frames() int64 {
	return d.frames.Load()
}

// KeyDown queues a key-down event on every running script. Returns how many
// scripts accepted it.
func (d *Domain) KeyDown(ev script.KeyEvent) int {
	return d.fanOut(func(s *script.Script) bool { return s.KeyDown(ev) })
}

// KeyUp queues a key-up event on every running script. Returns how many
// scripts accepted it.
func (d *Domain) KeyUp(ev script.KeyEvent) int {
	return d.fanOut(func(s *script.Script) bool { return s.KeyUp(ev) })
}

func (d *Domain) fanOut(deliver func(*script.Script) bool) int {
	n := 0
	for _, s := range d.Scripts() {
		if s.Running() && deliver(s) {
			n++
		}
	}
	return n
}

// SourcePath implements script.Host.
func (d *Domain) SourcePath(s *script.Script) string {
	if e := d.lookup(s); e != nil {
		return e.source
	}
	return ""
}

// AbortScript implements script.Host. It interrupts s and joins its
// goroutine in the background, so it is safe to call from s itself.
// Repeated calls are no-ops.
func (d *Domain) AbortScript(s *script.Script) {
	e := d.lookup(s)
	if e == nil {
		// Not ours; still make sure it unwinds.
		s.Interrupt()
		return
	}

	e.abortOnce.Do(func() {
		slog.Info("aborting script", "script", s.Name(), "id", s.ID(), "state", s.State().String())
		s.Interrupt()
		if e.started.CompareAndSwap(false, true) {
			// Never started: Run sees the interrupt and returns at once.
			go s.Run()
		}
		go d.join(e)
	})
}

// join waits for the script goroutine, then marks it stopped. If the
// goroutine does not exit within the join timeout the script is reported
// as a teardown fault and marked stopped anyway; its goroutine is abandoned.
func (d *Domain) join(e *entry) {
	s := e.s
	defer close(e.stopped)

	timer := time.NewTimer(d.joinTimeout)
	defer timer.Stop()

	select {
	case <-s.Done():
		s.MarkStopped()
		slog.Info("script stopped", "script", s.Name(), "id", s.ID(), "ticks", s.Ticks())

	case <-timer.C:
		err := script.NewError(script.ErrCodeTeardownFault, s.Name(),
			fmt.Sprintf("script goroutine did not exit within %s", d.joinTimeout), nil)
		slog.Error("script teardown timed out",
			"script", s.Name(),
			"id", s.ID(),
			"timeout", d.joinTimeout,
			"error", err,
		)
		d.report(script.Fault{
			ScriptID: s.ID(),
			Script:   s.Name(),
			Kind:     script.FaultTeardown,
			Err:      err,
			Fatal:    true,
			Tick:     s.Ticks(),
			Time:     d.clock.Now(),
		})
		s.MarkStopped()
	}
}

func (d *Domain) report(f script.Fault) {
	if d.reporter == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("fault reporter panicked", "script", f.Script, "panic", p)
		}
	}()
	d.reporter.Report(f)
}

// Abort tears down the script with the given ID.
func (d *Domain) Abort(id string) error {
	s, ok := d.Lookup(id)
	if !ok {
		return fmt.Errorf("abort: unknown script %q", id)
	}
	s.Abort()
	return nil
}

// Wait blocks until the script with the given ID is marked stopped, or ctx
// is done.
func (d *Domain) Wait(ctx context.Context, id string) error {
	d.mu.RLock()
	e := d.byID[id]
	d.mu.RUnlock()
	if e == nil {
		return fmt.Errorf("wait: unknown script %q", id)
	}

	select {
	case <-e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears down every script and waits until all are marked stopped or
// ctx is done. After Stop the domain refuses new scripts.
func (d *Domain) Stop(ctx context.Context) error {
	d.closed.Store(true)

	d.mu.RLock()
	entries := make([]*entry, len(d.entries))
	copy(entries, d.entries)
	d.mu.RUnlock()

	slog.Info("stopping domain", "scripts", len(entries))

	for _, e := range entries {
		d.AbortScript(e.s)
	}
	for _, e := range entries {
		select {
		case <-e.stopped:
		case <-ctx.Done():
			return fmt.Errorf("stop domain: %w", ctx.Err())
		}
	}

	slog.Info("domain stopped", "frames", d.frames.Load())
	return nil
}

// Run ticks the domain every rate until ctx is done, then stops it.
func (d *Domain) Run(ctx context.Context, rate time.Duration) error {
	if rate <= 0 {
		return fmt.Errorf("run domain: tick rate must be positive, got %s", rate)
	}

	slog.Info("domain running", "rate", rate)

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), d.joinTimeout+time.Second)
			err := d.Stop(stopCtx)
			cancel()
			if err != nil {
				slog.Error("domain stop failed", "error", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if err := d.Tick(ctx); err != nil && ctx.Err() == nil {
				slog.Error("tick failed", "frame", d.frames.Load(), "error", err)
			}
		}
	}
}

// Lookup returns the script with the given ID.
func (d *Domain) Lookup(id string) (*script.Script, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Scripts returns every loaded script in load order, including stopped ones.
func (d *Domain) Scripts() []*script.Script {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*script.Script, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.s
	}
	return out
}

// Running returns how many scripts are running.
func (d *Domain) Running() int {
	n := 0
	for _, s := range d.Scripts() {
		if s.Running() {
			n++
		}
	}
	return n
}

// Snapshot returns a display frame per script, in load order.
func (d *Domain) Snapshot() []Frame {
	scripts := d.Scripts()
	out := make([]Frame, 0, len(scripts))
	for _, s := range scripts {
		f := Frame{
			ID:    s.ID(),
			Name:  s.Name(),
			State: s.State(),
			Ticks: s.Ticks(),
		}
		if v := s.CurrentView(); v != nil {
			f.View = v.Frame()
		}
		out = append(out, f)
	}
	return out
}

func (d *Domain) lookup(s *script.Script) *entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byPtr[s]
}
