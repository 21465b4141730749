package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tickhost/internal/host"
	"github.com/roach88/tickhost/internal/jsscript"
	"github.com/roach88/tickhost/internal/script"
	"github.com/roach88/tickhost/internal/store"
	"github.com/roach88/tickhost/internal/testutil"
)

// Epoch is the manual clock's start time in every scenario.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// settleTimeout bounds how long a step waits for torn-down scripts.
const settleTimeout = 5 * time.Second

// Harness is the scenario execution engine.
// It runs a domain with a manual clock and sequential script IDs.
type Harness struct {
	domain  *host.Domain
	clock   *testutil.ManualClock
	store   *store.Store
	journal *store.Journal
	rec     *recorder
	logger  *slog.Logger

	ids map[string]string // script name to ID

	mu    sync.Mutex
	fatal map[string]bool // IDs with a fatal fault not yet settled
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation. Failed
// assertions are reported in the result; the error is reserved for
// scenarios that cannot run at all.
//
// Execution flow:
// 1. Create fresh in-memory journal and domain
// 2. Compile and launch every script, in order
// 3. Execute the steps, settling teardowns after each
// 4. Collect final script states
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st)
	defer h.stop()

	if err := h.launch(ctx, scenario.Scripts); err != nil {
		return nil, fmt.Errorf("failed to launch scripts: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.step(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result := NewResult()
	result.Trace = h.rec.events()
	if err := h.collect(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(st *store.Store) *Harness {
	h := &Harness{
		clock:  testutil.NewManualClock(Epoch),
		store:  st,
		rec:    newRecorder(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		ids:    make(map[string]string),
		fatal:  make(map[string]bool),
	}
	h.journal = store.NewJournal(st, h.clock.Now)

	h.domain = host.New(
		host.WithIDGenerator(&host.SequenceGenerator{Prefix: "script"}),
		host.WithClock(h.clock),
		host.WithReporter(script.Reporters{script.ReporterFunc(h.onFault), h.journal}),
		host.WithStateObserver(h.onTransition),
		host.WithStateObserver(h.journal.Observe),
		host.WithJoinTimeout(time.Second),
	)
	return h
}

// SetLogger replaces the harness's discard logger.
func (h *Harness) SetLogger(l *slog.Logger) {
	h.logger = l
}

func (h *Harness) launch(ctx context.Context, defs []ScriptDef) error {
	for _, def := range defs {
		src, err := compile(def)
		if err != nil {
			return err
		}

		var interval time.Duration
		if def.Interval != "" {
			if interval, err = time.ParseDuration(def.Interval); err != nil {
				return fmt.Errorf("script %s: interval: %w", def.Name, err)
			}
		}

		h.rec.register(def.Name)
		s, err := h.domain.Launch(ctx, host.Definition{
			Name:     def.Name,
			Source:   def.Source,
			Interval: interval,
			Setup: func(s *script.Script) error {
				h.instrument(s)
				return src.Setup(s)
			},
		})
		if err != nil {
			return err
		}
		h.ids[def.Name] = s.ID()

		h.logger.Info("script launched", "script", def.Name, "id", s.ID())
	}
	h.rec.flush()
	return nil
}

func compile(def ScriptDef) (*jsscript.Source, error) {
	if def.Code != "" {
		return jsscript.Compile(def.Name+".js", def.Code)
	}
	return jsscript.CompileFile(def.Source)
}

// instrument subscribes the trace handlers ahead of the script's own, so
// every dispatch is recorded before the script can fail it.
func (h *Harness) instrument(s *script.Script) {
	name := s.Name()
	s.OnTick(func(th *script.Thread) error {
		h.rec.record(TraceEvent{Type: EventTick, Script: name, Tick: th.Tick()})
		return nil
	})
	s.OnKeyDown(func(th *script.Thread, ev script.KeyEvent) error {
		h.rec.record(TraceEvent{Type: EventKeyDown, Script: name, Tick: th.Tick(), Key: string(ev.Key)})
		return nil
	})
	s.OnKeyUp(func(th *script.Thread, ev script.KeyEvent) error {
		h.rec.record(TraceEvent{Type: EventKeyUp, Script: name, Tick: th.Tick(), Key: string(ev.Key)})
		return nil
	})
}

func (h *Harness) onFault(f script.Fault) {
	ev := TraceEvent{
		Type:   EventFault,
		Script: f.Script,
		Tick:   f.Tick,
		Kind:   f.Kind.String(),
		Fatal:  f.Fatal,
	}
	var se *script.Error
	if errors.As(f.Err, &se) {
		ev.Code = string(se.Code)
	}
	h.rec.record(ev)

	if f.Fatal {
		h.mu.Lock()
		h.fatal[f.ScriptID] = true
		h.mu.Unlock()
	}
}

func (h *Harness) onTransition(s *script.Script, from, to script.State) {
	h.rec.record(TraceEvent{
		Type:   EventTransition,
		Script: s.Name(),
		From:   from.String(),
		To:     to.String(),
	})
}

func (h *Harness) step(ctx context.Context, step Step) error {
	op, arg := step.Op()
	h.rec.record(TraceEvent{Type: EventStep, Op: op, Arg: arg})

	switch op {
	case StepTick:
		for i := 0; i < step.Tick; i++ {
			if err := h.domain.Tick(ctx); err != nil {
				return fmt.Errorf("tick: %w", err)
			}
			if err := h.settle(ctx); err != nil {
				return err
			}
			h.rec.flush()
		}
		return nil

	case StepClock:
		d, err := time.ParseDuration(arg)
		if err != nil {
			return fmt.Errorf("clock: %w", err)
		}
		h.clock.Advance(d)

	case StepKey:
		ev := script.KeyEvent{Key: script.Key(arg)}
		h.domain.KeyDown(ev)
		h.domain.KeyUp(ev)

	case StepKeyDown:
		h.domain.KeyDown(script.KeyEvent{Key: script.Key(arg)})

	case StepKeyUp:
		h.domain.KeyUp(script.KeyEvent{Key: script.Key(arg)})

	case StepAbort:
		id, ok := h.ids[arg]
		if !ok {
			return fmt.Errorf("abort: unknown script %q", arg)
		}
		if err := h.domain.Abort(id); err != nil {
			return err
		}
		waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
		defer cancel()
		if err := h.domain.Wait(waitCtx, id); err != nil {
			return fmt.Errorf("abort %s: %w", arg, err)
		}

	default:
		return fmt.Errorf("empty step")
	}

	if err := h.settle(ctx); err != nil {
		return err
	}
	h.rec.flush()

	h.logger.Info("step completed", "op", op, "arg", arg, "frame", h.domain.Frames())
	return nil
}

// settle waits until every script that faulted fatally or started
// aborting has been marked stopped, so the teardown lands in the trace
// of the step that caused it.
func (h *Harness) settle(ctx context.Context) error {
	h.mu.Lock()
	pending := make(map[string]bool, len(h.fatal))
	for id := range h.fatal {
		pending[id] = true
	}
	h.fatal = make(map[string]bool)
	h.mu.Unlock()

	for _, s := range h.domain.Scripts() {
		if s.State() == script.StateAborting {
			pending[s.ID()] = true
		}
	}
	if len(pending) == 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	for id := range pending {
		if err := h.domain.Wait(waitCtx, id); err != nil {
			return fmt.Errorf("settle %s: %w", id, err)
		}
	}
	return nil
}

func (h *Harness) collect(ctx context.Context, result *Result) error {
	for _, f := range h.domain.Snapshot() {
		faults, err := h.store.CountFaults(ctx, f.Name)
		if err != nil {
			return err
		}
		result.Scripts[f.Name] = ScriptState{
			ID:     f.ID,
			State:  f.State.String(),
			Ticks:  f.Ticks,
			Faults: faults,
			View:   f.View,
		}
	}
	return nil
}

func (h *Harness) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := h.domain.Stop(ctx); err != nil {
		h.logger.Error("domain stop failed", "error", err)
	}
}
