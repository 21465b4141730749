package harness

import (
	"sort"
	"sync"
)

// Trace event types.
const (
	EventStep       = "step"
	EventTransition = "transition"
	EventTick       = "tick"
	EventKeyDown    = "key_down"
	EventKeyUp      = "key_up"
	EventFault      = "fault"
)

// TraceEvent is one observable thing that happened during a scenario.
// Which fields are set depends on Type.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Script string `json:"script,omitempty"`

	// step
	Op  string `json:"op,omitempty"`
	Arg string `json:"arg,omitempty"`

	// transition
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// tick, key_*, fault
	Tick int64  `json:"tick,omitempty"`
	Key  string `json:"key,omitempty"`

	// fault
	Kind  string `json:"kind,omitempty"`
	Code  string `json:"code,omitempty"`
	Fatal bool   `json:"fatal,omitempty"`
}

// Fields returns the event as a map with only the fields its type uses.
// This is the shape used for golden files and trace_contains matching.
func (e TraceEvent) Fields() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
	}
	if e.Script != "" {
		m["script"] = e.Script
	}

	switch e.Type {
	case EventStep:
		m["op"] = e.Op
		if e.Arg != "" {
			m["arg"] = e.Arg
		}
	case EventTransition:
		m["from"] = e.From
		m["to"] = e.To
	case EventTick:
		m["tick"] = e.Tick
	case EventKeyDown, EventKeyUp:
		m["tick"] = e.Tick
		m["key"] = e.Key
	case EventFault:
		m["tick"] = e.Tick
		m["kind"] = e.Kind
		m["code"] = e.Code
		m["fatal"] = e.Fatal
	}
	return m
}

// ScriptState is the final state of one script.
type ScriptState struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Ticks  int64  `json:"ticks"`
	Faults int    `json:"faults"`
	View   string `json:"view,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every recorded event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Scripts maps script name to its final state.
	Scripts map[string]ScriptState `json:"scripts"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Scripts: make(map[string]ScriptState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// recorder collects events from the driver, script and join goroutines.
//
// Events are buffered per step. flush orders the buffer by script load
// order, keeping each script's own events in the order they happened, so
// the trace does not depend on how script goroutines interleave with
// teardown joins.
type recorder struct {
	mu      sync.Mutex
	order   map[string]int
	pending []TraceEvent
	trace   []TraceEvent
	seq     int64
}

func newRecorder() *recorder {
	return &recorder{order: make(map[string]int)}
}

// register fixes a script's place in the trace order.
func (r *recorder) register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.order[name]; !ok {
		r.order[name] = len(r.order)
	}
}

func (r *recorder) record(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ev)
}

// flush moves the pending events into the trace. Step events sort first.
func (r *recorder) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	rank := func(ev TraceEvent) int {
		if ev.Type == EventStep {
			return -1
		}
		if i, ok := r.order[ev.Script]; ok {
			return i
		}
		return len(r.order)
	}
	sort.SliceStable(r.pending, func(i, j int) bool {
		return rank(r.pending[i]) < rank(r.pending[j])
	})

	for _, ev := range r.pending {
		r.seq++
		ev.Seq = r.seq
		r.trace = append(r.trace, ev)
	}
	r.pending = r.pending[:0]
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.trace))
	copy(out, r.trace)
	return out
}
