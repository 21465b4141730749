package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRun_TicksAndFinalState(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Scripts: []ScriptDef{
			{Name: "bot", Code: "function tick() {}"},
		},
		Steps: []Step{{Tick: 3}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventTick, Script: "bot", Count: 3},
			{Type: AssertFinalState, Script: "bot", State: "running", Ticks: ptr(int64(3)), Faults: ptr(0)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	st := result.Scripts["bot"]
	assert.Equal(t, "script-1", st.ID)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, int64(3), st.Ticks)

	// Two launch transitions, one step, three ticks.
	require.Len(t, result.Trace, 6)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, EventStep, result.Trace[2].Type)
	assert.Equal(t, int64(3), result.Trace[5].Tick)
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "expects more ticks than it runs",
		Scripts: []ScriptDef{
			{Name: "bot", Code: "function tick() {}"},
		},
		Steps: []Step{{Tick: 1}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventTick, Count: 5},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "5 occurrences of tick")
	assert.Contains(t, result.Errors[0], "1 occurrences")
}

func TestRun_TickFaultTearsDown(t *testing.T) {
	scenario := &Scenario{
		Name:        "fault",
		Description: "tick throws on the first tick",
		Scripts: []ScriptDef{
			{Name: "crash", Code: `function tick() { throw new Error("boom"); }`},
			{Name: "steady", Code: "function tick() {}"},
		},
		Steps: []Step{{Tick: 2}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Script: "crash", State: "stopped", Ticks: ptr(int64(1)), Faults: ptr(1)},
			{Type: AssertFinalState, Script: "steady", State: "running", Ticks: ptr(int64(2))},
			{Type: AssertTraceOrder, Events: []string{"fault:crash", "transition:crash", "tick:steady", "tick:steady"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ClockPacesInterval(t *testing.T) {
	scenario := &Scenario{
		Name:        "interval",
		Description: "250ms interval",
		Scripts: []ScriptDef{
			{Name: "slow", Interval: "250ms", Code: "function tick() {}"},
		},
		Steps: []Step{
			{Tick: 5},
			{Clock: "200ms"},
			{Tick: 5},
			{Clock: "50ms"},
			{Tick: 1},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Script: "slow", Ticks: ptr(int64(2))},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_KeyDownAndUpSeparately(t *testing.T) {
	scenario := &Scenario{
		Name:        "keys",
		Description: "separate key steps",
		Scripts: []ScriptDef{
			{Name: "bot", Code: "function tick() {}"},
		},
		Steps: []Step{
			{KeyDown: "shift"},
			{Tick: 1},
			{KeyUp: "shift"},
			{Tick: 1},
		},
		Assertions: []Assertion{
			{Type: AssertTraceOrder, Events: []string{"key_down:bot", "tick:bot", "key_up:bot", "tick:bot"}},
			{Type: AssertTraceContains, Event: EventKeyUp, Fields: map[string]any{"key": "shift", "tick": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CompileErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "broken",
		Description: "syntax error",
		Scripts: []ScriptDef{
			{Name: "bad", Code: "function tick( {"},
		},
		Steps:      []Step{{Tick: 1}},
		Assertions: []Assertion{{Type: AssertTraceCount, Event: EventTick, Count: 0}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch scripts")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/abort_while_waiting.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(scenario)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, again.Trace)
	}
}

func TestRecorder_FlushGroupsByScript(t *testing.T) {
	r := newRecorder()
	r.register("a")
	r.register("b")

	r.record(TraceEvent{Type: EventTick, Script: "b", Tick: 1})
	r.record(TraceEvent{Type: EventTick, Script: "a", Tick: 1})
	r.record(TraceEvent{Type: EventStep, Op: StepTick, Arg: "1"})
	r.record(TraceEvent{Type: EventTransition, Script: "a", From: "running", To: "aborting"})
	r.record(TraceEvent{Type: EventTick, Script: "b", Tick: 2})
	r.flush()

	got := r.events()
	require.Len(t, got, 5)

	var order []string
	for _, ev := range got {
		order = append(order, ev.Type+":"+ev.Script)
	}
	assert.Equal(t, []string{"step:", "tick:a", "transition:a", "tick:b", "tick:b"}, order)
	assert.Equal(t, int64(1), got[3].Tick)
	assert.Equal(t, int64(5), got[4].Seq)

	r.record(TraceEvent{Type: EventTick, Script: "a", Tick: 2})
	r.flush()
	got = r.events()
	assert.Equal(t, int64(6), got[5].Seq)
}
