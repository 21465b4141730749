package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventTransition, Script: "bot", From: "idle", To: "awaiting_first_resume"},
		{Seq: 2, Type: EventTransition, Script: "bot", From: "awaiting_first_resume", To: "running"},
		{Seq: 3, Type: EventStep, Op: StepTick, Arg: "2"},
		{Seq: 4, Type: EventTick, Script: "bot", Tick: 1},
		{Seq: 5, Type: EventKeyUp, Script: "bot", Tick: 1, Key: "x"},
		{Seq: 6, Type: EventFault, Script: "bot", Tick: 1, Kind: "handler", Code: "HANDLER_FAULT"},
		{Seq: 7, Type: EventTick, Script: "bot", Tick: 2},
		{Seq: 8, Type: EventTick, Script: "other", Tick: 1},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Event:  EventFault,
		Script: "bot",
		Fields: map[string]any{"kind": "handler", "fatal": false, "tick": 1},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: EventKeyDown,
	})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "key_down")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_WrongFields(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Event:  EventFault,
		Fields: map[string]any{"kind": "tick"},
	})
	assert.Error(t, err)
}

func TestAssertTraceContains_WrongScript(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Event:  EventKeyUp,
		Script: "other",
	})
	assert.Error(t, err)
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"tick:bot", "fault", "tick:bot", "tick:other"},
	})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_Wrong(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"tick:other", "fault:bot"},
	})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "fault:bot not found after tick:other", assertErr.Actual)
}

func TestAssertTraceOrder_RepeatedEventNeedsTwoMatches(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"tick:other", "tick:other"},
	})
	assert.Error(t, err)
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name   string
		a      Assertion
		wantOK bool
	}{
		{"all ticks", Assertion{Event: EventTick, Count: 3}, true},
		{"one script", Assertion{Event: EventTick, Script: "bot", Count: 2}, true},
		{"with fields", Assertion{Event: EventTick, Fields: map[string]any{"tick": 1}, Count: 2}, true},
		{"zero", Assertion{Event: EventKeyDown, Count: 0}, true},
		{"mismatch", Assertion{Event: EventTick, Count: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertTraceCount
			err := assertTraceCount(sampleTrace(), tt.a)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertFinalState(t *testing.T) {
	scripts := map[string]ScriptState{
		"bot": {ID: "script-1", State: "running", Ticks: 4, Faults: 1, View: "> Sound: on"},
	}

	assert.NoError(t, assertFinalState(scripts, Assertion{
		Script: "bot", State: "running", Ticks: ptr(int64(4)), Faults: ptr(1), View: "Sound: on",
	}))

	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"unknown script", Assertion{Script: "ghost", State: "running"}, "script not loaded"},
		{"state", Assertion{Script: "bot", State: "stopped"}, "state running"},
		{"ticks", Assertion{Script: "bot", Ticks: ptr(int64(5))}, "4 ticks"},
		{"faults", Assertion{Script: "bot", Faults: ptr(0)}, "1 faults"},
		{"view", Assertion{Script: "bot", View: "Sound: off"}, `view "> Sound: on"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(scripts, tt.a)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.(*AssertionError).Actual)
		})
	}
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of tick",
		Actual:   "3 occurrences",
		Trace:    sampleTrace()[3:5],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[4] tick script=bot tick=1")
	assert.Contains(t, msg, "[5] key_up key=x script=bot tick=1")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Scripts["bot"] = ScriptState{State: "running", Ticks: 2}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Event: EventTick, Count: 3},
		{Type: AssertTraceCount, Event: EventTick, Count: 9},
		{Type: AssertFinalState, Script: "bot", State: "stopped"},
		{Type: "bogus"},
	})

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "9 occurrences of tick")
	assert.Contains(t, errs[1], "final_state")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
