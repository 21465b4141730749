package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describe(event))
		}
	}

	return buf.String()
}

// describe renders an event on one line, fields in key order.
func describe(ev TraceEvent) string {
	fields := ev.Fields()
	delete(fields, "seq")
	delete(fields, "type")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{ev.Type}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

// matches reports whether ev has the given type and, if script is set,
// belongs to that script.
func matches(ev TraceEvent, eventType, script string) bool {
	if ev.Type != eventType {
		return false
	}
	return script == "" || ev.Script == script
}

// parseEventRef splits "type" or "type:script".
func parseEventRef(ref string) (eventType, script string) {
	eventType, script, _ = strings.Cut(ref, ":")
	return eventType, script
}

// assertTraceContains checks if the trace contains an event of the given
// type whose fields include the expected ones (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion.Event, assertion.Script) && matchFields(event.Fields(), assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event%s with fields %v", assertion.Event, forScript(assertion.Script), assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events appear in the specified order.
// Events don't need to be consecutive; each one is matched after the
// previous match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, ref := range assertion.Events {
		eventType, script := parseEventRef(ref)

		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if matches(ev, eventType, script) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("%s not found", ref)
			if i > 0 {
				actual = fmt.Sprintf("%s not found after %s", ref, assertion.Events[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion.Event, assertion.Script) && matchFields(event.Fields(), assertion.Fields) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s%s", assertion.Count, assertion.Event, forScript(assertion.Script)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the final state of one script.
func assertFinalState(scripts map[string]ScriptState, assertion Assertion) error {
	st, ok := scripts[assertion.Script]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("script %s", assertion.Script),
			Actual:   "script not loaded",
		}
	}

	if assertion.State != "" && st.State != assertion.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s in state %s", assertion.Script, assertion.State),
			Actual:   fmt.Sprintf("state %s", st.State),
		}
	}
	if assertion.Ticks != nil && st.Ticks != *assertion.Ticks {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s ticked %d times", assertion.Script, *assertion.Ticks),
			Actual:   fmt.Sprintf("%d ticks", st.Ticks),
		}
	}
	if assertion.Faults != nil && st.Faults != *assertion.Faults {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s journaled %d faults", assertion.Script, *assertion.Faults),
			Actual:   fmt.Sprintf("%d faults", st.Faults),
		}
	}
	if assertion.View != "" && !strings.Contains(st.View, assertion.View) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s view containing %q", assertion.Script, assertion.View),
			Actual:   fmt.Sprintf("view %q", st.View),
		}
	}
	return nil
}

func forScript(script string) string {
	if script == "" {
		return ""
	}
	return " for " + script
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values for equality. YAML decodes integers as
// int while trace fields are int64, so integers compare by value.
func valuesEqual(actual, expected any) bool {
	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}
	return reflect.DeepEqual(actual, expected)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Scripts, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
