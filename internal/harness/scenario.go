package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of a domain: which scripts to launch, which
// driver steps to perform, and what the resulting trace must show.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scripts are launched in order before the first step.
	Scripts []ScriptDef `yaml:"scripts"`

	// Steps drive the domain, one at a time.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and script states.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ScriptDef describes one JavaScript script. Exactly one of Code and
// Source is set.
type ScriptDef struct {
	Name string `yaml:"name"`

	// Interval is the initial tick interval, e.g. "100ms". Empty means zero.
	Interval string `yaml:"interval,omitempty"`

	// Code is inline JavaScript.
	Code string `yaml:"code,omitempty"`

	// Source is a path to a JavaScript file, relative to the scenario file.
	Source string `yaml:"source,omitempty"`
}

// Step is one driver action. Exactly one field is set.
type Step struct {
	// Tick runs that many domain ticks.
	Tick int `yaml:"tick,omitempty"`

	// Clock advances the manual clock, e.g. "250ms".
	Clock string `yaml:"clock,omitempty"`

	// Key queues a key-down followed by a key-up.
	Key string `yaml:"key,omitempty"`

	KeyDown string `yaml:"key_down,omitempty"`
	KeyUp   string `yaml:"key_up,omitempty"`

	// Abort tears down the named script and waits until it is stopped.
	Abort string `yaml:"abort,omitempty"`
}

// Op returns the step's operation name and argument.
func (s Step) Op() (op, arg string) {
	switch {
	case s.Tick > 0:
		return StepTick, fmt.Sprint(s.Tick)
	case s.Clock != "":
		return StepClock, s.Clock
	case s.Key != "":
		return StepKey, s.Key
	case s.KeyDown != "":
		return StepKeyDown, s.KeyDown
	case s.KeyUp != "":
		return StepKeyUp, s.KeyUp
	case s.Abort != "":
		return StepAbort, s.Abort
	}
	return "", ""
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{s.Tick != 0, s.Clock != "", s.Key != "", s.KeyDown != "", s.KeyUp != "", s.Abort != ""} {
		if set {
			n++
		}
	}
	return n
}

// Step operation names.
const (
	StepTick    = "tick"
	StepClock   = "clock"
	StepKey     = "key"
	StepKeyDown = "key_down"
	StepKeyUp   = "key_up"
	StepAbort   = "abort"
)

// Assertion validates the trace or the final state of a script.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event type (and Script) appears, with Fields
	// - "trace_order": Events appear in this relative order
	// - "trace_count": Event (for Script) appears exactly Count times
	// - "final_state": Script ends in State, with Ticks, Faults and View
	Type string `yaml:"type"`

	// Event is a trace event type: step, transition, tick, key_down, key_up, fault.
	Event string `yaml:"event,omitempty"`

	// Script restricts the assertion to one script. Empty matches any.
	Script string `yaml:"script,omitempty"`

	// Fields are expected event fields (used by trace_contains).
	// Subset match: only the listed fields are compared.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Events is the expected order (used by trace_order). Each entry is
	// "type" or "type:script".
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected lifecycle state name (used by final_state).
	State string `yaml:"state,omitempty"`

	// Ticks is the expected tick count (used by final_state).
	Ticks *int64 `yaml:"ticks,omitempty"`

	// Faults is the expected number of journaled faults (used by final_state).
	Faults *int `yaml:"faults,omitempty"`

	// View must be a substring of the last drawn view frame (used by final_state).
	View string `yaml:"view,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Script sources are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range scenario.Scripts {
		src := scenario.Scripts[i].Source
		if src != "" && !filepath.IsAbs(src) {
			scenario.Scripts[i].Source = filepath.Join(base, src)
		}
	}

	if err := validateSources(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative sources are left as is.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Scripts) == 0 {
		return fmt.Errorf("scripts list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Scripts))
	for i, def := range s.Scripts {
		if def.Name == "" {
			return fmt.Errorf("scripts[%d]: name is required", i)
		}
		if names[def.Name] {
			return fmt.Errorf("scripts[%d]: duplicate name %q", i, def.Name)
		}
		names[def.Name] = true

		if (def.Code == "") == (def.Source == "") {
			return fmt.Errorf("scripts[%d]: exactly one of code and source is required", i)
		}
		if def.Interval != "" {
			d, err := time.ParseDuration(def.Interval)
			if err != nil {
				return fmt.Errorf("scripts[%d]: interval: %w", i, err)
			}
			if d < 0 {
				return fmt.Errorf("scripts[%d]: interval must not be negative", i)
			}
		}
	}

	for i, step := range s.Steps {
		if step.Tick < 0 {
			return fmt.Errorf("steps[%d]: tick must be positive", i)
		}
		if step.count() != 1 {
			return fmt.Errorf("steps[%d]: exactly one of tick, clock, key, key_down, key_up, abort is required", i)
		}
		if step.Clock != "" {
			if _, err := time.ParseDuration(step.Clock); err != nil {
				return fmt.Errorf("steps[%d]: clock: %w", i, err)
			}
		}
		if step.Abort != "" && !names[step.Abort] {
			return fmt.Errorf("steps[%d]: abort: unknown script %q", i, step.Abort)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

func validateSources(s *Scenario) error {
	for i, def := range s.Scripts {
		if def.Source == "" {
			continue
		}
		if _, err := os.Stat(def.Source); err != nil {
			return fmt.Errorf("scripts[%d]: source not found: %s", i, def.Source)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Script != "" && !names[a.Script] {
		return fmt.Errorf("assertions[%d]: unknown script %q", index, a.Script)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: at least two events are required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Script == "" {
			return fmt.Errorf("assertions[%d]: script is required for final_state", index)
		}
		if a.State == "" && a.Ticks == nil && a.Faults == nil && a.View == "" {
			return fmt.Errorf("assertions[%d]: final_state needs one of state, ticks, faults, view", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
