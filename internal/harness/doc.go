// Package harness runs YAML scenarios against a hosting domain and checks
// the resulting trace.
//
// # Scenario Format
//
//	name: menu_toggle
//	description: "Enter flips the selected toggle"
//	scripts:
//	  - name: menu
//	    interval: 100ms        # optional
//	    code: |                # inline JavaScript, or source: menu.js
//	      function init() { view.push("Options", [{toggle: "Sound"}]) }
//	steps:
//	  - tick: 1                # run one domain tick
//	  - key: enter             # key-down then key-up to every running script
//	  - key_down: a
//	  - key_up: a
//	  - clock: 100ms           # advance the manual clock
//	  - abort: menu            # tear a script down
//	assertions:
//	  - type: trace_contains
//	    event: fault
//	    script: menu
//	    fields: { kind: handler }
//	  - type: trace_order
//	    events: [ "key_up:menu", "tick:menu" ]
//	  - type: trace_count
//	    event: tick
//	    count: 2
//	  - type: final_state
//	    script: menu
//	    state: running
//	    ticks: 2
//	    faults: 0
//	    view: "Sound: on"
//
// # Trace
//
// The trace records steps, lifecycle transitions, tick and key dispatches,
// and faults. Every scenario runs with a manual clock starting at Epoch,
// sequential script IDs and a fresh in-memory journal, and every step
// waits for the teardowns it triggered. Within a step, events are grouped
// by script in launch order. The same scenario therefore always produces
// the same trace, and golden files hold it as canonical JSON lines.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/menu_toggle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        fmt.Println(msg)
//	    }
//	}
package harness
