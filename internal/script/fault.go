package script

import (
	"context"
	"log/slog"
	"time"
)

// FaultKind distinguishes the outcomes of a dispatch.
type FaultKind int

const (
	// FaultNone means every handler returned normally.
	FaultNone FaultKind = iota
	// FaultHandler means a key handler failed. Non-fatal.
	FaultHandler
	// FaultTick means the tick callback failed. Fatal.
	FaultTick
	// FaultTeardown means the domain gave up joining the script goroutine.
	// Reported by the domain, never by the loop.
	FaultTeardown
)

// String returns the journal name of the kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultHandler:
		return "handler"
	case FaultTick:
		return "tick"
	case FaultTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Fatal reports whether a fault of this kind aborts the script.
func (k FaultKind) Fatal() bool {
	return k == FaultTick || k == FaultTeardown
}

// ParseFaultKind is the inverse of FaultKind.String.
func ParseFaultKind(s string) FaultKind {
	switch s {
	case "handler":
		return FaultHandler
	case "tick":
		return FaultTick
	case "teardown":
		return FaultTeardown
	default:
		return FaultNone
	}
}

// dispatchResult is the outcome of one dispatch. The main loop branches on
// kind rather than on panics or error plumbing.
type dispatchResult struct {
	kind FaultKind
	err  error
}

func (r dispatchResult) ok() bool {
	return r.kind == FaultNone
}

// Fault is a script error caught at the dispatch boundary.
type Fault struct {
	ScriptID string
	Script   string
	Kind     FaultKind
	Err      error
	Fatal    bool
	Tick     int64
	Time     time.Time
}

// Reporter receives faults from every script of a process.
//
// Report is called on the faulting script's goroutine and must not panic;
// a panicking reporter is recovered and logged so that it can never unwind
// through the scheduler.
type Reporter interface {
	Report(f Fault)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(f Fault)

// Report calls fn(f).
func (fn ReporterFunc) Report(f Fault) {
	fn(f)
}

// Reporters fans a fault out to several reporters in order.
type Reporters []Reporter

// Report forwards f to each reporter. A panicking reporter does not stop
// the others.
func (rs Reporters) Report(f Fault) {
	for _, r := range rs {
		safeReport(r, f)
	}
}

// LogReporter writes faults to slog.
type LogReporter struct {
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Report logs the fault at error level for fatal faults, warn otherwise.
func (r LogReporter) Report(f Fault) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelWarn
	if f.Fatal {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "script fault",
		"script", f.Script,
		"id", f.ScriptID,
		"kind", f.Kind.String(),
		"fatal", f.Fatal,
		"tick", f.Tick,
		"error", f.Err,
	)
}

func safeReport(r Reporter, f Fault) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("fault reporter panicked",
				"script", f.Script,
				"kind", f.Kind.String(),
				"panic", p,
			)
		}
	}()
	r.Report(f)
}
