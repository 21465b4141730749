package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/tickhost/internal/script"
)

// Journal writes script faults and lifecycle transitions to a Store.
//
// It implements script.Reporter, and Observe has the script.StateObserver
// signature. Both run on script and domain goroutines; write errors are
// logged and swallowed, since a failing journal must not take scripts down.
type Journal struct {
	store *Store
	now   func() time.Time
}

// NewJournal creates a journal over s. A nil now uses time.Now.
func NewJournal(s *Store, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{store: s, now: now}
}

// Report implements script.Reporter.
func (j *Journal) Report(f script.Fault) {
	at := f.Time
	if at.IsZero() {
		at = j.now()
	}

	rec := FaultRecord{
		ScriptID: f.ScriptID,
		Script:   f.Script,
		Kind:     f.Kind.String(),
		Code:     faultCode(f.Err),
		Fatal:    f.Fatal,
		Tick:     f.Tick,
		At:       at,
	}
	if f.Err != nil {
		rec.Message = f.Err.Error()
	}

	if _, err := j.store.WriteFault(context.Background(), rec); err != nil {
		slog.Error("journal fault failed", "script", f.Script, "error", err)
	}
}

// Observe records a lifecycle transition. Pass it to
// host.WithStateObserver.
func (j *Journal) Observe(s *script.Script, from, to script.State) {
	rec := TransitionRecord{
		ScriptID: s.ID(),
		Script:   s.Name(),
		From:     from.String(),
		To:       to.String(),
		At:       j.now(),
	}
	if _, err := j.store.WriteTransition(context.Background(), rec); err != nil {
		slog.Error("journal transition failed", "script", s.Name(), "error", err)
	}
}

func faultCode(err error) string {
	var se *script.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return ""
}
