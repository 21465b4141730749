package store

import (
	"context"
	"fmt"
	"time"
)

// timeLayout is the text encoding of the "at" columns.
const timeLayout = time.RFC3339Nano

// WriteFault appends a fault record and returns its seq.
func (s *Store) WriteFault(ctx context.Context, f FaultRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO faults
		(script_id, script, kind, code, fatal, tick, message, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ScriptID,
		f.Script,
		f.Kind,
		f.Code,
		boolToInt(f.Fatal),
		f.Tick,
		f.Message,
		f.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("write fault: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write fault: %w", err)
	}
	return seq, nil
}

// WriteTransition appends a lifecycle transition and returns its seq.
func (s *Store) WriteTransition(ctx context.Context, tr TransitionRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(script_id, script, from_state, to_state, at)
		VALUES (?, ?, ?, ?, ?)
	`,
		tr.ScriptID,
		tr.Script,
		tr.From,
		tr.To,
		tr.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("write transition: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write transition: %w", err)
	}
	return seq, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
