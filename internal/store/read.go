package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReadFaults returns fault records matching filter, ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadFaults(ctx context.Context, filter FaultFilter) ([]FaultRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Script != "" {
		where = append(where, "script = ?")
		args = append(args, filter.Script)
	}
	if len(filter.ScriptIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(filter.ScriptIDs)), ", ")
		where = append(where, "script_id IN ("+marks+")")
		for _, id := range filter.ScriptIDs {
			args = append(args, id)
		}
	}
	if filter.FatalOnly {
		where = append(where, "fatal = 1")
	}

	query := `
		SELECT seq, script_id, script, kind, code, fatal, tick, message, at
		FROM faults`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC"
	if filter.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query faults: %w", err)
	}
	defer rows.Close()

	faults := []FaultRecord{}
	for rows.Next() {
		var (
			f     FaultRecord
			fatal int
			at    string
		)
		if err := rows.Scan(&f.Seq, &f.ScriptID, &f.Script, &f.Kind, &f.Code, &fatal, &f.Tick, &f.Message, &at); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		f.Fatal = fatal == 1
		if f.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("scan fault %d: %w", f.Seq, err)
		}
		faults = append(faults, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faults: %w", err)
	}

	return faults, nil
}

// ReadTransitions returns the lifecycle transitions of one script, ordered
// by seq. An empty scriptID returns every script's transitions.
func (s *Store) ReadTransitions(ctx context.Context, scriptID string) ([]TransitionRecord, error) {
	query := `
		SELECT seq, script_id, script, from_state, to_state, at
		FROM transitions`
	var args []any
	if scriptID != "" {
		query += "\n\t\tWHERE script_id = ?"
		args = append(args, scriptID)
	}
	query += "\n\t\tORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []TransitionRecord{}
	for rows.Next() {
		var (
			tr TransitionRecord
			at string
		)
		if err := rows.Scan(&tr.Seq, &tr.ScriptID, &tr.Script, &tr.From, &tr.To, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if tr.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("scan transition %d: %w", tr.Seq, err)
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	return transitions, nil
}

// CountFaults returns the number of faults recorded for a script name, or
// for all scripts when name is empty.
func (s *Store) CountFaults(ctx context.Context, name string) (int, error) {
	var count int
	var err error
	if name == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults WHERE script = ?`, name).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count faults: %w", err)
	}
	return count, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
