package store

import "time"

// FaultRecord is one row of the faults table.
type FaultRecord struct {
	Seq      int64
	ScriptID string
	Script   string
	Kind     string
	Code     string
	Fatal    bool
	Tick     int64
	Message  string
	At       time.Time
}

// TransitionRecord is one row of the transitions table.
type TransitionRecord struct {
	Seq      int64
	ScriptID string
	Script   string
	From     string
	To       string
	At       time.Time
}

// FaultFilter narrows ReadFaults. Zero values match everything.
type FaultFilter struct {
	// Script matches the script name exactly.
	Script string
	// ScriptIDs matches any of the given script identities. Names repeat
	// across runs of a persistent journal; identities do not.
	ScriptIDs []string
	// FatalOnly restricts to fatal faults.
	FatalOnly bool
	// Limit caps the number of rows; 0 means no limit.
	Limit int
}
