package script

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes scheduler errors.
type ErrorCode string

const (
	// ErrCodeIllegalContext indicates Wait/Yield was called outside the
	// script's active dispatch goroutine, or on a script that is not running.
	ErrCodeIllegalContext ErrorCode = "ILLEGAL_CONTEXT"

	// ErrCodeHandlerFault indicates a key handler returned an error or panicked.
	// Non-fatal: the tick of the same iteration still runs.
	ErrCodeHandlerFault ErrorCode = "HANDLER_FAULT"

	// ErrCodeTickFault indicates the tick callback returned an error or panicked.
	// Always fatal to the script.
	ErrCodeTickFault ErrorCode = "TICK_FAULT"

	// ErrCodeAborted indicates the script was interrupted while waiting.
	ErrCodeAborted ErrorCode = "ABORTED"

	// ErrCodeNotRunning indicates a driver operation on a script that is not
	// (or no longer) running.
	ErrCodeNotRunning ErrorCode = "NOT_RUNNING"

	// ErrCodeAlreadyAdmitted indicates Admit was called more than once.
	ErrCodeAlreadyAdmitted ErrorCode = "ALREADY_ADMITTED"

	// ErrCodeTeardownFault indicates the hosting domain could not join the
	// script goroutine within its teardown budget.
	ErrCodeTeardownFault ErrorCode = "TEARDOWN_FAULT"
)

// Error is a scheduler error with a code for programmatic matching.
//
// Two errors match under errors.Is when their codes are equal, so callers can
// test against the sentinels:
//
//	if errors.Is(err, script.ErrIllegalContext) { ... }
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Script names the affected script, if known.
	Script string

	// Err is the underlying cause (the handler's error for faults).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Script != "" {
		msg = fmt.Sprintf("%s (script=%s)", msg, e.Script)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching.
var (
	ErrIllegalContext = &Error{Code: ErrCodeIllegalContext, Message: "wait called outside the script main loop"}
	ErrAborted        = &Error{Code: ErrCodeAborted, Message: "script aborted"}
	ErrNotRunning     = &Error{Code: ErrCodeNotRunning, Message: "script is not running"}
)

// IsIllegalContext returns true if err is an illegal-context error.
func IsIllegalContext(err error) bool {
	return errors.Is(err, ErrIllegalContext)
}

// IsAborted returns true if err reports an interrupted wait.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

func newError(code ErrorCode, script, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Script:  script,
		Err:     cause,
	}
}

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// NewError creates a coded error for codes owned outside the scheduler,
// such as the domain's TEARDOWN_FAULT.
func NewError(code ErrorCode, script, message string, cause error) *Error {
	return newError(code, script, message, cause)
}
