package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Process exit codes shared by every mode.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitPrecondition = 3
	ExitPrivilege    = 4
	ExitCancelled    = 130
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PreconditionError reports a host that cannot be provisioned at all: wrong
// OS, too little memory, an occupied port, no usable network identity.
type PreconditionError struct {
	Stage  string
	Fact   string
	Reason string
}

// NewPreconditionError constructs a PreconditionError.
func NewPreconditionError(stage, fact, reason string) error {
	return &PreconditionError{Stage: stage, Fact: fact, Reason: reason}
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Fact != "" {
		return fmt.Sprintf("precondition failed in stage %s: %s (%s)", e.Stage, e.Reason, e.Fact)
	}
	return fmt.Sprintf("precondition failed in stage %s: %s", e.Stage, e.Reason)
}

// ActionError represents a mutating operation (or the probe guarding it)
// that failed. The host may be partially converged; re-running is the
// recovery path.
type ActionError struct {
	Stage string
	Op    string
	Err   error
}

// NewActionError constructs an ActionError.
func NewActionError(stage, op string, err error) error {
	return &ActionError{Stage: stage, Op: op, Err: err}
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("action failed in stage %s: %s: %v", e.Stage, e.Op, e.Err)
	}
	return fmt.Sprintf("action failed in stage %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the root error.
func (e *ActionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConvergenceError signals that an action reported success but the
// post-action probes still show drift.
type ConvergenceError struct {
	Stage  string
	Facts  []string
	Reason string
}

// NewConvergenceError constructs a ConvergenceError.
func NewConvergenceError(stage, reason string, facts []string) error {
	return &ConvergenceError{Stage: stage, Reason: reason, Facts: append([]string(nil), facts...)}
}

func (e *ConvergenceError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("stage %s did not converge: %s", e.Stage, e.Reason)
	if len(e.Facts) > 0 {
		msg += " [" + strings.Join(e.Facts, ", ") + "]"
	}
	return msg
}

// CheckFailure records a failed self-test check. It never aborts the
// harness; it only drives the overall exit status.
type CheckFailure struct {
	Check  string
	Detail string
	Err    error
}

// NewCheckFailure constructs a CheckFailure.
func NewCheckFailure(check, detail string, err error) error {
	return &CheckFailure{Check: check, Detail: detail, Err: err}
}

func (e *CheckFailure) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return fmt.Sprintf("check %s failed: %s", e.Check, e.Detail)
	}
	return fmt.Sprintf("check %s failed", e.Check)
}

// Unwrap exposes the underlying error.
func (e *CheckFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TimeoutError reports a bounded-latency probe that exceeded its budget.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(op string, budget time.Duration) error {
	return &TimeoutError{Op: op, Budget: budget}
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

// Is reports context.DeadlineExceeded equivalence.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// PrivilegeError is returned before any probe runs when a mutating mode is
// invoked without root.
type PrivilegeError struct {
	Mode string
	UID  int
}

// NewPrivilegeError constructs a PrivilegeError.
func NewPrivilegeError(mode string, uid int) error {
	return &PrivilegeError{Mode: mode, UID: uid}
}

func (e *PrivilegeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("insufficient privilege: mode %s must run as root (effective uid %d)", e.Mode, e.UID)
}

// ExitCode maps an error returned by a mode to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		privErr  *PrivilegeError
		preErr   *PreconditionError
		parseErr *ParseError
		valErr   *ValidationError
	)
	switch {
	case errors.As(err, &privErr):
		return ExitPrivilege
	case errors.As(err, &preErr):
		return ExitPrecondition
	case errors.As(err, &parseErr), errors.As(err, &valErr):
		return ExitConfig
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}
