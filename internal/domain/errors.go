package domain

import (
	"errors"
	"fmt"
)

// ErrKind is the closed set of error kinds the engine returns (spec.md §7).
// It replaces exception-driven control flow with a typed result value: a
// failed apply returns an *EngineError* whose Kind tells the caller (or the
// retry loop) exactly how to react.
type ErrKind string

const (
	// ErrValidationFailed: malformed trade (C1); routed to DLQ, never retried.
	ErrValidationFailed ErrKind = "validation_failed"
	// ErrDuplicateTrade: already-processed trade id (C2); silently a
	// success to the caller, no event written.
	ErrDuplicateTrade ErrKind = "duplicate_trade"
	// ErrVersionConflict: optimistic-lock conflict (C6/C7); retried
	// internally up to a bounded count, surfaces as ErrTransientConflict
	// after exhaustion.
	ErrVersionConflict ErrKind = "version_conflict"
	// ErrTransientConflict: ErrVersionConflict after retries exhausted.
	ErrTransientConflict ErrKind = "transient_conflict"
	// ErrInsufficientQuantity: C4 reduce could not be satisfied by open
	// lots and the caller was not on a direction-change path; fatal for
	// that trade, routed to DLQ.
	ErrInsufficientQuantity ErrKind = "insufficient_quantity"
	// ErrStateMachineInvalid: e.g. INCREASE on NON_EXISTENT (C5); routed
	// to DLQ.
	ErrStateMachineInvalid ErrKind = "state_machine_invalid"
	// ErrTransientDependency: DB/broker failure. The engine returns it to
	// the caller as-is; no engine path retries it.
	ErrTransientDependency ErrKind = "transient_dependency"
	// ErrRetryableError: the kind for an ErrTransientDependency whose
	// retries were exhausted. No engine path returns it.
	ErrRetryableError ErrKind = "retryable_error"
	// ErrFatalSystem: replay invariant violated or corruption detected;
	// dead-letter, alert, requires operator action, never silently
	// proceeds.
	ErrFatalSystem ErrKind = "fatal_system"
)

// Retryable reports whether the engine should retry an operation that
// failed with this kind, as opposed to routing it to a dead-letter sink.
func (k ErrKind) Retryable() bool {
	switch k {
	case ErrVersionConflict, ErrTransientDependency:
		return true
	default:
		return false
	}
}

// DeadLettered reports whether this kind is routed to a dead-letter sink
// rather than returned to a synchronous caller.
func (k ErrKind) DeadLettered() bool {
	switch k {
	case ErrValidationFailed, ErrInsufficientQuantity, ErrStateMachineInvalid, ErrFatalSystem:
		return true
	default:
		return false
	}
}

// EngineError carries the correlation id of the originating trade, a
// machine-readable kind/code, and a human message (spec.md §7
// "Propagation").
type EngineError struct {
	Kind          ErrKind
	CorrelationID string
	Code          string
	Message       string
	Cause         error
}

func (e *EngineError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s[%s] correlation=%s: %s", e.Kind, e.Code, e.CorrelationID, e.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, &EngineError{Kind: ...}) by comparing Kind
// only, so callers can write errors.Is(err, domain.ErrOfKind(domain.ErrFatalSystem)).
func (e *EngineError) Is(target error) bool {
	var other *EngineError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// NewEngineError constructs an EngineError.
func NewEngineError(kind ErrKind, correlationID, code, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, CorrelationID: correlationID, Code: code, Message: message, Cause: cause}
}

// ErrOfKind returns a sentinel EngineError usable with errors.Is to test
// only the Kind field, e.g. errors.Is(err, domain.ErrOfKind(domain.ErrFatalSystem)).
func ErrOfKind(kind ErrKind) error {
	return &EngineError{Kind: kind}
}
