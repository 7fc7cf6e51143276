package verify

import (
	"errors"
	"fmt"

	"sectionbot/internal/metrics"
)

// Reasons a workflow refuses to act. None of them mutate anything
type Reason string

const (
	AlreadyAssigned  Reason = "AlreadyAssigned"
	IdAlreadyClaimed Reason = "IdAlreadyClaimed"
	UnknownId        Reason = "UnknownId"
	NotVerified      Reason = "NotVerified"
	IdMismatch       Reason = "IdMismatch"
	RecordNotFound   Reason = "RecordNotFound"
	RateLimited      Reason = "RateLimited"
)

type GuardError struct {
	Reason Reason
	// Role already held by the caller, for AlreadyAssigned,
	// or role claimed by someone else, for IdAlreadyClaimed
	Role string
}

func (e *GuardError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("guard failed: %s (%s)", e.Reason, e.Role)
	}
	return fmt.Sprintf("guard failed: %s", e.Reason)
}

func guard(reason Reason) error {
	return &GuardError{Reason: reason}
}

// IsGuard reports whether err is a guard failure with the given reason
func IsGuard(err error, reason Reason) bool {
	var guardErr *GuardError
	return errors.As(err, &guardErr) && guardErr.Reason == reason
}

// Returned by Guild implementations when discord refuses
// an action because the bot lacks the rights for it
var ErrForbidden = errors.New("missing permissions")

// The bot could not perform one of the effects of a workflow.
// Effects performed before this one are kept
type PermissionError struct {
	Action string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("could not %s: %v", e.Action, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

func wrapAction(action string, err error) error {
	if errors.Is(err, ErrForbidden) {
		return &PermissionError{Action: action, Err: err}
	}
	return fmt.Errorf("could not %s: %w", action, err)
}

// Label used when recording the outcome of a workflow
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return string(guardErr.Reason)
	}
	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return metrics.OutcomePermission
	}
	return metrics.OutcomeError
}

func restoreOutcome(restored bool, err error) string {
	switch {
	case err != nil:
		return outcome(err)
	case restored:
		return metrics.OutcomeRestored
	default:
		return metrics.OutcomeSkipped
	}
}
