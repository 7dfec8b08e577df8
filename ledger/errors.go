/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / errors.As or the helpers below.

ERROR CATEGORIES:
  1. Validation errors - Business rules checked before Apply
  2. Not-found errors  - Referenced project/user/log id absent
  3. Invariant errors  - A log entry the reversal tables cannot handle
  4. Conflict errors   - A reversal whose target no longer accepts it

GUARANTEE:
  A non-nil error from Apply or Validate means the state was not touched.
  Reversal and amendment failures leave the log entry in place.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrGoalExceeded is returned when funding would push current above goal.
	ErrGoalExceeded = errors.New("funding exceeds project goal")

	// ErrInsufficientProjectFunds is returned when withdrawing more than current.
	ErrInsufficientProjectFunds = errors.New("insufficient project funds")

	// ErrIllegalTransition is returned for lifecycle moves the state machine forbids.
	ErrIllegalTransition = errors.New("illegal project status transition")

	// ErrProjectClosed is returned when editing or deleting a non-active project.
	ErrProjectClosed = errors.New("project is not active")

	// ErrInvalidGoal is returned for a negative goal or one below current funds.
	ErrInvalidGoal = errors.New("invalid project goal")

	// ErrInvalidProject is returned for a project without a name.
	ErrInvalidProject = errors.New("invalid project")

	// ErrInvalidSpendingType is returned when spending claims a reserved type.
	ErrInvalidSpendingType = errors.New("invalid spending type")

	// ErrInvalidUser is returned for structurally invalid users.
	ErrInvalidUser = errors.New("invalid user")

	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrLastOwner is returned when removing or demoting the only owner.
	ErrLastOwner = errors.New("cannot remove the last owner")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrLogNotFound is returned by DeleteLog and AmendLog for unknown ids.
	ErrLogNotFound = errors.New("log entry not found")

	// ErrNoReversalRule is returned when a log kind has no inverse.
	ErrNoReversalRule = errors.New("no reversal rule for log kind")

	// ErrNoAmendmentRule is returned when a log kind cannot be re-scaled.
	ErrNoAmendmentRule = errors.New("no amendment rule for log kind")

	// ErrReversalConflict is returned when the entity a log entry adjusted is
	// gone or no longer in a state where the adjustment makes sense.
	ErrReversalConflict = errors.New("log entry can no longer be reversed")

	// ErrUnknownAction is returned for action types the processor does not know.
	ErrUnknownAction = errors.New("unknown action")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// HeadroomError details a rejected funding.
type HeadroomError struct {
	ProjectID ID
	Current   Money
	Goal      Money
	Requested Money
}

func (e *HeadroomError) Error() string {
	return fmt.Sprintf("cannot fund project %d with %s: remaining space %s",
		e.ProjectID, e.Requested, e.Goal.Sub(e.Current))
}

func (e *HeadroomError) Unwrap() error { return ErrGoalExceeded }

// ProjectFundsError details a rejected withdrawal.
type ProjectFundsError struct {
	ProjectID ID
	Current   Money
	Requested Money
}

func (e *ProjectFundsError) Error() string {
	return fmt.Sprintf("cannot withdraw %s from project %d: current %s",
		e.Requested, e.ProjectID, e.Current)
}

func (e *ProjectFundsError) Unwrap() error { return ErrInsufficientProjectFunds }

// TransitionError details a rejected lifecycle move.
type TransitionError struct {
	ProjectID ID
	From      ProjectStatus
	To        ProjectStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("project %d: cannot move from %s to %s", e.ProjectID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// LogError ties a reversal/amendment failure to the entry that caused it.
type LogError struct {
	LogID ID
	Kind  Kind
	Op    string // "delete" or "amend"
	Err   error
}

func (e *LogError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s log %d: %v", e.Op, e.LogID, e.Err)
	}
	return fmt.Sprintf("%s log %d (%s): %v", e.Op, e.LogID, e.Kind, e.Err)
}

func (e *LogError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrGoalExceeded) ||
		errors.Is(err, ErrInsufficientProjectFunds) ||
		errors.Is(err, ErrInvalidGoal) ||
		errors.Is(err, ErrInvalidProject) ||
		errors.Is(err, ErrInvalidSpendingType) ||
		errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrUnknownAction)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrLogNotFound)
}

// IsConflict returns true if the request is valid but the current state
// does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrProjectClosed) ||
		errors.Is(err, ErrDuplicateUsername) ||
		errors.Is(err, ErrLastOwner) ||
		errors.Is(err, ErrReversalConflict) ||
		errors.Is(err, ErrNoReversalRule) ||
		errors.Is(err, ErrNoAmendmentRule)
}
