/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The inventory package reuses these and adds its own state-transition
  errors (AlreadySold / AlreadyUnsold).

ERROR CATEGORIES:
  1. Financial rule violations - expected business outcomes the caller
     branches on (InsufficientFunds, InsufficientFundsForReversal, InvalidAmount)
  2. Lookup failures - NotFoundOrUnauthorized
  3. Structural failures - a composite operation failed partway and was
     rolled back (InternalConsistency)

USAGE:
  var funds *ledger.InsufficientFundsError
  if errors.As(err, &funds) {
      // ask the user to top up: funds.Current / funds.Required
  }

SEE ALSO:
  - engine.go: raises these errors
  - inventory/errors.go: inventory state errors
  - api/errors.go: HTTP status mapping
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds blocks a deduction that would drive the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientFundsForReversal blocks undoing a sale whose money is already spent.
	ErrInsufficientFundsForReversal = errors.New("insufficient funds for reversal")

	// ErrInvalidAmount is returned for non-positive top-ups and costs.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFoundOrUnauthorized means the entity is missing, deleted, or owned by someone else.
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")

	// ErrInternalConsistency means a composite operation failed partway.
	// The unit of work was rolled back; the caller may retry.
	ErrInternalConsistency = errors.New("internal consistency failure")

	// ErrValidation is returned for malformed input (empty names, unknown kinds).
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError is returned when a deduction exceeds the balance.
type InsufficientFundsError struct {
	UserID   UserID
	Current  Amount
	Required Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: current %s, required %s", e.Current, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ReversalError is returned when a sale cannot be reversed because the
// balance no longer covers the selling price.
type ReversalError struct {
	UserID   UserID
	ItemID   string
	Current  Amount
	Required Amount
}

func (e *ReversalError) Error() string {
	return fmt.Sprintf("insufficient funds for reversal of item %s: current %s, required %s",
		e.ItemID, e.Current, e.Required)
}

func (e *ReversalError) Unwrap() error {
	return ErrInsufficientFundsForReversal
}

// ConsistencyError wraps a storage failure that aborted a composite operation.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInternalConsistency, e.Err)
}

func (e *ConsistencyError) Unwrap() []error {
	return []error{ErrInternalConsistency, e.Err}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Consistency wraps err as a ConsistencyError unless it already is a
// business outcome that the caller must see unchanged.
func Consistency(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || IsRetryable(err) || errors.Is(err, ErrInternalConsistency) {
		return err
	}
	return &ConsistencyError{Op: op, Err: err}
}

// IsClientError returns true for expected business outcomes.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientFundsForReversal) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrValidation) ||
		isStateError(err)
}

// IsNotFound returns true if the error indicates a missing or foreign entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFoundOrUnauthorized)
}

// IsRetryable returns true if the error might succeed on retry.
// An expired deadline is neither success nor definite failure.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// stateErrors are registered by packages that own state machines
// (inventory registers AlreadySold / AlreadyUnsold).
var stateErrors []error

// RegisterStateError marks err as a client-side state transition error.
// Call from package init only.
func RegisterStateError(err error) {
	stateErrors = append(stateErrors, err)
}

func isStateError(err error) bool {
	for _, s := range stateErrors {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
