/*
errors.go - Centralized error types for the budget engine

ERROR CLASSES:
  ErrValidation        bad input, rejected before any write
  ErrStateConflict     operation not allowed in the current state, no side effect
  ErrStoreUnavailable  transport failure, retryable
  ErrNotFound          referenced record does not exist

  Specific sentinels wrap one class, so both of these hold:

    errors.Is(err, ErrAlreadySettled)
    errors.Is(err, ErrStateConflict)

USAGE:
  if budget.IsRetryable(err) {
      // re-run the remaining steps; see settlement.go / rollover.go
  }
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation       = errors.New("validation failed")
	ErrStateConflict    = errors.New("state conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")

	// ErrDuplicateIdempotencyKey is returned by a store when a record with
	// the same idempotency key was already appended. Multi-step sequences
	// treat it as "this step is already confirmed".
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

var (
	ErrAlreadySettled     = fmt.Errorf("%w: period already settled", ErrStateConflict)
	ErrInsufficientWallet = fmt.Errorf("%w: insufficient wallet remainder", ErrStateConflict)
	ErrActivePeriodExists = fmt.Errorf("%w: an active period already exists", ErrStateConflict)
	ErrNoActivePeriod     = fmt.Errorf("%w: no active period", ErrStateConflict)
	ErrSessionStage       = fmt.Errorf("%w: rollover session is at a different stage", ErrStateConflict)
	ErrInactiveRecord     = fmt.Errorf("%w: record is not active", ErrStateConflict)
	ErrEarlySettlement    = fmt.Errorf("%w: period has not ended, early settlement not confirmed", ErrStateConflict)

	ErrPeriodNotFound   = fmt.Errorf("period %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrSubTagNotFound   = fmt.Errorf("sub-tag %w", ErrNotFound)
	ErrGoalNotFound     = fmt.Errorf("saving goal %w", ErrNotFound)
	ErrBankNotFound     = fmt.Errorf("bank account %w", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("rollover session %w", ErrNotFound)
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError wraps a transport failure from a store implementation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// Unavailable wraps err as a StoreError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// InsufficientWalletError carries the numbers behind a negative remainder.
type InsufficientWalletError struct {
	Wallet    Money
	Requested Money
	Shortfall Money
}

func (e *InsufficientWalletError) Error() string {
	return fmt.Sprintf("insufficient wallet remainder: wallet %s, requested %s, shortfall %s",
		e.Wallet, e.Requested, e.Shortfall)
}

func (e *InsufficientWalletError) Unwrap() error { return ErrInsufficientWallet }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrStateConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
