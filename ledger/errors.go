/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is against the sentinels and pull detail
  (current balance, corrected boundary values) out of the structured
  types with errors.As.

ERROR CATEGORIES:
  1. Validation errors - A business rule was violated. When the corrected
     boundary is computable (maximum withdrawable amount, leftover cases)
     it rides along in the error.
  2. Funds errors - Distinct from validation because they always carry the
     account's current balance.
  3. Store errors - The underlying store could not be reached; retried at
     the gateway before surfacing, with a lock diagnosis attached.

USAGE:
  var vErr *ledger.ValidationError
  if errors.As(err, &vErr) && vErr.Limit != nil {
      // show the operator the corrected amount
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when no account matches the given client or
	// card number.
	ErrNotFound = errors.New("account not found")

	// ErrValidation is returned when an operation violates a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds is returned when a withdrawal exceeds what the
	// account can pay out under its kind's rules.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCapacityExceeded is returned when a fixed deposit would overflow
	// the booklet. No partial allocation is ever committed.
	ErrCapacityExceeded = errors.New("booklet capacity exceeded")

	// ErrAccountBlocked is returned when the account's status forbids the
	// operation.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrStoreUnavailable is returned after the persistence gateway has
	// exhausted its retry budget against a locked or unreachable store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDuplicateReference is returned when an operation reference code
	// collides with an existing record.
	ErrDuplicateReference = errors.New("duplicate reference")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a violated rule. Limit, when non-nil, is the
// corrected boundary value the caller may retry with (e.g. the withdrawal
// cap on a locked account).
type ValidationError struct {
	Reason string
	Limit  *decimal.Decimal
}

func (e *ValidationError) Error() string {
	if e.Limit != nil {
		return fmt.Sprintf("%s (limit: %s)", e.Reason, e.Limit.String())
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientFundsError reports a shortfall. Max, when non-nil, is the
// largest request that would have succeeded (maximum withdrawable amount
// for fixed partial, r_max for mixed global).
type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
	Max       *decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	if e.Max != nil {
		return fmt.Sprintf("insufficient funds: balance %s, requested %s, maximum withdrawable %s",
			e.Balance.String(), e.Requested.String(), e.Max.String())
	}
	return fmt.Sprintf("insufficient funds: balance %s, requested %s",
		e.Balance.String(), e.Requested.String())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// CapacityExceededError reports a booklet overflow. Leftover is the number
// of cases that could not be placed; the whole deposit is rejected.
type CapacityExceededError struct {
	Filled    int // cases already on the booklet
	Requested int // cases the deposit would add
	Leftover  int // cases past the 8x31 ceiling
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("booklet full: %d/%d cases filled, %d requested, %d would not fit",
		e.Filled, MaxCases, e.Requested, e.Leftover)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// StoreUnavailableError is produced by the persistence gateway after its
// retry budget is exhausted. Diagnosis is an operator-facing report of the
// lock state (lock files, permissions, holding processes); it is meant for
// error messages, not automatic remediation.
type StoreUnavailableError struct {
	Attempts  int
	Diagnosis string
	Err       error
}

func (e *StoreUnavailableError) Error() string {
	msg := fmt.Sprintf("store unavailable after %d attempts", e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Diagnosis != "" {
		msg += "\n" + e.Diagnosis
	}
	return msg
}

func (e *StoreUnavailableError) Unwrap() error { return ErrStoreUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrAccountBlocked) ||
		errors.Is(err, ErrDuplicateReference)
}

// IsNotFound returns true if the error indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
