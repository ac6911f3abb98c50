package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by all services. Handlers map these onto HTTP codes;
// anything not in the taxonomy is an internal error and stays in the logs.
var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyOwned    = errors.New("already owned")
	ErrInvalidVoucher  = errors.New("invalid or already used transaction id")
	ErrNotEligible     = errors.New("not eligible")
	ErrTooSoon         = errors.New("too soon")
)

// InsufficientFundsError reports how many more coins a purchase needs.
type InsufficientFundsError struct {
	Shortfall int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d more coins", e.Shortfall)
}

// LockedError reports the remaining abuse-throttle cooldown.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, locked for %s", e.RetryAfter.Round(time.Second))
}
