package models

import (
	"errors"
	"fmt"
)

// Sentinel domain errors. Handlers map these to HTTP status codes with
// errors.Is; repositories and services wrap them with context.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTripNotFound        = errors.New("trip not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrSessionNotFound     = errors.New("payment session not found")
	ErrAlreadyTerminal     = errors.New("booking already in a terminal state")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrSessionAlreadyOpen  = errors.New("an open payment session already exists for this booking")
	ErrSessionResolved     = errors.New("payment session already resolved")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrReconcileTimeout    = errors.New("payment reconciliation timed out")
)

// SeatConflictError reports which requested seats could not be held.
// A hold is all-or-nothing, so a single conflicting seat fails the
// whole request and this error names every offender.
type SeatConflictError struct {
	TripID string
	Seats  []int
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable on trip %s: %v", e.TripID, e.Seats)
}

// GatewayError indicates the payment processor could not be reached or
// answered with a server error. It is transient: the session stays open
// and the caller may retry. A declined payment is NOT a GatewayError.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
