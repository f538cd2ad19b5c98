package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the state of a payment session.
//
// open is the only non-terminal state. Transitions out of open happen
// through a compare-and-set on the row, so concurrent reconcilers
// (status poll and webhook) cannot both claim the same transition.
type SessionStatus string

const (
	SessionOpen    SessionStatus = "open"
	SessionPaid    SessionStatus = "paid"
	SessionFailed  SessionStatus = "failed"
	SessionExpired SessionStatus = "expired"
)

// PaymentSession tracks one checkout attempt for a booking
type PaymentSession struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	BookingID   uuid.UUID     `json:"booking_id" db:"booking_id"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	ProcessorID string        `json:"processor_id" db:"processor_id"`
	CheckoutURL string        `json:"checkout_url" db:"checkout_url"`
	Amount      float64       `json:"amount" db:"amount"`
	Currency    string        `json:"currency" db:"currency"`
	Status      SessionStatus `json:"status" db:"status"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the session has been resolved
func (s *PaymentSession) IsTerminal() bool {
	return s.Status != SessionOpen
}

// OpenSessionRequest is the payload for opening a checkout session
type OpenSessionRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

// SessionResponse is the client view of a payment session
type SessionResponse struct {
	SessionID   uuid.UUID     `json:"session_id"`
	CheckoutURL string        `json:"checkout_url"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Status      SessionStatus `json:"status"`
}

// WebhookEvent is the payload pushed by the payment processor
type WebhookEvent struct {
	ProcessorID string `json:"session_id" binding:"required"`
	EventType   string `json:"event_type" binding:"required"`
}

// Webhook event types sent by the processor
const (
	WebhookCheckoutCompleted = "checkout.session.completed"
	WebhookCheckoutExpired   = "checkout.session.expired"
	WebhookCheckoutFailed    = "checkout.session.failed"
)
