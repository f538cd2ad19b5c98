package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BookingStatus is the lifecycle state of a booking.
//
// Transitions:
//
//	pending_payment -> confirmed  (payment succeeded)
//	pending_payment -> cancelled  (user cancelled before paying)
//	pending_payment -> expired    (hold TTL lapsed)
//	confirmed       -> cancelled  (user cancelled a paid booking)
//
// confirmed, cancelled and expired never transition back.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCancelled      BookingStatus = "cancelled"
	BookingExpired        BookingStatus = "expired"
)

// PaymentState mirrors the payment outcome on the booking itself.
// Bookings start with no payment attempt; opening a checkout session
// moves them to pending, and the session outcome settles the rest.
type PaymentState string

const (
	PaymentNotInitiated PaymentState = "not_initiated"
	PaymentPending      PaymentState = "pending"
	PaymentCompleted    PaymentState = "completed"
	PaymentFailed       PaymentState = "failed"
)

// Booking represents a reservation of one or more seats on a trip
type Booking struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	UserID        uuid.UUID     `json:"user_id" db:"user_id"`
	TripID        uuid.UUID     `json:"trip_id" db:"trip_id"`
	Seats         pq.Int64Array `json:"seats" db:"seats"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentState  PaymentState  `json:"payment_state" db:"payment_state"`
	TotalAmount   float64       `json:"total_amount" db:"total_amount"`
	Currency      string        `json:"currency" db:"currency"`
	HoldExpiresAt time.Time     `json:"hold_expires_at" db:"hold_expires_at"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the booking can no longer change state,
// except that a confirmed booking may still be cancelled.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingCancelled || b.Status == BookingExpired
}

// SeatNumbers returns the booked seats as plain ints
func (b *Booking) SeatNumbers() []int {
	seats := make([]int, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = int(s)
	}
	return seats
}

// CreateBookingRequest is the payload for creating a booking
type CreateBookingRequest struct {
	TripID uuid.UUID `json:"trip_id" binding:"required"`
	Seats  []int     `json:"seats" binding:"required,min=1,max=5"`
}

// BookingResponse is a booking enriched with its trip for client display
type BookingResponse struct {
	Booking
	Trip *Trip `json:"trip,omitempty"`
}
