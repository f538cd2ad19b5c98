package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the state of a single seat on a trip.
// A held seat carries the owning booking and a hold deadline; a sold seat
// carries only the owning booking. Available seats carry neither.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatSold      SeatStatus = "sold"
)

// TripSeat is one row of the per-trip seat ledger
type TripSeat struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	TripID        uuid.UUID  `json:"trip_id" db:"trip_id"`
	SeatNumber    int        `json:"seat_number" db:"seat_number"`
	Status        SeatStatus `json:"status" db:"status"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus resolves an expired hold to available without touching
// the row. Readers use this so a lapsed hold never looks taken.
func (s *TripSeat) EffectiveStatus(now time.Time) SeatStatus {
	if s.Status == SeatHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
		return SeatAvailable
	}
	return s.Status
}

// SeatMapEntry is the public view of one seat for the seat map endpoint
type SeatMapEntry struct {
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"status"`
}
