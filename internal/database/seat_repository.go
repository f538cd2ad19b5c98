package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/models"
)

// SeatRepository reads the per-trip seat ledger and runs the expired-hold
// sweeps. Seat state transitions that must move together with a booking
// row happen inside BookingRepository transactions.
type SeatRepository struct {
	db DB
}

// NewSeatRepository creates a new SeatRepository
func NewSeatRepository(db DB) *SeatRepository {
	return &SeatRepository{db: db}
}

// GetSeatMap returns every seat of a trip with its effective status.
// Lapsed holds are reported as available without touching the rows.
func (r *SeatRepository) GetSeatMap(tripID uuid.UUID) ([]models.SeatMapEntry, error) {
	var seats []models.TripSeat
	query := `
		SELECT id, trip_id, seat_number, status, booking_id, hold_expires_at, created_at, updated_at
		FROM trip_seats
		WHERE trip_id = $1
		ORDER BY seat_number`

	if err := r.db.Select(&seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get seat map: %w", err)
	}

	now := time.Now()
	entries := make([]models.SeatMapEntry, len(seats))
	for i, seat := range seats {
		entries[i] = models.SeatMapEntry{
			SeatNumber: seat.SeatNumber,
			Status:     seat.EffectiveStatus(now),
		}
	}

	return entries, nil
}

// CountAvailableSeats counts seats that are available or carry a lapsed hold
func (r *SeatRepository) CountAvailableSeats(tripID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM trip_seats
		WHERE trip_id = $1
		  AND (status = 'available'
		       OR (status = 'held' AND hold_expires_at < NOW()))`

	if err := r.db.Get(&count, query, tripID); err != nil {
		return 0, fmt.Errorf("failed to count available seats: %w", err)
	}

	return count, nil
}

// ReleaseExpiredHolds frees every lapsed hold across all trips.
// Returns the number of seats released. The owning bookings are expired
// separately by the sweep job.
func (r *SeatRepository) ReleaseExpiredHolds() (int, error) {
	query := `
		UPDATE trip_seats
		SET status = 'available', booking_id = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE status = 'held' AND hold_expires_at < NOW()`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired holds: %w", err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReleaseOrphanHolds frees seats whose owning booking no longer exists
func (r *SeatRepository) ReleaseOrphanHolds() (int, error) {
	query := `
		UPDATE trip_seats
		SET status = 'available', booking_id = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE status = 'held'
		  AND booking_id IS NOT NULL
		  AND booking_id NOT IN (SELECT id FROM bookings)`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to release orphan holds: %w", err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}
