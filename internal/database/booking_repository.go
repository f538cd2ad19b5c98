package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/swiftbus/booking-backend/internal/models"
)

// BookingRepository handles booking rows and the seat transitions that
// must land in the same transaction as a booking state change.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateWithHold inserts a pending booking and holds its seats in one
// transaction. The hold is all-or-nothing: a conditional UPDATE claims
// every requested seat, and a short row count means at least one seat
// was taken, in which case the whole transaction rolls back and the
// conflicting seat numbers are reported.
func (r *BookingRepository) CreateWithHold(booking *models.Booking) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lapsed holds on this trip are swept first so they do not block
	// the claim below.
	_, err = tx.Exec(`
		UPDATE trip_seats
		SET status = 'available', booking_id = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE trip_id = $1 AND status = 'held' AND hold_expires_at < NOW()`,
		booking.TripID,
	)
	if err != nil {
		return fmt.Errorf("failed to sweep lapsed holds: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE trip_seats
		SET status = 'held', booking_id = $1, hold_expires_at = $2, updated_at = NOW()
		WHERE trip_id = $3 AND seat_number = ANY($4) AND status = 'available'`,
		booking.ID, booking.HoldExpiresAt, booking.TripID, pq.Array(booking.SeatNumbers()),
	)
	if err != nil {
		return fmt.Errorf("failed to hold seats: %w", err)
	}

	held, _ := result.RowsAffected()
	if int(held) != len(booking.Seats) {
		conflicts, cErr := r.conflictingSeatsTx(tx, booking.TripID, booking.SeatNumbers())
		if cErr != nil {
			return fmt.Errorf("failed to resolve seat conflict: %w", cErr)
		}
		return &models.SeatConflictError{TripID: booking.TripID.String(), Seats: conflicts}
	}

	_, err = tx.Exec(`
		INSERT INTO bookings (
			id, user_id, trip_id, seats, status, payment_state,
			total_amount, currency, hold_expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		booking.ID, booking.UserID, booking.TripID, booking.Seats,
		booking.Status, booking.PaymentState,
		booking.TotalAmount, booking.Currency, booking.HoldExpiresAt,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return tx.Commit()
}

func (r *BookingRepository) conflictingSeatsTx(tx *sqlx.Tx, tripID uuid.UUID, seatNumbers []int) ([]int, error) {
	var conflicts []int
	err := tx.Select(&conflicts, `
		SELECT seat_number FROM trip_seats
		WHERE trip_id = $1
		  AND seat_number = ANY($2)
		  AND status <> 'available'
		ORDER BY seat_number`,
		tripID, pq.Array(seatNumbers),
	)
	if err != nil {
		return nil, err
	}
	// Requested seats that do not exist on the trip also conflict
	if len(conflicts) == 0 {
		var existing []int
		err = tx.Select(&existing, `
			SELECT seat_number FROM trip_seats
			WHERE trip_id = $1 AND seat_number = ANY($2)`,
			tripID, pq.Array(seatNumbers),
		)
		if err != nil {
			return nil, err
		}
		known := make(map[int]bool, len(existing))
		for _, s := range existing {
			known[s] = true
		}
		for _, s := range seatNumbers {
			if !known[s] {
				conflicts = append(conflicts, s)
			}
		}
	}
	return conflicts, nil
}

// GetByID retrieves a booking by ID, nil if not found
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT id, user_id, trip_id, seats, status, payment_state,
		       total_amount, currency, hold_expires_at, confirmed_at, cancelled_at,
		       created_at, updated_at
		FROM bookings WHERE id = $1`

	err := r.db.Get(booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// GetByUser returns a user's bookings, newest first
func (r *BookingRepository) GetByUser(userID uuid.UUID) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT id, user_id, trip_id, seats, status, payment_state,
		       total_amount, currency, hold_expires_at, confirmed_at, cancelled_at,
		       created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC`

	if err := r.db.Select(&bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get bookings by user: %w", err)
	}

	return bookings, nil
}

// ListAll returns all bookings, newest first
func (r *BookingRepository) ListAll(limit, offset int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT id, user_id, trip_id, seats, status, payment_state,
		       total_amount, currency, hold_expires_at, confirmed_at, cancelled_at,
		       created_at, updated_at
		FROM bookings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	if err := r.db.Select(&bookings, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, nil
}

// ConfirmWithSeats flips a pending booking to confirmed and its held
// seats to sold in one transaction. The booking update is conditional
// on the pending state, so of two concurrent confirmations exactly one
// lands. Confirming an already confirmed booking is an idempotent
// no-op; cancelled or expired bookings fail with ErrAlreadyTerminal.
// The seat flip must cover every booked seat: if the hold lapsed and a
// sweep already gave any seat away, the whole transaction rolls back
// with ErrInvalidTransition rather than confirm a booking without its
// seats.
func (r *BookingRepository) ConfirmWithSeats(bookingID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seats pq.Int64Array
	err = tx.Get(&seats, `
		UPDATE bookings
		SET status = 'confirmed', payment_state = 'completed',
		    confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment'
		RETURNING seats`,
		bookingID,
	)
	if err == sql.ErrNoRows {
		var status models.BookingStatus
		err = tx.Get(&status, `SELECT status FROM bookings WHERE id = $1`, bookingID)
		if err == sql.ErrNoRows {
			return models.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read booking status: %w", err)
		}
		if status == models.BookingConfirmed {
			return nil
		}
		return models.ErrAlreadyTerminal
	}
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE trip_seats
		SET status = 'sold', hold_expires_at = NULL, updated_at = NOW()
		WHERE booking_id = $1 AND status = 'held'`,
		bookingID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark seats sold: %w", err)
	}

	moved, _ := result.RowsAffected()
	if int(moved) != len(seats) {
		return fmt.Errorf("%w: booking no longer holds all its seats", models.ErrInvalidTransition)
	}

	return tx.Commit()
}

// CancelWithSeats cancels a booking owned by the given user and frees
// its seats, held or sold, in one transaction. Cancelled and expired
// bookings are terminal; cancelling them again fails with
// ErrAlreadyTerminal.
func (r *BookingRepository) CancelWithSeats(bookingID, userID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ('pending_payment', 'confirmed')`,
		bookingID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// The booking exists for this user but is already terminal, or
		// it does not exist for this user at all.
		var status models.BookingStatus
		err = tx.Get(&status, `
			SELECT status FROM bookings WHERE id = $1 AND user_id = $2`,
			bookingID, userID)
		if err == sql.ErrNoRows {
			return models.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read booking status: %w", err)
		}
		return fmt.Errorf("%w: booking is %s", models.ErrAlreadyTerminal, status)
	}

	_, err = tx.Exec(`
		UPDATE trip_seats
		SET status = 'available', booking_id = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE booking_id = $1 AND status IN ('held', 'sold')`,
		bookingID,
	)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	return tx.Commit()
}

// ExpireAndRelease expires one pending booking past its hold deadline
// and frees its seats atomically. Reports whether the booking was
// actually expired; losing the race to a confirmation is not an error.
func (r *BookingRepository) ExpireAndRelease(bookingID uuid.UUID) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE bookings
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment' AND hold_expires_at < NOW()`,
		bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	_, err = tx.Exec(`
		UPDATE trip_seats
		SET status = 'available', booking_id = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE booking_id = $1 AND status = 'held'`,
		bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to release seat holds: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// SetPaymentState updates the payment state mirrored on the booking.
// The booking lifecycle status is not touched; only terminal lifecycle
// states are excluded so a late payment-state write cannot revive a
// cancelled or expired booking's payment bookkeeping.
func (r *BookingRepository) SetPaymentState(bookingID uuid.UUID, state models.PaymentState) error {
	_, err := r.db.Exec(`
		UPDATE bookings
		SET payment_state = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment'`,
		bookingID, state,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment state: %w", err)
	}
	return nil
}

// GetExpiredPending returns pending bookings whose hold deadline lapsed
func (r *BookingRepository) GetExpiredPending(limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT id FROM bookings
		WHERE status = 'pending_payment' AND hold_expires_at < NOW()
		LIMIT $1`

	if err := r.db.Select(&ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get expired pending bookings: %w", err)
	}

	return ids, nil
}

// CountBookings returns the total number of bookings
func (r *BookingRepository) CountBookings() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings`); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of bookings in a given state
func (r *BookingRepository) CountByStatus(status models.BookingStatus) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE status = $1`, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings by status: %w", err)
	}
	return count, nil
}

// TotalRevenue sums the amounts of bookings with completed payments
func (r *BookingRepository) TotalRevenue() (float64, error) {
	var total float64
	query := `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM bookings WHERE payment_state = 'completed'`

	if err := r.db.Get(&total, query); err != nil {
		return 0, fmt.Errorf("failed to compute revenue: %w", err)
	}
	return total, nil
}

// GetRecent returns the most recently created bookings
func (r *BookingRepository) GetRecent(limit int) ([]*models.Booking, error) {
	return r.ListAll(limit, 0)
}
