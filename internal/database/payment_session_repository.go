package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/swiftbus/booking-backend/internal/models"
)

// PaymentSessionRepository handles payment session database operations.
// Every transition out of the open state is a compare-and-set on the
// row, so of any number of concurrent reconcilers (poll and webhook)
// exactly one observes the flip.
type PaymentSessionRepository struct {
	db DB
}

// NewPaymentSessionRepository creates a new PaymentSessionRepository
func NewPaymentSessionRepository(db DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

// Create inserts a new open session. The partial unique index on
// (booking_id) WHERE status = 'open' rejects a second open session for
// the same booking.
func (r *PaymentSessionRepository) Create(session *models.PaymentSession) error {
	query := `
		INSERT INTO payment_sessions (
			id, booking_id, user_id, processor_id, checkout_url,
			amount, currency, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		session.ID, session.BookingID, session.UserID, session.ProcessorID,
		session.CheckoutURL, session.Amount, session.Currency, session.Status,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrSessionAlreadyOpen
		}
		return fmt.Errorf("failed to create payment session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID, nil if not found
func (r *PaymentSessionRepository) GetByID(id uuid.UUID) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	query := `
		SELECT id, booking_id, user_id, processor_id, checkout_url,
		       amount, currency, status, resolved_at, created_at, updated_at
		FROM payment_sessions WHERE id = $1`

	err := r.db.Get(session, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment session: %w", err)
	}

	return session, nil
}

// GetByProcessorID retrieves a session by the processor-side identifier
func (r *PaymentSessionRepository) GetByProcessorID(processorID string) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	query := `
		SELECT id, booking_id, user_id, processor_id, checkout_url,
		       amount, currency, status, resolved_at, created_at, updated_at
		FROM payment_sessions WHERE processor_id = $1`

	err := r.db.Get(session, query, processorID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by processor id: %w", err)
	}

	return session, nil
}

// GetOpenByBooking returns the open session for a booking, nil if none
func (r *PaymentSessionRepository) GetOpenByBooking(bookingID uuid.UUID) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	query := `
		SELECT id, booking_id, user_id, processor_id, checkout_url,
		       amount, currency, status, resolved_at, created_at, updated_at
		FROM payment_sessions
		WHERE booking_id = $1 AND status = 'open'`

	err := r.db.Get(session, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	return session, nil
}

// Resolve attempts the open -> status transition for a session.
// Returns true if this caller won the compare-and-set, false if the
// session had already been resolved by someone else.
func (r *PaymentSessionRepository) Resolve(id uuid.UUID, status models.SessionStatus) (bool, error) {
	if status == models.SessionOpen {
		return false, models.ErrInvalidTransition
	}

	query := `
		UPDATE payment_sessions
		SET status = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'open'`

	result, err := r.db.Exec(query, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to resolve payment session: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// GetCompletedByBooking returns a paid session for a booking, nil if none
func (r *PaymentSessionRepository) GetCompletedByBooking(bookingID uuid.UUID) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	query := `
		SELECT id, booking_id, user_id, processor_id, checkout_url,
		       amount, currency, status, resolved_at, created_at, updated_at
		FROM payment_sessions
		WHERE booking_id = $1 AND status = 'paid'
		ORDER BY resolved_at DESC
		LIMIT 1`

	err := r.db.Get(session, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paid session: %w", err)
	}

	return session, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// unique_violation
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
