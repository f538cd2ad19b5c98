package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/models"
)

// PaymentAuditRepository handles the immutable payment event log
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new PaymentAuditRepository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// Payment events must never fail to be logged silently.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, session_id, booking_id, processor_id,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			session_status,
			request_payload, response_payload, raw_body,
			http_status_code, error_message,
			is_duplicate, idempotency_key,
			ip_address, user_agent, device_info,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11,
			$12, $13, $14,
			$15, $16,
			$17, $18,
			$19, $20, $21,
			$22
		)`

	_, err := r.db.Exec(query,
		audit.ID, audit.SessionID, audit.BookingID, audit.ProcessorID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.SessionStatus,
		audit.RequestPayload, audit.ResponsePayload, audit.RawBody,
		audit.HTTPStatusCode, audit.ErrorMessage,
		audit.IsDuplicate, audit.IdempotencyKey,
		audit.IPAddress, audit.UserAgent, audit.DeviceInfo,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"processor_id": audit.ProcessorID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// CheckDuplicate reports whether a webhook delivery was already processed
func (r *PaymentAuditRepository) CheckDuplicate(ctx context.Context, processorID string, eventType models.PaymentEventType, idempotencyKey string) (bool, error) {
	if idempotencyKey == "" {
		idempotencyKey = fmt.Sprintf("%s-%s", processorID, eventType)
	}

	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE processor_id = $1
		  AND event_type = $2
		  AND idempotency_key = $3
		  AND is_duplicate = FALSE`

	if err := r.db.Get(&count, query, processorID, eventType, idempotencyKey); err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return count > 0, nil
}

// GetBySession retrieves all audit entries for a payment session
func (r *PaymentAuditRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE session_id = $1
		ORDER BY created_at ASC`

	if err := r.db.Select(&audits, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get audits by session: %w", err)
	}

	return audits, nil
}

// GetAmountMismatches retrieves audits where amounts do not match
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE amounts_match = FALSE
		ORDER BY created_at DESC
		LIMIT $1`

	if err := r.db.Select(&audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}

	return audits, nil
}
