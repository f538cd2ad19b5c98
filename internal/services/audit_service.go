package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// RequestMeta carries caller metadata captured by handlers for auditing
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuditService records payment events to the immutable audit log.
// Audit failures are logged but never propagated: an audit problem
// must not fail a payment.
type AuditService struct {
	audits *database.PaymentAuditRepository
	logger *logrus.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(audits *database.PaymentAuditRepository, logger *logrus.Logger) *AuditService {
	return &AuditService{
		audits: audits,
		logger: logger,
	}
}

// Record logs one payment event, attaching parsed device info
func (s *AuditService) Record(ctx context.Context, audit *models.PaymentAudit, meta *RequestMeta) {
	if meta != nil {
		audit.SetMetadata(meta.IPAddress, meta.UserAgent, describeDevice(meta.UserAgent))
	}

	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).
			Error("Payment audit write failed")
	}
}

// IsDuplicateDelivery reports whether a webhook delivery with this
// idempotency key was already processed
func (s *AuditService) IsDuplicateDelivery(ctx context.Context, processorID string, eventType models.PaymentEventType, idempotencyKey string) (bool, error) {
	return s.audits.CheckDuplicate(ctx, processorID, eventType, idempotencyKey)
}

// SessionTrail returns the full audit trail of one payment session,
// oldest entry first
func (s *AuditService) SessionTrail(ctx context.Context, sessionID uuid.UUID) ([]*models.PaymentAudit, error) {
	return s.audits.GetBySession(ctx, sessionID)
}

// AmountMismatches returns recent audits whose processor-reported amount
// disagreed with the booking amount. These need manual review.
func (s *AuditService) AmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	return s.audits.GetAmountMismatches(ctx, limit)
}

// describeDevice summarizes a User-Agent header for the audit trail
func describeDevice(ua string) string {
	if ua == "" {
		return ""
	}

	parsed := user_agent.New(ua)
	browser, version := parsed.Browser()

	device := "desktop"
	if parsed.Mobile() {
		device = "mobile"
	} else if parsed.Bot() {
		device = "bot"
	}

	return fmt.Sprintf("%s/%s %s (%s)", browser, version, parsed.OS(), device)
}
