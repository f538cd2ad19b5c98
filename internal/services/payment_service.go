package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// PaymentService brokers payment sessions between bookings and the
// external processor. A session resolves exactly once: every
// reconciliation path, whether the status poll, the webhook or the
// bounded wait, races through the same compare-and-set and only the
// winner touches the booking.
type PaymentService struct {
	sessions *database.PaymentSessionRepository
	bookings *BookingService
	checkout *CheckoutService
	audit    *AuditService
	currency string
	logger   *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	sessions *database.PaymentSessionRepository,
	bookings *BookingService,
	checkout *CheckoutService,
	audit *AuditService,
	currency string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		sessions: sessions,
		bookings: bookings,
		checkout: checkout,
		audit:    audit,
		currency: currency,
		logger:   logger,
	}
}

// OpenSession opens a checkout session for a pending booking. The
// amount is taken from the booking row, never from the client. A
// booking can carry at most one open session at a time.
func (s *PaymentService) OpenSession(ctx context.Context, userID, bookingID uuid.UUID, meta *RequestMeta) (*models.SessionResponse, error) {
	booking, err := s.bookings.GetBooking(bookingID, userID, false)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.BookingPendingPayment {
		return nil, fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, booking.Status)
	}
	if time.Now().After(booking.HoldExpiresAt) {
		return nil, fmt.Errorf("%w: seat hold has lapsed", models.ErrInvalidTransition)
	}

	if paid, err := s.sessions.GetCompletedByBooking(bookingID); err != nil {
		return nil, err
	} else if paid != nil {
		return nil, models.ErrSessionResolved
	}
	if existing, err := s.sessions.GetOpenByBooking(bookingID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.ErrSessionAlreadyOpen
	}

	sessionID := uuid.New()
	procReq := &CheckoutSessionRequest{
		Amount:      toMinorUnits(booking.TotalAmount),
		Currency:    s.currency,
		Reference:   sessionID.String(),
		Description: fmt.Sprintf("Bus booking %s", booking.ID),
		SuccessURL:  s.checkout.config.SuccessURL,
		CancelURL:   s.checkout.config.CancelURL,
	}

	procResp, err := s.checkout.CreateSession(ctx, procReq)
	if err != nil {
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventGatewayError, models.PaymentSourceBackend).
			SetSession(sessionID, bookingID).
			SetError(err.Error()), meta)
		return nil, err
	}

	now := time.Now()
	session := &models.PaymentSession{
		ID:          sessionID,
		BookingID:   bookingID,
		UserID:      userID,
		ProcessorID: procResp.ID,
		CheckoutURL: procResp.URL,
		Amount:      booking.TotalAmount,
		Currency:    s.currency,
		Status:      models.SessionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	if err := s.bookings.MarkPaymentPending(bookingID); err != nil {
		// The session row exists either way; the mirror catches up on
		// the next state change.
		s.logger.WithError(err).WithField("booking_id", bookingID).
			Warn("Failed to mark booking payment pending")
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSessionOpened, models.PaymentSourceUser).
		SetSession(sessionID, bookingID).
		SetProcessorID(procResp.ID).
		SetSessionStatus(models.SessionOpen), meta)

	s.logger.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"booking_id":   bookingID,
		"processor_id": procResp.ID,
		"amount":       booking.TotalAmount,
	}).Info("Payment session opened")

	return &models.SessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.CheckoutURL,
		Amount:      session.Amount,
		Currency:    session.Currency,
		Status:      session.Status,
	}, nil
}

// CheckStatus returns the session status, reconciling against the
// processor first if the session is still open. Safe to call any
// number of times and concurrently with webhook delivery.
func (s *PaymentService) CheckStatus(ctx context.Context, sessionID, userID uuid.UUID, meta *RequestMeta) (*models.PaymentSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, models.ErrSessionNotFound
	}

	if session.IsTerminal() {
		return session, nil
	}

	procResp, err := s.checkout.GetSession(ctx, session.ProcessorID)
	if err != nil {
		var gw *models.GatewayError
		if errors.As(err, &gw) {
			// Transient: report the last known state instead of failing
			s.logger.WithError(err).WithField("session_id", sessionID).
				Warn("Processor unreachable during status check, returning open")
			return session, nil
		}
		return nil, err
	}

	status := MapProcessorStatus(procResp)
	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventStatusChecked, models.PaymentSourceProcessor).
		SetSession(session.ID, session.BookingID).
		SetProcessorID(session.ProcessorID).
		SetSessionStatus(status), meta)

	if status == models.SessionOpen {
		return session, nil
	}

	if err := s.reconcile(ctx, session, status, procResp, models.PaymentSourceProcessor, meta); err != nil {
		return nil, err
	}

	return s.sessions.GetByID(sessionID)
}

// HandleWebhook processes a processor-pushed event. Deliveries are
// keyed by processor session and event type; a delivery only counts as
// seen once its reconciliation succeeded, so the processor's retries
// after a transient failure are not swallowed as duplicates. The
// reconciliation itself is also idempotent, so a missed duplicate
// check still cannot double-confirm.
func (s *PaymentService) HandleWebhook(ctx context.Context, event *models.WebhookEvent, meta *RequestMeta) error {
	session, err := s.sessions.GetByProcessorID(event.ProcessorID)
	if err != nil {
		return err
	}
	if session == nil {
		s.logger.WithField("processor_id", event.ProcessorID).Warn("Webhook for unknown session")
		return models.ErrSessionNotFound
	}

	var status models.SessionStatus
	switch event.EventType {
	case models.WebhookCheckoutCompleted:
		status = models.SessionPaid
	case models.WebhookCheckoutExpired:
		status = models.SessionExpired
	case models.WebhookCheckoutFailed:
		status = models.SessionFailed
	default:
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
			SetSession(session.ID, session.BookingID).
			SetProcessorID(event.ProcessorID).
			SetError(fmt.Sprintf("unknown webhook event %q", event.EventType)), meta)
		return fmt.Errorf("%w: unknown webhook event %q", models.ErrInvalidInput, event.EventType)
	}

	deliveryKey := fmt.Sprintf("%s-%s", event.ProcessorID, event.EventType)
	duplicate, err := s.audit.IsDuplicateDelivery(ctx, event.ProcessorID, models.PaymentEventWebhookReceived, deliveryKey)
	if err != nil {
		return err
	}
	if duplicate {
		dup := models.NewPaymentAudit(models.PaymentEventDuplicateDelivery, models.PaymentSourceWebhook).
			SetSession(session.ID, session.BookingID).
			SetProcessorID(event.ProcessorID)
		dup.MarkAsDuplicate()
		s.audit.Record(ctx, dup, meta)
		return nil
	}

	if err := s.reconcile(ctx, session, status, nil, models.PaymentSourceWebhook, meta); err != nil {
		// Not recorded as seen: the processor's retry gets another shot
		return err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		SetSession(session.ID, session.BookingID).
		SetProcessorID(event.ProcessorID).
		SetSessionStatus(status).
		SetIdempotencyKey(deliveryKey), meta)

	return nil
}

// reconcile attempts the open -> terminal compare-and-set and, only on
// winning it with a paid status, confirms the booking. Losing the race
// means another reconciler already resolved the session, which is a
// success from the caller's point of view.
func (s *PaymentService) reconcile(ctx context.Context, session *models.PaymentSession, status models.SessionStatus, procResp *CheckoutSessionResponse, source models.PaymentEventSource, meta *RequestMeta) error {
	won, err := s.sessions.Resolve(session.ID, status)
	if err != nil {
		return err
	}
	if !won {
		s.logger.WithFields(logrus.Fields{
			"session_id": session.ID,
			"status":     status,
		}).Debug("Session already resolved by another reconciler")
		return nil
	}

	switch status {
	case models.SessionPaid:
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSessionPaid, source).
			SetSession(session.ID, session.BookingID).
			SetProcessorID(session.ProcessorID).
			SetSessionStatus(models.SessionPaid), meta)

		if procResp != nil {
			expected := toMinorUnits(session.Amount)
			if procResp.Amount != expected {
				mismatch := models.NewPaymentAudit(models.PaymentEventAmountMismatch, source).
					SetSession(session.ID, session.BookingID).
					SetProcessorID(session.ProcessorID)
				mismatch.SetAmounts(float64(expected), float64(procResp.Amount), session.Currency)
				s.audit.Record(ctx, mismatch, meta)
				s.logger.WithFields(logrus.Fields{
					"session_id": session.ID,
					"expected":   expected,
					"received":   procResp.Amount,
				}).Error("Payment amount mismatch")
			}
		}

		if err := s.bookings.ConfirmOnPayment(session.BookingID); err != nil {
			// Paid but unconfirmable (e.g. booking expired first):
			// flagged for manual refund, the session stays paid.
			s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventConfirmationFailed, source).
				SetSession(session.ID, session.BookingID).
				SetError(err.Error()), meta)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"session_id": session.ID,
				"booking_id": session.BookingID,
			}).Error("Payment received but booking confirmation failed")
			return err
		}

		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmed, source).
			SetSession(session.ID, session.BookingID).
			SetSessionStatus(models.SessionPaid), meta)

	case models.SessionFailed:
		// The booking stays pending: the user may open a new session
		// until the hold lapses.
		if err := s.bookings.MarkPaymentFailed(session.BookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", session.BookingID).
				Warn("Failed to mark booking payment failed")
		}
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSessionFailed, source).
			SetSession(session.ID, session.BookingID), meta)

	case models.SessionExpired:
		if err := s.bookings.MarkPaymentFailed(session.BookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", session.BookingID).
				Warn("Failed to mark booking payment failed")
		}
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSessionExpired, source).
			SetSession(session.ID, session.BookingID), meta)
	}

	return nil
}

// WaitForPayment polls the session until it resolves, the context is
// cancelled or maxAttempts checks have been made. On timeout the last
// observed session is returned along with ErrReconcileTimeout; the
// booking is left alone, its hold TTL decides its fate.
func (s *PaymentService) WaitForPayment(ctx context.Context, sessionID, userID uuid.UUID, interval time.Duration, maxAttempts int) (*models.PaymentSession, error) {
	var last *models.PaymentSession

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		session, err := s.CheckStatus(ctx, sessionID, userID, nil)
		if err != nil {
			return last, err
		}
		last = session

		if session.IsTerminal() {
			return session, nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}

	return last, models.ErrReconcileTimeout
}

// GetSession returns a session owned by the user without reconciling
func (s *PaymentService) GetSession(sessionID, userID uuid.UUID) (*models.PaymentSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
