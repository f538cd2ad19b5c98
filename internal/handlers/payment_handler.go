package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// PaymentHandler handles payment session endpoints and the processor webhook
type PaymentHandler struct {
	payments *services.PaymentService
	cfg      *config.PaymentConfig
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService, cfg *config.PaymentConfig, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		cfg:      cfg,
		logger:   logger,
	}
}

func requestMeta(c *gin.Context) *services.RequestMeta {
	return &services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// OpenSession handles POST /payments/sessions
func (h *PaymentHandler) OpenSession(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	var req models.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	session, err := h.payments.OpenSession(c.Request.Context(), userCtx.UserID, req.BookingID, requestMeta(c))
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// CheckStatus handles GET /payments/status/:session_id. With
// ?wait=true the request blocks and polls the processor until the
// session resolves or the configured attempt budget runs out, in which
// case the last observed (still open) state is returned.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_session_id"})
		return
	}

	var session *models.PaymentSession
	resolved := true
	if c.Query("wait") == "true" {
		session, err = h.payments.WaitForPayment(
			c.Request.Context(), sessionID, userCtx.UserID,
			h.cfg.PollInterval, h.cfg.PollMaxRetries,
		)
		if errors.Is(err, models.ErrReconcileTimeout) && session != nil {
			resolved = false
			err = nil
		}
	} else {
		session, err = h.payments.CheckStatus(c.Request.Context(), sessionID, userCtx.UserID, requestMeta(c))
	}
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"booking_id": session.BookingID,
		"status":     session.Status,
		"amount":     session.Amount,
		"currency":   session.Currency,
		"resolved":   resolved && session.IsTerminal(),
	})
}

// Webhook handles POST /payments/webhook. The processor retries
// deliveries, so this endpoint must tolerate duplicates.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), &event, requestMeta(c)); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			// Acknowledged so the processor stops retrying a session
			// we will never know about
			c.JSON(http.StatusOK, gin.H{"received": true, "known": false})
			return
		}
		if errors.Is(err, models.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event"})
			return
		}
		h.logger.WithError(err).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) respondPaymentError(c *gin.Context, err error) {
	var gw *models.GatewayError
	switch {
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking_not_found"})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, models.ErrSessionAlreadyOpen):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "session_already_open",
			"message": "An open payment session already exists for this booking",
		})
	case errors.Is(err, models.ErrSessionResolved):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "payment_already_completed",
			"message": "This booking has already been paid for",
		})
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	case errors.As(err, &gw):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "payment_gateway_unavailable",
			"message": "The payment processor is temporarily unavailable. Please try again.",
		})
	default:
		h.logger.WithError(err).Error("Payment operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
