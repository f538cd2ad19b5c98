package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// BookingHandler handles booking lifecycle endpoints
type BookingHandler struct {
	bookings *services.BookingService
	tickets  *services.TicketService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings *services.BookingService, tickets *services.TicketService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		tickets:  tickets,
		logger:   logger,
	}
}

// Create handles POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	booking, err := h.bookings.CreateBooking(userCtx.UserID, &req)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// List handles GET /bookings
func (h *BookingHandler) List(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	bookings, err := h.bookings.ListUserBookings(userCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// GetByID handles GET /bookings/:id
func (h *BookingHandler) GetByID(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_booking_id"})
		return
	}

	booking, err := h.bookings.GetBooking(bookingID, userCtx.UserID, userCtx.IsAdmin())
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Cancel handles DELETE /bookings/:id
func (h *BookingHandler) Cancel(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_booking_id"})
		return
	}

	if err := h.bookings.Cancel(bookingID, userCtx.UserID); err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}

// DownloadTicket handles GET /bookings/:id/ticket
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_booking_id"})
		return
	}

	pdf, err := h.tickets.RenderTicket(bookingID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, models.ErrPaymentNotCompleted) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "payment_not_completed",
				"message": "Tickets are available once payment is completed",
			})
			return
		}
		h.respondBookingError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, bookingID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// respondBookingError maps domain errors to HTTP responses
func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	var conflict *models.SeatConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":             "seats_unavailable",
			"message":           "Some of the requested seats are no longer available",
			"conflicting_seats": conflict.Seats,
		})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found"})
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking_not_found"})
	case errors.Is(err, models.ErrAlreadyTerminal), errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	default:
		h.logger.WithError(err).Error("Booking operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
