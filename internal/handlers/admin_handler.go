package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// AdminHandler handles the admin surface: trip CRUD, booking and user
// listings and the analytics dashboard. All routes behind RequireAdmin.
type AdminHandler struct {
	trips     *database.TripRepository
	bookings  *database.BookingRepository
	users     *database.UserRepository
	analytics *services.AnalyticsService
	audits    *services.AuditService
	logger    *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	trips *database.TripRepository,
	bookings *database.BookingRepository,
	users *database.UserRepository,
	analytics *services.AnalyticsService,
	audits *services.AuditService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		trips:     trips,
		bookings:  bookings,
		users:     users,
		analytics: analytics,
		audits:    audits,
		logger:    logger,
	}
}

// CreateTrip handles POST /admin/trips
func (h *AdminHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if !req.ArrivalTime.After(req.DepartureTime) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "arrival_time must be after departure_time",
		})
		return
	}

	trip, err := h.trips.CreateTrip(&req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// ListTrips handles GET /admin/trips
func (h *AdminHandler) ListTrips(c *gin.Context) {
	limit, offset := pagination(c)

	trips, err := h.trips.ListTrips(limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trips")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trips": trips, "count": len(trips)})
}

// UpdateTrip handles PUT /admin/trips/:id
func (h *AdminHandler) UpdateTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip_id"})
		return
	}

	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.trips.UpdateTrip(tripID, &req)
	if err != nil {
		if errors.Is(err, models.ErrTripNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found"})
			return
		}
		h.logger.WithError(err).Error("Failed to update trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, trip)
}

// DeleteTrip handles DELETE /admin/trips/:id
func (h *AdminHandler) DeleteTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip_id"})
		return
	}

	if err := h.trips.DeleteTrip(tripID); err != nil {
		if errors.Is(err, models.ErrTripNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted"})
}

// ListBookings handles GET /admin/bookings
func (h *AdminHandler) ListBookings(c *gin.Context) {
	limit, offset := pagination(c)

	bookings, err := h.bookings.ListAll(limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := h.users.ListUsers(limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"users": responses, "count": len(responses)})
}

// GetSessionAudits handles GET /admin/payments/sessions/:session_id/audits.
// Returns the full audit trail of one payment session for dispute review.
func (h *AdminHandler) GetSessionAudits(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_session_id"})
		return
	}

	audits, err := h.audits.SessionTrail(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load session audit trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

// GetAmountMismatches handles GET /admin/payments/mismatches. Lists
// recent webhook deliveries whose amount disagreed with the booking,
// the worklist for manual refunds.
func (h *AdminHandler) GetAmountMismatches(c *gin.Context) {
	limit, _ := pagination(c)

	audits, err := h.audits.AmountMismatches(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load amount mismatches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

// GetAnalytics handles GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	stats, err := h.analytics.GetDashboardStats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute analytics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
