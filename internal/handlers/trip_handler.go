package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripHandler handles the public trip catalog endpoints
type TripHandler struct {
	trips  *database.TripRepository
	seats  *database.SeatRepository
	logger *logrus.Logger
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(trips *database.TripRepository, seats *database.SeatRepository, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		trips:  trips,
		seats:  seats,
		logger: logger,
	}
}

// Search handles GET /trips/search
func (h *TripHandler) Search(c *gin.Context) {
	var req models.TripSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	trips, err := h.trips.SearchTrips(&req)
	if err != nil {
		h.logger.WithError(err).Error("Trip search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	responses := make([]models.TripResponse, 0, len(trips))
	for _, trip := range trips {
		available, err := h.seats.CountAvailableSeats(trip.ID)
		if err != nil {
			h.logger.WithError(err).WithField("trip_id", trip.ID).Error("Failed to count seats")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		responses = append(responses, models.TripResponse{Trip: *trip, AvailableSeats: available})
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": responses,
		"count": len(responses),
	})
}

// GetByID handles GET /trips/:id
func (h *TripHandler) GetByID(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip_id"})
		return
	}

	trip, err := h.trips.GetTripByID(tripID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if trip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found"})
		return
	}

	available, err := h.seats.CountAvailableSeats(trip.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count seats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, models.TripResponse{Trip: *trip, AvailableSeats: available})
}

// GetSeatMap handles GET /trips/:id/seats
func (h *TripHandler) GetSeatMap(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip_id"})
		return
	}

	trip, err := h.trips.GetTripByID(tripID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if trip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found"})
		return
	}

	seatMap, err := h.seats.GetSeatMap(tripID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get seat map")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip_id": tripID,
		"seats":   seatMap,
	})
}
