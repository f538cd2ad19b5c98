package models

import (
	"time"

	"github.com/google/uuid"
)

// Trip represents a scheduled bus departure that can be booked
type Trip struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OperatorName  string    `json:"operator_name" db:"operator_name"`
	BusNumber     string    `json:"bus_number" db:"bus_number"`
	RouteFrom     string    `json:"route_from" db:"route_from"`
	RouteTo       string    `json:"route_to" db:"route_to"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time" db:"arrival_time"`
	Price         float64   `json:"price" db:"price"`
	TotalSeats    int       `json:"total_seats" db:"total_seats"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// TripSearchRequest holds the query parameters for public trip search
type TripSearchRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
	Date string `form:"date"`
}

// TripResponse is a trip together with its live availability
type TripResponse struct {
	Trip
	AvailableSeats int `json:"available_seats"`
}

// CreateTripRequest is the admin payload for creating a trip
type CreateTripRequest struct {
	OperatorName  string    `json:"operator_name" binding:"required"`
	BusNumber     string    `json:"bus_number" binding:"required"`
	RouteFrom     string    `json:"route_from" binding:"required"`
	RouteTo       string    `json:"route_to" binding:"required"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	ArrivalTime   time.Time `json:"arrival_time" binding:"required"`
	Price         float64   `json:"price" binding:"required,gt=0"`
	TotalSeats    int       `json:"total_seats" binding:"required,gt=0,lte=100"`
}

// UpdateTripRequest is the admin payload for updating a trip.
// Pointer fields distinguish "not provided" from zero values.
type UpdateTripRequest struct {
	OperatorName  *string    `json:"operator_name,omitempty"`
	BusNumber     *string    `json:"bus_number,omitempty"`
	RouteFrom     *string    `json:"route_from,omitempty"`
	RouteTo       *string    `json:"route_to,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	Price         *float64   `json:"price,omitempty"`
}
