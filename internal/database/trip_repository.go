package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripRepository handles trip database operations
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

// CreateTrip inserts a trip and provisions its seat ledger in one transaction
func (r *TripRepository) CreateTrip(req *models.CreateTripRequest) (*models.Trip, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	trip := &models.Trip{
		ID:            uuid.New(),
		OperatorName:  req.OperatorName,
		BusNumber:     req.BusNumber,
		RouteFrom:     req.RouteFrom,
		RouteTo:       req.RouteTo,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		Price:         req.Price,
		TotalSeats:    req.TotalSeats,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = tx.Exec(`
		INSERT INTO trips (
			id, operator_name, bus_number, route_from, route_to,
			departure_time, arrival_time, price, total_seats, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		trip.ID, trip.OperatorName, trip.BusNumber, trip.RouteFrom, trip.RouteTo,
		trip.DepartureTime, trip.ArrivalTime, trip.Price, trip.TotalSeats, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	// One ledger row per seat, all starting available
	for seat := 1; seat <= req.TotalSeats; seat++ {
		_, err = tx.Exec(`
			INSERT INTO trip_seats (id, trip_id, seat_number, status, created_at, updated_at)
			VALUES ($1, $2, $3, 'available', $4, $5)`,
			uuid.New(), trip.ID, seat, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to provision seat %d: %w", seat, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trip creation: %w", err)
	}

	return trip, nil
}

// GetTripByID retrieves a trip by ID, nil if not found
func (r *TripRepository) GetTripByID(id uuid.UUID) (*models.Trip, error) {
	trip := &models.Trip{}
	query := `
		SELECT id, operator_name, bus_number, route_from, route_to,
		       departure_time, arrival_time, price, total_seats, created_at, updated_at
		FROM trips WHERE id = $1`

	err := r.db.Get(trip, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

// SearchTrips finds trips by route substrings and optional departure date
func (r *TripRepository) SearchTrips(req *models.TripSearchRequest) ([]*models.Trip, error) {
	query := `
		SELECT id, operator_name, bus_number, route_from, route_to,
		       departure_time, arrival_time, price, total_seats, created_at, updated_at
		FROM trips
		WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if req.From != "" {
		query += fmt.Sprintf(" AND route_from ILIKE $%d", argPos)
		args = append(args, "%"+strings.TrimSpace(req.From)+"%")
		argPos++
	}
	if req.To != "" {
		query += fmt.Sprintf(" AND route_to ILIKE $%d", argPos)
		args = append(args, "%"+strings.TrimSpace(req.To)+"%")
		argPos++
	}
	if req.Date != "" {
		query += fmt.Sprintf(" AND DATE(departure_time) = $%d", argPos)
		args = append(args, req.Date)
		argPos++
	}

	query += " ORDER BY departure_time ASC"

	var trips []*models.Trip
	err := r.db.Select(&trips, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	return trips, nil
}

// ListTrips returns all trips, newest departure first
func (r *TripRepository) ListTrips(limit, offset int) ([]*models.Trip, error) {
	var trips []*models.Trip
	query := `
		SELECT id, operator_name, bus_number, route_from, route_to,
		       departure_time, arrival_time, price, total_seats, created_at, updated_at
		FROM trips
		ORDER BY departure_time DESC
		LIMIT $1 OFFSET $2`

	err := r.db.Select(&trips, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	return trips, nil
}

// UpdateTrip applies the non-nil fields of the request to a trip
func (r *TripRepository) UpdateTrip(id uuid.UUID, req *models.UpdateTripRequest) (*models.Trip, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if req.OperatorName != nil {
		addSet("operator_name", *req.OperatorName)
	}
	if req.BusNumber != nil {
		addSet("bus_number", *req.BusNumber)
	}
	if req.RouteFrom != nil {
		addSet("route_from", *req.RouteFrom)
	}
	if req.RouteTo != nil {
		addSet("route_to", *req.RouteTo)
	}
	if req.DepartureTime != nil {
		addSet("departure_time", *req.DepartureTime)
	}
	if req.ArrivalTime != nil {
		addSet("arrival_time", *req.ArrivalTime)
	}
	if req.Price != nil {
		addSet("price", *req.Price)
	}

	query := fmt.Sprintf("UPDATE trips SET %s WHERE id = $%d", strings.Join(sets, ", "), argPos)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, models.ErrTripNotFound
	}

	return r.GetTripByID(id)
}

// DeleteTrip removes a trip and its seat ledger
func (r *TripRepository) DeleteTrip(id uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trip_seats WHERE trip_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete trip seats: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrTripNotFound
	}

	return tx.Commit()
}
