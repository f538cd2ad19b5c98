package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// BookingService drives the booking lifecycle: create with a seat
// hold, confirm on payment, cancel, expire. All seat movement happens
// in repository transactions; this layer validates, prices and decides.
type BookingService struct {
	bookings *database.BookingRepository
	trips    *database.TripRepository
	seats    *database.SeatRepository
	cfg      *config.BookingConfig
	currency string
	logger   *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings *database.BookingRepository,
	trips *database.TripRepository,
	seats *database.SeatRepository,
	cfg *config.BookingConfig,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		trips:    trips,
		seats:    seats,
		cfg:      cfg,
		currency: currency,
		logger:   logger,
	}
}

// CreateBooking validates the request, prices it server side and
// creates a pending booking holding all requested seats atomically.
func (s *BookingService) CreateBooking(userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	trip, err := s.trips.GetTripByID(req.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}

	seats, err := s.validateSeats(trip, req.Seats)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	booking := &models.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		TripID:        trip.ID,
		Seats:         toInt64Array(seats),
		Status:        models.BookingPendingPayment,
		PaymentState:  models.PaymentNotInitiated,
		TotalAmount:   trip.Price * float64(len(seats)),
		Currency:      s.currency,
		HoldExpiresAt: now.Add(s.cfg.HoldTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.bookings.CreateWithHold(booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
		"trip_id":    trip.ID,
		"seats":      seats,
		"amount":     booking.TotalAmount,
		"expires_at": booking.HoldExpiresAt,
	}).Info("Booking created with seat hold")

	return booking, nil
}

// validateSeats checks count bounds, duplicates and seat range
func (s *BookingService) validateSeats(trip *models.Trip, seats []int) ([]int, error) {
	if len(seats) < 1 {
		return nil, fmt.Errorf("%w: at least one seat is required", models.ErrInvalidInput)
	}
	if len(seats) > s.cfg.MaxSeatsPerUser {
		return nil, fmt.Errorf("%w: at most %d seats per booking", models.ErrInvalidInput, s.cfg.MaxSeatsPerUser)
	}

	seen := make(map[int]bool, len(seats))
	for _, seat := range seats {
		if seat < 1 || seat > trip.TotalSeats {
			return nil, fmt.Errorf("%w: seat %d does not exist on this trip", models.ErrInvalidInput, seat)
		}
		if seen[seat] {
			return nil, fmt.Errorf("%w: seat %d requested more than once", models.ErrInvalidInput, seat)
		}
		seen[seat] = true
	}

	return seats, nil
}

// GetBooking returns a booking if it belongs to the user (admins see all)
func (s *BookingService) GetBooking(bookingID, userID uuid.UUID, isAdmin bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !isAdmin && booking.UserID != userID {
		// Not revealing that the booking exists
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

// ListUserBookings returns the user's bookings with trip details attached
func (s *BookingService) ListUserBookings(userID uuid.UUID) ([]*models.BookingResponse, error) {
	bookings, err := s.bookings.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		trip, err := s.trips.GetTripByID(b.TripID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, &models.BookingResponse{Booking: *b, Trip: trip})
	}

	return responses, nil
}

// ConfirmOnPayment moves a pending booking to confirmed and its seats
// to sold. Only the reconciler that won the session compare-and-set
// calls this, so a double call can only mean a retry and is idempotent.
func (s *BookingService) ConfirmOnPayment(bookingID uuid.UUID) error {
	if err := s.bookings.ConfirmWithSeats(bookingID); err != nil {
		return err
	}

	s.logger.WithField("booking_id", bookingID).Info("Booking confirmed on payment")
	return nil
}

// MarkPaymentPending records that a checkout session was opened for
// the booking
func (s *BookingService) MarkPaymentPending(bookingID uuid.UUID) error {
	return s.bookings.SetPaymentState(bookingID, models.PaymentPending)
}

// MarkPaymentFailed records a failed or abandoned payment attempt. The
// booking itself stays pending until its hold lapses, so the user may
// try again.
func (s *BookingService) MarkPaymentFailed(bookingID uuid.UUID) error {
	return s.bookings.SetPaymentState(bookingID, models.PaymentFailed)
}

// Cancel cancels a pending or confirmed booking owned by the user,
// releasing its seats. A booking that is already cancelled or expired
// fails with ErrAlreadyTerminal.
func (s *BookingService) Cancel(bookingID, userID uuid.UUID) error {
	if err := s.bookings.CancelWithSeats(bookingID, userID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"user_id":    userID,
	}).Info("Booking cancelled")
	return nil
}

// ExpireLapsed expires pending bookings past their hold deadline and
// frees their seats. Returns how many bookings were expired.
func (s *BookingService) ExpireLapsed(batchSize int) (int, error) {
	ids, err := s.bookings.GetExpiredPending(batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.bookings.ExpireAndRelease(id)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Error("Failed to expire booking")
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

func toInt64Array(seats []int) pq.Int64Array {
	out := make(pq.Int64Array, len(seats))
	for i, s := range seats {
		out[i] = int64(s)
	}
	return out
}
