package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/models"
)

type stubTripGetter struct {
	trip *models.Trip
}

func (s *stubTripGetter) GetTripByID(id uuid.UUID) (*models.Trip, error) {
	return s.trip, nil
}

func TestRenderTicket(t *testing.T) {
	trip := testTrip()

	t.Run("Confirmed Paid Booking Renders A PDF", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewTicketService(newBookingService(db), &stubTripGetter{trip: trip})

		confirmedAt := time.Now()
		booking := &models.Booking{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			TripID:       trip.ID,
			Status:       models.BookingConfirmed,
			PaymentState: models.PaymentCompleted,
			TotalAmount:  90.00,
			Currency:     "usd",
			ConfirmedAt:  &confirmedAt,
		}
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(booking.ID).
			WillReturnRows(bookingRows(booking))

		pdf, err := svc.RenderTicket(booking.ID, booking.UserID)
		require.NoError(t, err)
		require.NotEmpty(t, pdf)
		assert.Equal(t, "%PDF", string(pdf[:4]))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unpaid Booking Has No Ticket", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewTicketService(newBookingService(db), &stubTripGetter{trip: trip})

		booking := &models.Booking{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			TripID:       trip.ID,
			Status:       models.BookingPendingPayment,
			PaymentState: models.PaymentPending,
			TotalAmount:  90.00,
			Currency:     "usd",
		}
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(booking.ID).
			WillReturnRows(bookingRows(booking))

		_, err := svc.RenderTicket(booking.ID, booking.UserID)
		assert.ErrorIs(t, err, models.ErrPaymentNotCompleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Foreign Booking Is Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewTicketService(newBookingService(db), &stubTripGetter{trip: trip})

		booking := &models.Booking{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			TripID:       trip.ID,
			Status:       models.BookingConfirmed,
			PaymentState: models.PaymentCompleted,
		}
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(booking.ID).
			WillReturnRows(bookingRows(booking))

		_, err := svc.RenderTicket(booking.ID, uuid.New())
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
