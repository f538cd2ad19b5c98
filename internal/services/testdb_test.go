package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/models"
)

// mockDatabase adapts a sqlmock connection to the database.DB interface
type mockDatabase struct {
	db *sqlx.DB
}

func (m *mockDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return m.db.Get(dest, query, args...)
}

func (m *mockDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return m.db.Select(dest, query, args...)
}

func (m *mockDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *mockDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *mockDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *mockDatabase) Beginx() (*sqlx.Tx, error) {
	return m.db.Beginx()
}

func (m *mockDatabase) Ping() error {
	return m.db.Ping()
}

func (m *mockDatabase) Close() error {
	return m.db.Close()
}

func newMockDB(t *testing.T) (*mockDatabase, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &mockDatabase{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func tripRows(trip *models.Trip) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "operator_name", "bus_number", "route_from", "route_to",
		"departure_time", "arrival_time", "price", "total_seats", "created_at", "updated_at",
	})
	if trip != nil {
		rows.AddRow(
			trip.ID, trip.OperatorName, trip.BusNumber, trip.RouteFrom, trip.RouteTo,
			trip.DepartureTime, trip.ArrivalTime, trip.Price, trip.TotalSeats,
			trip.CreatedAt, trip.UpdatedAt,
		)
	}
	return rows
}

func bookingRows(b *models.Booking) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "trip_id", "seats", "status", "payment_state",
		"total_amount", "currency", "hold_expires_at", "confirmed_at", "cancelled_at",
		"created_at", "updated_at",
	})
	if b != nil {
		rows.AddRow(
			b.ID, b.UserID, b.TripID, []byte("{3,4}"), b.Status, b.PaymentState,
			b.TotalAmount, b.Currency, b.HoldExpiresAt, b.ConfirmedAt, b.CancelledAt,
			b.CreatedAt, b.UpdatedAt,
		)
	}
	return rows
}

func sessionRows(s *models.PaymentSession) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "booking_id", "user_id", "processor_id", "checkout_url",
		"amount", "currency", "status", "resolved_at", "created_at", "updated_at",
	})
	if s != nil {
		rows.AddRow(
			s.ID, s.BookingID, s.UserID, s.ProcessorID, s.CheckoutURL,
			s.Amount, s.Currency, s.Status, s.ResolvedAt, s.CreatedAt, s.UpdatedAt,
		)
	}
	return rows
}

func testTrip() *models.Trip {
	now := time.Now()
	return &models.Trip{
		ID:            uuid.New(),
		OperatorName:  "Coastal Express",
		BusNumber:     "CE-101",
		RouteFrom:     "Portland",
		RouteTo:       "Seattle",
		DepartureTime: now.Add(48 * time.Hour),
		ArrivalTime:   now.Add(51 * time.Hour),
		Price:         45.00,
		TotalSeats:    40,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
