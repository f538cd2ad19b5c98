package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/models"
)

func openSession() *models.PaymentSession {
	now := time.Now()
	return &models.PaymentSession{
		ID:          uuid.New(),
		BookingID:   uuid.New(),
		UserID:      uuid.New(),
		ProcessorID: "cs_test_123",
		CheckoutURL: "https://checkout.example.com/cs_test_123",
		Amount:      90.00,
		Currency:    "usd",
		Status:      models.SessionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentSessionRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_sessions`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(openSession())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Second Open Session Rejected", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_sessions`).
			WillReturnError(fmt.Errorf(`duplicate key value violates unique constraint "payment_sessions_open_booking_idx"`))

		err := repo.Create(openSession())
		assert.ErrorIs(t, err, models.ErrSessionAlreadyOpen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestResolveSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentSessionRepository(db)
	sessionID := uuid.New()

	t.Run("Wins Compare And Set", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_sessions`).
			WithArgs(sessionID, models.SessionPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.Resolve(sessionID, models.SessionPaid)
		require.NoError(t, err)
		assert.True(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Loses When Already Resolved", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_sessions`).
			WithArgs(sessionID, models.SessionFailed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		won, err := repo.Resolve(sessionID, models.SessionFailed)
		require.NoError(t, err)
		assert.False(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Open Is Not A Target State", func(t *testing.T) {
		won, err := repo.Resolve(sessionID, models.SessionOpen)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.False(t, won)
	})
}

func TestGetSessionByProcessorID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentSessionRepository(db)

	t.Run("Found", func(t *testing.T) {
		want := openSession()
		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE processor_id`).
			WithArgs(want.ProcessorID).
			WillReturnRows(sessionRows(want))

		got, err := repo.GetByProcessorID(want.ProcessorID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, models.SessionOpen, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE processor_id`).
			WithArgs("cs_missing").
			WillReturnRows(sessionRows(nil))

		got, err := repo.GetByProcessorID("cs_missing")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
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
