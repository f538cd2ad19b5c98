package handlers

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
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

func (m *mockDatabase) Ping() error  { return m.db.Ping() }
func (m *mockDatabase) Close() error { return m.db.Close() }

func newPaymentRouter(t *testing.T, processorURL string, user *middleware.UserContext) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := &mockDatabase{db: sqlx.NewDb(rawDB, "sqlmock")}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.PaymentConfig{
		BaseURL:        processorURL,
		Currency:       "usd",
		PollInterval:   5 * time.Millisecond,
		PollMaxRetries: 2,
	}

	bookings := services.NewBookingService(
		database.NewBookingRepository(db),
		database.NewTripRepository(db),
		database.NewSeatRepository(db),
		&config.BookingConfig{HoldTTL: 10 * time.Minute, MaxSeatsPerUser: 5},
		"usd",
		logger,
	)
	payments := services.NewPaymentService(
		database.NewPaymentSessionRepository(db),
		bookings,
		services.NewCheckoutService(cfg, logger),
		services.NewAuditService(database.NewPaymentAuditRepository(db, logger), logger),
		"usd",
		logger,
	)

	handler := NewPaymentHandler(payments, cfg, logger)

	r := gin.New()
	r.POST("/payments/webhook", handler.Webhook)
	if user != nil {
		r.GET("/payments/status/:session_id", func(c *gin.Context) {
			c.Set(middleware.UserContextKey, *user)
		}, handler.CheckStatus)
	}
	return r, mock
}

func newWebhookRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	return newPaymentRouter(t, "http://127.0.0.1:0", nil)
}

func emptySessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "booking_id", "user_id", "processor_id", "checkout_url",
		"amount", "currency", "status", "resolved_at", "created_at", "updated_at",
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("Unknown Session Is Acknowledged", func(t *testing.T) {
		router, mock := newWebhookRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE processor_id`).
			WithArgs("cs_unknown").
			WillReturnRows(emptySessionRows())

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"session_id":"cs_unknown","event_type":"checkout.session.completed"}`)
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true,"known":false}`, w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Completed Event Confirms And Acknowledges", func(t *testing.T) {
		router, mock := newWebhookRouter(t)
		sessionID := uuid.New()
		bookingID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE processor_id`).
			WithArgs("cs_live_1").
			WillReturnRows(emptySessionRows().AddRow(
				sessionID, bookingID, uuid.New(), "cs_live_1", "https://checkout.example.com/cs_live_1",
				90.00, "usd", models.SessionOpen, nil, now, now,
			))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payment_audits`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`UPDATE payment_sessions`).
			WithArgs(sessionID, models.SessionPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"seats"}).AddRow([]byte("{3,4}")))
		mock.ExpectExec(`UPDATE trip_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"session_id":"cs_live_1","event_type":"checkout.session.completed"}`)
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Event Type Is Rejected", func(t *testing.T) {
		router, mock := newWebhookRouter(t)
		sessionID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE processor_id`).
			WithArgs("cs_live_2").
			WillReturnRows(emptySessionRows().AddRow(
				sessionID, uuid.New(), uuid.New(), "cs_live_2", "https://checkout.example.com/cs_live_2",
				90.00, "usd", models.SessionOpen, nil, now, now,
			))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"session_id":"cs_live_2","event_type":"checkout.session.imaginary"}`)
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Malformed Body", func(t *testing.T) {
		router, _ := newWebhookRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCheckStatusWaitMode(t *testing.T) {
	user := &middleware.UserContext{UserID: uuid.New(), Email: "rider@example.com", Role: "user"}
	sessionID := uuid.New()
	bookingID := uuid.New()
	now := time.Now()

	sessionRow := func() *sqlmock.Rows {
		return emptySessionRows().AddRow(
			sessionID, bookingID, user.UserID, "cs_wait_1", "https://checkout.example.com/cs_wait_1",
			90.00, "usd", models.SessionOpen, nil, now, now,
		)
	}

	t.Run("Returns Unresolved After Poll Budget", func(t *testing.T) {
		processor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"cs_wait_1","status":"open","amount":9000,"currency":"usd"}`))
		}))
		t.Cleanup(processor.Close)

		router, mock := newPaymentRouter(t, processor.URL, user)

		// Two poll attempts, each reading the session and auditing the check
		for i := 0; i < 2; i++ {
			mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE id`).
				WithArgs(sessionID).
				WillReturnRows(sessionRow())
			mock.ExpectExec(`INSERT INTO payment_audits`).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/status/"+sessionID.String()+"?wait=true", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"resolved":false`)
		assert.Contains(t, w.Body.String(), `"status":"open"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Returns Resolved Session", func(t *testing.T) {
		router, mock := newPaymentRouter(t, "http://127.0.0.1:0", user)

		mock.ExpectQuery(`SELECT (.+) FROM payment_sessions WHERE id`).
			WithArgs(sessionID).
			WillReturnRows(emptySessionRows().AddRow(
				sessionID, bookingID, user.UserID, "cs_wait_1", "https://checkout.example.com/cs_wait_1",
				90.00, "usd", models.SessionPaid, now, now, now,
			))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/status/"+sessionID.String()+"?wait=true", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"resolved":true`)
		assert.Contains(t, w.Body.String(), `"status":"paid"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
