package handlers

import (
	"bytes"
	"errors"
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
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := &mockDatabase{db: sqlx.NewDb(rawDB, "sqlmock")}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	jwtService := jwt.NewService("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	handler := NewAuthHandler(database.NewUserRepository(db), jwtService, bcrypt.MinCost, logger)

	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	return r, mock
}

func userRow(id uuid.UUID, email, hash string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "name", "role", "created_at", "updated_at",
	}).AddRow(id, email, hash, "Jane", models.RoleUser, now, now)
}

func TestRegister(t *testing.T) {
	t.Run("Success Returns Tokens", func(t *testing.T) {
		router, mock := newAuthRouter(t)
		userID := uuid.New()

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnRows(userRow(userID, "jane@example.com", "$2a$04$hash"))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"jane@example.com","password":"s3cret-pass","name":"Jane"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "access_token")
		assert.Contains(t, w.Body.String(), "refresh_token")
		assert.NotContains(t, w.Body.String(), "password_hash")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		router, mock := newAuthRouter(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(errors.New("duplicate key value violates unique constraint"))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"jane@example.com","password":"s3cret-pass","name":"Jane"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "email_taken")
	})

	t.Run("Short Password Rejected", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"jane@example.com","password":"short","name":"Jane"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		router, mock := newAuthRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("jane@example.com").
			WillReturnRows(userRow(uuid.New(), "jane@example.com", string(hash)))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"jane@example.com","password":"s3cret-pass"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "access_token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Wrong Password", func(t *testing.T) {
		router, mock := newAuthRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("jane@example.com").
			WillReturnRows(userRow(uuid.New(), "jane@example.com", string(hash)))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"jane@example.com","password":"wrong-pass"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_credentials")
	})

	t.Run("Unknown Email Gets The Same Response", func(t *testing.T) {
		router, mock := newAuthRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "password_hash", "name", "role", "created_at", "updated_at",
			}))

		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"email":"nobody@example.com","password":"s3cret-pass"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_credentials")
	})
}
