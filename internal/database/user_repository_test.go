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

func userRows(id uuid.UUID, email, name string, role models.UserRole) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "name", "role", "created_at", "updated_at",
	}).AddRow(id, email, "$2a$12$hash", name, role, now, now)
}

func TestCreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(sqlmock.AnyArg(), "jane@example.com", "$2a$12$hash", "Jane", models.RoleUser, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(userRows(userID, "jane@example.com", "Jane", models.RoleUser))

		user, err := repo.CreateUser("Jane@Example.com", "$2a$12$hash", "Jane", models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", user.Email)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))

		user, err := repo.CreateUser("jane@example.com", "hash", "Jane", models.RoleUser)
		assert.ErrorIs(t, err, models.ErrEmailTaken)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("jane@example.com").
			WillReturnRows(userRows(userID, "jane@example.com", "Jane", models.RoleUser))

		user, err := repo.GetUserByEmail("jane@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, userID, user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found Returns Nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("missing@example.com").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "password_hash", "name", "role", "created_at", "updated_at",
			}))

		user, err := repo.GetUserByEmail("missing@example.com")
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
