package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "jane@example.com", "user")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, "swiftbus-booking", claims.Issuer)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	token, err := svc.GenerateRefreshToken(userID, "jane@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RefreshToken, claims.TokenType)
}

func TestTokenTypeIsEnforced(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	refresh, err := svc.GenerateRefreshToken(userID, "jane@example.com")
	require.NoError(t, err)

	// A refresh token must not pass access validation even if it were
	// signed with the same secret; here the secrets differ too
	_, err = svc.ValidateAccessToken(refresh)
	assert.Error(t, err)
}

func TestWrongSecretIsRejected(t *testing.T) {
	svc := newTestService()
	other := NewService("different-secret", "refresh-secret", 15*time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(uuid.New(), "jane@example.com", "user")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	svc := NewService("access-secret", "refresh-secret", -1*time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(uuid.New(), "jane@example.com", "user")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
	assert.True(t, svc.IsTokenExpired(token))
}

func TestGarbageTokenIsExpired(t *testing.T) {
	svc := newTestService()
	assert.True(t, svc.IsTokenExpired("not-a-token"))
}
