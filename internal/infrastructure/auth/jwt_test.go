package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reformshop/backend/internal/infrastructure/config"
)

func newTestService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters!!",
		Issuer:                "reformshop-test",
		AccessTokenExpiration: time.Minute,
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	token, expiresAt, err := svc.GenerateToken(userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)

	identity, err := svc.IdentityFromToken(token)
	require.NoError(t, err)
	assert.True(t, identity.IsAuthenticated())
	assert.Equal(t, userID, identity.UserID())
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	svc := newTestService()
	other := NewJWTService(config.JWTConfig{
		Secret:                "another-secret-also-32-characters!!!",
		AccessTokenExpiration: time.Minute,
	})

	token, _, err := other.GenerateToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters!!",
		AccessTokenExpiration: -time.Minute,
	})

	token, _, err := svc.GenerateToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_RejectsMissingUserID(t *testing.T) {
	svc := newTestService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-at-least-32-characters!!"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	svc := newTestService()

	_, err := svc.IdentityFromToken("not-a-token")
	require.Error(t, err)
}
