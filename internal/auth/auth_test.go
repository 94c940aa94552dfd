package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/models"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPasswordHash("s3cret!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestGenerateAndParse(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateJWT(models.User{ID: "u1", Email: "a@b.c", Role: models.RoleFireDriver})
	require.NoError(t, err)

	claims, err := m.ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleFireDriver, claims.Role)
}

func TestParseRejects(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewManager("other-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateJWT(models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = m.ParseJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.GenerateJWT(models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = m.ParseJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseJWT(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerFromConfig(t *testing.T) {
	_, err := NewManagerFromConfig(config.JWTConfig{Secret: "", Expiration: "1h"})
	assert.Error(t, err)

	_, err = NewManagerFromConfig(config.JWTConfig{Secret: "x", Expiration: "tomorrow"})
	assert.Error(t, err)

	m, err := NewManagerFromConfig(config.JWTConfig{Secret: "x", Expiration: "90m"})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, m.ttl)
}
