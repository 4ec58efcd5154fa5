package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	tokens := NewTokens("test-secret", 24*time.Hour)

	raw, err := tokens.Generate(7, "admin", time.Now())
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParse_WrongSecret(t *testing.T) {
	raw, err := NewTokens("secret-a", time.Hour).Generate(1, "cashier", time.Now())
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Parse(raw)
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	raw, err := tokens.Generate(1, "cashier", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = tokens.Parse(raw)
	assert.Error(t, err)
}

func TestParse_RejectsForeignSigningMethod(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	claims := &Claims{
		UserID: 1,
		Role:   "cashier",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	// Correct secret, wrong algorithm: only HS256 tokens are accepted.
	_, err = tokens.Parse(raw)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("rahasia123")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "rahasia123"))
	assert.False(t, CheckPassword(hash, "salah"))
}
