package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := m.GeneratePair(42, "a@b.c")
	require.NoError(t, err)

	claims, err := m.VerifyToken(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.NotEmpty(t, claims.ID)

	_, err = m.VerifyToken(pair.RefreshToken, TypeRefresh)
	require.NoError(t, err)
}

func TestTokenTypeIsEnforced(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, time.Hour)
	pair, err := m.GeneratePair(1, "x@y.z")
	require.NoError(t, err)

	_, err = m.VerifyToken(pair.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.VerifyToken(pair.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRejectsForeignSignatureAndExpiry(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, time.Hour)
	other := NewJWTManager("other", time.Minute, time.Hour)
	tok, err := other.GenerateToken(1, "x@y.z")
	require.NoError(t, err)
	_, err = m.VerifyToken(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("secret", -time.Minute, time.Hour)
	tok, err = expired.GenerateToken(1, "x@y.z")
	require.NoError(t, err)
	_, err = m.VerifyToken(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
