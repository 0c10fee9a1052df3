package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager("0123456789abcdef0123456789abcdef", "mailflow-test", 15*time.Minute, 7*24*time.Hour)
}

func TestManager_GenerateAndValidate(t *testing.T) {
	m := newTestManager()

	pair, err := m.GenerateTokenPair("user-1", "a@example.com", "manager")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(15*60), pair.ExpiresIn)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "manager", claims.Role)

	_, err = m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
}

func TestManager_TokenTypeMismatch(t *testing.T) {
	m := newTestManager()
	pair, err := m.GenerateTokenPair("user-1", "a@example.com", "user")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestManager_Invalid(t *testing.T) {
	m := newTestManager()

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{"乱码", func() string { return "not-a-token" }, ErrInvalidToken},
		{"其他密钥签发", func() string {
			other := NewManager("ffffffffffffffffffffffffffffffff", "mailflow-test", time.Minute, time.Hour)
			pair, _ := other.GenerateTokenPair("u", "e", "user")
			return pair.AccessToken
		}, ErrInvalidToken},
		{"其他签发方", func() string {
			other := NewManager("0123456789abcdef0123456789abcdef", "someone-else", time.Minute, time.Hour)
			pair, _ := other.GenerateTokenPair("u", "e", "user")
			return pair.AccessToken
		}, ErrInvalidToken},
		{"已过期", func() string {
			expired := newTestManager()
			expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
			pair, _ := expired.GenerateTokenPair("u", "e", "user")
			return pair.AccessToken
		}, ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
