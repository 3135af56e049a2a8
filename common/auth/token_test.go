package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("test-secret")

	tok, err := m.Issue("registrar@sau.edu.ng", RoleAdmin, time.Minute)
	require.NoError(t, err)

	claims, err := m.ParseAndValidateToken(tok, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "registrar@sau.edu.ng", claims["sub"])
	assert.Equal(t, RoleAdmin, claims[ClaimRole])
}

func TestParse_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a", ClaimType: TokenAccess, "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	otherSecret, err := NewTokenManager("other").Issue("a", RoleAdmin, time.Minute)
	require.NoError(t, err)

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a", ClaimType: "refresh", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"wrong type", refresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAndValidateToken(tt.token, TokenAccess)
			assert.Error(t, err)
		})
	}
}

func TestUnconfigured(t *testing.T) {
	m := NewTokenManager("  ")
	assert.False(t, m.Configured())
	_, err := m.ParseAndValidateToken("x", "")
	assert.ErrorContains(t, err, "not configured")
	_, err = m.Issue("a", RoleAdmin, 0)
	assert.Error(t, err)
}
