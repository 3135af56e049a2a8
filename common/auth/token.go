package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	ClaimRole   = "role"
	ClaimType   = "typ"
	TokenAccess = "access"
	RoleAdmin   = "admin"
	defaultTTL  = time.Hour
	issuer      = "sau-admissions"
)

// TokenManager signs and validates HS256 tokens for the admin endpoints.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenManager{}
	}
	return &TokenManager{secret: []byte(secret)}
}

// Configured reports whether a signing secret is present.
func (m *TokenManager) Configured() bool {
	return m != nil && len(m.secret) > 0
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (m *TokenManager) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if !m.Configured() {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims[ClaimType].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// Issue signs an access token for subject with the given role. A zero ttl
// means one hour.
func (m *TokenManager) Issue(subject, role string, ttl time.Duration) (string, error) {
	if !m.Configured() {
		return "", fmt.Errorf("JWT secret not configured")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     subject,
		"iss":     issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
		ClaimRole: role,
		ClaimType: TokenAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
