package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/healthcard/healthcard-api/pkg/config"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Claims is the JWT payload issued at login and registration
type Claims struct {
	UserID string         `json:"user_id"`
	Role   types.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager creates a token manager from JWT configuration
func NewTokenManager(cfg *config.JWTConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.SecretKey),
		ttl:    time.Duration(cfg.AccessTokenTTL) * time.Second,
		issuer: cfg.Issuer,
	}
}

// Issue creates a signed HS256 token for the user
func (m *TokenManager) Issue(userID string, role types.UserRole) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to sign token", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil || !token.Valid {
		return nil, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "Invalid or expired token")
	}
	return claims, nil
}
