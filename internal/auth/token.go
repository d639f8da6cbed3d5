package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomchat-service/internal/models"
)

// ErrInvalidCredential is returned for any malformed, expired or tampered
// token. The cause is deliberately not distinguished.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims carries the identity encoded in an access token.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the identity.
func (m *TokenManager) Issue(identity models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify validates a token and returns the identity it encodes. Every
// failure mode maps to ErrInvalidCredential.
func (m *TokenManager) Verify(tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return models.Identity{}, ErrInvalidCredential
	}
	return models.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
