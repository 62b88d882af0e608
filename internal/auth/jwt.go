// Package auth authenticates connecting principals: JWT bearer tokens, API
// keys and the browser origin allowlist.
package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized is returned for a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMismatch is returned when a relay write carries the wrong
	// per-session token.
	ErrTokenMismatch = errors.New("session token mismatch")
	// ErrOriginRejected is returned for browser origins outside the allowlist.
	ErrOriginRejected = errors.New("origin not allowed")
)

const issuer = "pizzapi-relay"

// TokenClaims is the JWT payload.
type TokenClaims struct {
	UserName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies user tokens with an Ed25519 key derived from
// the configured secret.
type JWTManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	now        func() time.Time
}

// NewJWTManager derives the signing key from secret.
func NewJWTManager(secret string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	seed := sha256.Sum256([]byte(secret))
	privateKey := ed25519.NewKeyFromSeed(seed[:])
	return &JWTManager{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
		now:        time.Now,
	}, nil
}

// CreateToken issues a token for userID. A zero ttl issues a token without
// expiry.
func (m *JWTManager) CreateToken(userID, userName string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := TokenClaims{
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(m.privateKey)
}

// VerifyToken parses and validates a token.
func (m *JWTManager) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
