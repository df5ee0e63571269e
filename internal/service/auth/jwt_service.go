// Package auth verifies the bearer tokens that identify learners. Accounts and
// sign-in live in the surrounding platform; this service only needs to trust
// the user ID carried by an HMAC-signed access token.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for JWT access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for userID. The platform's
	// identity provider normally issues tokens; this exists for tooling and tests.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, ErrWrongTokenType or
	// ErrInvalidToken when validation fails.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated contents of an access token.
type Claims struct {
	UserID    uuid.UUID `json:"uid,omitempty"`
	TokenType string    `json:"type,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
