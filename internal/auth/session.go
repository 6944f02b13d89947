// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SessionTokenExpiry is the default lifetime of a session token.
const SessionTokenExpiry = 24 * time.Hour

// MinSessionSecretBytes is the shortest signing secret accepted.
const MinSessionSecretBytes = 32

// SessionUser is the user reference embedded in a session token.
type SessionUser struct {
	ID int64 `json:"id"`
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	User SessionUser `json:"user"`
	jwt.RegisteredClaims
}

// SessionTokenService issues and verifies signed, stateless session tokens.
// The secret is fixed at construction.
type SessionTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption configures a SessionTokenService.
type SessionOption func(*SessionTokenService)

// WithSessionTTL overrides the token lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionTokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionTokenService creates a SessionTokenService signing with secret.
func NewSessionTokenService(secret []byte, opts ...SessionOption) (*SessionTokenService, error) {
	if len(secret) < MinSessionSecretBytes {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_bytes", MinSessionSecretBytes).
			Errorf("session secret must be at least %d bytes", MinSessionSecretBytes)
	}
	s := &SessionTokenService{
		secret: append([]byte(nil), secret...),
		ttl:    SessionTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a signed token for userID that expires after the configured TTL.
func (s *SessionTokenService) Issue(userID int64) (string, error) {
	if userID <= 0 {
		return "", oops.Code(CodeValidation).With("user_id", userID).Errorf("user id must be positive")
	}

	now := s.now()
	claims := SessionClaims{
		User: SessionUser{ID: userID},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").With("user_id", userID).Wrap(err)
	}
	return signed, nil
}

// Verify checks the token's signature, algorithm, and expiry and returns its
// claims. Every failure is reported as ErrInvalidToken.
func (s *SessionTokenService) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if !parsed.Valid || claims.User.ID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
