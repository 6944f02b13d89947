// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/identity"
)

// TokenHeader is the request header carrying the session token.
const TokenHeader = "x-token"

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	Verify(token string) (*SessionClaims, error)
}

// Authenticator resolves the caller of each request. It never rejects a
// request; callers without a valid token proceed as anonymous and protected
// operations deny them later.
type Authenticator struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(verifier TokenVerifier, logger *slog.Logger) (*Authenticator, error) {
	if verifier == nil {
		return nil, oops.Errorf("token verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{verifier: verifier, logger: logger}, nil
}

// Authenticate returns ctx carrying the identity token proves, or the
// anonymous identity when token is empty or invalid.
func (a *Authenticator) Authenticate(ctx context.Context, token string) context.Context {
	if token == "" {
		return identity.WithIdentity(ctx, identity.Anonymous)
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.DebugContext(ctx, "session token rejected", "error", err)
		return identity.WithIdentity(ctx, identity.Anonymous)
	}
	return identity.WithIdentity(ctx, identity.Identity{UserID: claims.User.ID})
}

// Middleware attaches the caller's identity to every request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := a.Authenticate(r.Context(), r.Header.Get(TokenHeader))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
