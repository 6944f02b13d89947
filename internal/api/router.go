// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package api exposes the account operations over HTTP with JSON bodies.
//
// Every request passes through the request authenticator, which attaches the
// caller identity from the x-token header. Protected operations deny
// anonymous callers with 401 through the account service's guard pipeline.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/observability"
)

// DefaultRequestTimeout bounds handler execution when RouterConfig leaves
// RequestTimeout unset.
const DefaultRequestTimeout = 30 * time.Second

// msgTooManyRequests is returned when a client exceeds the rate limit.
const msgTooManyRequests = "Too many requests. Try again later."

// RateLimit throttles /signin and /recovery per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Accounts       *auth.AccountService
	Authenticator  *auth.Authenticator
	BaseURL        *BaseURLResolver
	Metrics        *observability.Metrics
	Logger         *slog.Logger
	RateLimit      RateLimit
	RequestTimeout time.Duration
	// TrustedProxies may set the client address through forwarding
	// headers. Without any, rate limits key on the TCP peer.
	TrustedProxies []string
	DevMode        bool
}

// NewRouter builds the HTTP handler for the account API.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	if cfg.Authenticator == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if cfg.BaseURL == nil {
		return nil, oops.Errorf("base url resolver is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	h := &handlers{accounts: cfg.Accounts, baseURL: cfg.BaseURL, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(
		proxies.Middleware,
		requestIDMiddleware,
		accessLogMiddleware(cfg.Logger),
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
		secureHeadersMiddleware(cfg.DevMode, cfg.Logger),
		metricsMiddleware(cfg.Metrics),
		cfg.Authenticator.Middleware,
	)

	r.Get("/healthz", healthz)
	r.Post("/signup", h.signup)
	r.Get("/reset/{token}", h.validateReset)
	r.Post("/reset", h.reset)
	r.Get("/profiles", h.listProfiles)
	r.Get("/profiles/{id}", h.getProfile)
	r.Patch("/profile", h.updateProfile)
	r.Delete("/profile", h.deleteAccount)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
				}),
			))
		}
		r.Post("/signin", h.signin)
		r.Post("/recovery", h.recovery)
	})

	return r, nil
}
