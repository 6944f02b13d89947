// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/api"
	"github.com/wardenid/warden/internal/auth/postgres"
	"github.com/wardenid/warden/internal/config"
	"github.com/wardenid/warden/internal/mail"
	"github.com/wardenid/warden/internal/observability"
	"github.com/wardenid/warden/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect with retry
	DatabaseFactory func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Database, error)

	// MailSenderFactory builds the mail transport named by cfg.Mail.Transport.
	// The returned func releases transport resources.
	// Default: newMailSender
	MailSenderFactory func(cfg *config.Config, logger *slog.Logger) (mail.Sender, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the API server.
	// Default: api.NewServer
	APIServerFactory func(addr string, handler http.Handler, logger *slog.Logger) APIServer
}

// Database is the pool the user repository runs on.
type Database interface {
	postgres.Querier
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// APIServer interface wraps the methods used from api.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Database, error) {
			opts := store.DefaultConnectOptions()
			if cfg.ConnectAttempts > 0 {
				opts.Attempts = cfg.ConnectAttempts
			}
			opts.Logger = logger
			return store.Connect(ctx, cfg.URL, opts)
		}
	}
	if out.MailSenderFactory == nil {
		out.MailSenderFactory = newMailSender
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) APIServer {
			return api.NewServer(addr, handler, logger)
		}
	}
	return &out
}

// newMailSender builds the configured mail transport.
func newMailSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, func(), error) {
	switch cfg.Mail.Transport {
	case config.TransportSMTP:
		sender, err := mail.NewSMTPSender(mail.SMTPConfig(cfg.Mail.SMTP))
		if err != nil {
			return nil, nil, err
		}
		return sender, func() {}, nil
	case config.TransportQueue:
		opt, err := mail.RedisOpt(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		client := asynq.NewClient(opt)
		release := func() {
			if err := client.Close(); err != nil {
				logger.Warn("error closing mail queue client", "error", err)
			}
		}
		return mail.NewQueueSender(client), release, nil
	case config.TransportLog:
		return mail.NewLogSender(logger), func() {}, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "mail.transport").
			Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}
}
