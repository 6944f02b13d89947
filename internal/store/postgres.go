// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package store manages the PostgreSQL connection and schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions tune how Connect waits for the database.
type ConnectOptions struct {
	// Attempts is the number of connection attempts before giving up.
	Attempts uint64
	// InitialBackoff is the delay before the first retry; it doubles each time.
	InitialBackoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// DefaultConnectOptions returns options suited to a service starting next to
// its database.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Attempts:       8,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Logger:         slog.Default(),
	}
}

// Connect opens a pool for databaseURL and waits until the database answers
// a ping, retrying with exponential backoff.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultConnectOptions().InitialBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.NewExponential(opts.InitialBackoff)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(opts.Attempts-1, backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			opts.Logger.DebugContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}
	return pool, nil
}
