// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wardenid/warden/internal/api"
	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/auth/postgres"
	"github.com/wardenid/warden/internal/config"
	"github.com/wardenid/warden/internal/logging"
	"github.com/wardenid/warden/internal/mail"
	"github.com/wardenid/warden/internal/observability"
	"github.com/wardenid/warden/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API",
		Long: `Start the HTTP account API and the metrics/health server. The
process runs until SIGINT or SIGTERM, then drains in-flight requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// services holds the account components built from configuration.
type services struct {
	accounts      *auth.AccountService
	resets        *auth.ResetTokenManager
	authenticator *auth.Authenticator
}

func buildServices(cfg *config.Config, db Database, sender mail.Sender, logger *slog.Logger) (*services, error) {
	users := postgres.NewUserRepository(db)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	sessions, err := auth.NewSessionTokenService([]byte(cfg.Auth.SessionSecret), auth.WithSessionTTL(cfg.Auth.SessionTTL))
	if err != nil {
		return nil, err
	}

	resets, err := auth.NewResetTokenManagerWithLogger(users, hasher, sender, auth.ResetMailConfig{
		From:                cfg.Mail.From,
		RecoverySubject:     cfg.Mail.RecoverySubject,
		ConfirmationSubject: cfg.Mail.ConfirmationSubject,
	}, logger)
	if err != nil {
		return nil, err
	}

	accounts, err := auth.NewAccountServiceWithLogger(users, hasher, sessions, resets, logger)
	if err != nil {
		return nil, err
	}

	authenticator, err := auth.NewAuthenticator(sessions, logger)
	if err != nil {
		return nil, err
	}

	return &services{accounts: accounts, resets: resets, authenticator: authenticator}, nil
}

// runServeWithDeps runs the serve command with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	logger := logging.SetDefault("warden", version, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting warden",
		"addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"mail_transport", cfg.Mail.Transport,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := deps.DatabaseFactory(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	sender, releaseSender, err := deps.MailSenderFactory(cfg, logger)
	if err != nil {
		return oops.Code("MAIL_SETUP_FAILED").With("transport", cfg.Mail.Transport).Wrap(err)
	}
	defer releaseSender()

	svc, err := buildServices(cfg, db, sender, logger)
	if err != nil {
		return err
	}

	baseURL, err := api.NewBaseURLResolver(cfg.HTTP.PublicURL, cfg.HTTP.TrustedHosts)
	if err != nil {
		return err
	}

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, db.Ping)
		metrics = obsServer.Metrics()
	}

	handler, err := api.NewRouter(api.RouterConfig{
		Accounts:       svc.accounts,
		Authenticator:  svc.authenticator,
		BaseURL:        baseURL,
		Metrics:        metrics,
		Logger:         logger,
		RateLimit:      api.RateLimit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		DevMode:        cfg.HTTP.DevMode,
	})
	if err != nil {
		return err
	}
	apiServer := deps.APIServerFactory(cfg.HTTP.Addr, handler, logger)

	g, gctx := errgroup.WithContext(ctx)

	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	g.Go(func() error { return watchServer(gctx, apiErrCh, "api") })

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopServers(cfg.HTTP.ShutdownTimeout, logger, apiServer)
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		g.Go(func() error { return watchServer(gctx, obsErrCh, "observability") })
	}

	g.Go(func() error {
		purgeExpiredResets(gctx, svc.resets, cfg.Auth.ResetPurgeInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		servers := []stoppable{apiServer}
		if obsServer != nil {
			servers = append(servers, obsServer)
		}
		return stopServers(cfg.HTTP.ShutdownTimeout, logger, servers...)
	})

	cmd.Println("Warden started")
	logger.Info("warden ready", "addr", apiServer.Addr())

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

type stoppable interface {
	Stop(ctx context.Context) error
}

func stopServers(timeout time.Duration, logger *slog.Logger, servers ...stoppable) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watchServer returns the first serve error from errCh. It returns nil when
// the server stops cleanly or ctx ends first.
func watchServer(ctx context.Context, errCh <-chan error, name string) error {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return nil
		}
		return oops.Code("SERVER_FAILED").With("server", name).Wrap(err)
	case <-ctx.Done():
		return nil
	}
}

type resetPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpiredResets clears expired reset tokens every interval until ctx
// ends. A non-positive interval disables purging.
func purgeExpiredResets(ctx context.Context, purger resetPurger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				errutil.LogWarnContext(ctx, logger, "purge expired reset tokens failed", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired reset tokens", "count", n)
			}
		}
	}
}
