// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wardenid/warden/internal/config"
	"github.com/wardenid/warden/internal/logging"
	"github.com/wardenid/warden/internal/mail"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued mail",
		Long: `Consume the Redis mail queue filled by "serve" when
mail.transport is "queue", delivering each message over SMTP. In dev mode
without an SMTP host, messages are written to the log instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runWorker(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.SetDefault("warden-worker", version, cfg.Log.Format, cfg.Log.Level)

	worker, err := newMailWorker(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Mail worker started")
	return worker.Run(ctx)
}

// deliverySender picks how the worker delivers: SMTP when a host is
// configured, the log in dev mode.
func deliverySender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Mail.SMTP.Host == "" {
		if !cfg.HTTP.DevMode {
			return nil, oops.Code("CONFIG_INVALID").
				With("field", "mail.smtp.host").
				Errorf("smtp host is required to deliver queued mail")
		}
		logger.Warn("no smtp host configured; queued mail will be logged, not delivered")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig(cfg.Mail.SMTP))
}

func newMailWorker(cfg *config.Config, logger *slog.Logger) (*mail.Worker, error) {
	opt, err := mail.RedisOpt(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	sender, err := deliverySender(cfg, logger)
	if err != nil {
		return nil, err
	}
	return mail.NewWorker(mail.WorkerConfig{
		RedisOpt:    opt,
		Concurrency: cfg.Mail.WorkerConcurrency,
		Sender:      sender,
		Logger:      logger,
	})
}
