// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to a logger instead of delivering them. Message
// bodies carry live reset links, so they are only logged at debug level.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope at info level and the body at debug level.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail message",
		"to", msg.To,
		"from", msg.From,
		"subject", msg.Subject,
	)
	s.logger.DebugContext(ctx, "mail message body",
		"to", msg.To,
		"text", msg.Text,
	)
	return nil
}
