// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package mail delivers transactional email.
//
// Three transports satisfy Sender: SMTPSender talks to a relay directly,
// QueueSender enqueues messages for a Worker backed by asynq, and LogSender
// writes messages to a logger for development.
package mail

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// Message is a plain-text email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return oops.Code("MAIL_INVALID").Errorf("recipient is required")
	}
	if strings.TrimSpace(m.From) == "" {
		return oops.Code("MAIL_INVALID").Errorf("sender is required")
	}
	if strings.ContainsAny(m.To+m.From+m.Subject, "\r\n") {
		return oops.Code("MAIL_INVALID").Errorf("header fields must not contain line breaks")
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
