// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SMTPConfig configures an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// StartTLS upgrades the connection when the server offers it.
	StartTLS bool
}

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	now  func() time.Time
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	d := &net.Dialer{Timeout: 10 * time.Second}
	return &SMTPSender{cfg: cfg, dial: d.DialContext, now: time.Now}, nil
}

// Send delivers msg. The context bounds the whole SMTP exchange.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	conn, err := s.dial(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "dial").With("addr", s.cfg.Addr()).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort, the exchange still fails on a dead conn
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake error takes precedence
		return oops.Code("MAIL_SEND_FAILED").With("operation", "handshake").Wrap(err)
	}
	defer client.Close() //nolint:errcheck // Quit below reports delivery errors

	if s.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return oops.Code("MAIL_SEND_FAILED").With("operation", "starttls").Wrap(err)
			}
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("operation", "auth").Wrap(err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "mail from").Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "rcpt to").With("to", msg.To).Wrap(err)
	}

	w, err := client.Data()
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "data").Wrap(err)
	}
	if _, err := w.Write(s.render(msg)); err != nil {
		_ = w.Close() //nolint:errcheck // write error takes precedence
		return oops.Code("MAIL_SEND_FAILED").With("operation", "write body").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "end data").Wrap(err)
	}

	if err := client.Quit(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "quit").Wrap(err)
	}
	return nil
}

// render builds an RFC 5322 message with CRLF line endings.
func (s *SMTPSender) render(msg Message) []byte {
	var buf bytes.Buffer
	writeHeader := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}
	writeHeader("From", msg.From)
	writeHeader("To", msg.To)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", s.now().Format(time.RFC1123Z))
	writeHeader("Message-ID", "<"+ulid.Make().String()+"@"+s.cfg.Host+">")
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=utf-8")
	writeHeader("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.Write(normalizeNewlines([]byte(msg.Text)))
	return buf.Bytes()
}

func normalizeNewlines(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
