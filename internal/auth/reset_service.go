// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/mail"
	"github.com/wardenid/warden/internal/observability"
	"github.com/wardenid/warden/pkg/errutil"
)

// ResetMailConfig controls the email sent during password recovery.
type ResetMailConfig struct {
	From                string
	RecoverySubject     string
	ConfirmationSubject string
}

// DefaultResetMailConfig returns the stock sender and subjects.
func DefaultResetMailConfig() ResetMailConfig {
	return ResetMailConfig{
		From:                "passwordreset@demo.com",
		RecoverySubject:     "Password Reset",
		ConfirmationSubject: "Password Reset",
	}
}

// ResetTokenManager drives the password-reset token lifecycle:
// NoToken → TokenIssued → Consumed (back to NoToken) or Expired.
type ResetTokenManager struct {
	users  UserRepository
	hasher PasswordHasher
	mailer mail.Sender
	mail   ResetMailConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewResetTokenManager creates a ResetTokenManager.
func NewResetTokenManager(users UserRepository, hasher PasswordHasher, mailer mail.Sender, cfg ResetMailConfig) (*ResetTokenManager, error) {
	return NewResetTokenManagerWithLogger(users, hasher, mailer, cfg, slog.Default())
}

// NewResetTokenManagerWithLogger creates a ResetTokenManager that logs
// failure causes to logger.
func NewResetTokenManagerWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	mailer mail.Sender,
	cfg ResetMailConfig,
	logger *slog.Logger,
) (*ResetTokenManager, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultResetMailConfig()
	if cfg.From == "" {
		cfg.From = defaults.From
	}
	if cfg.RecoverySubject == "" {
		cfg.RecoverySubject = defaults.RecoverySubject
	}
	if cfg.ConfirmationSubject == "" {
		cfg.ConfirmationSubject = defaults.ConfirmationSubject
	}
	return &ResetTokenManager{
		users:  users,
		hasher: hasher,
		mailer: mailer,
		mail:   cfg,
		now:    time.Now,
		logger: logger,
	}, nil
}

// SetClock overrides the manager's time source. Intended for tests.
func (m *ResetTokenManager) SetClock(now func() time.Time) {
	m.now = now
}

// RequestReset issues a reset token for the account registered under email
// and mails a link of the form {baseURL}/reset/{token}.
func (m *ResetTokenManager) RequestReset(ctx context.Context, email, baseURL string) ResetResult {
	result := m.requestReset(ctx, email, baseURL)
	m.record(ctx, "reset_request", result)
	return result
}

func (m *ResetTokenManager) requestReset(ctx context.Context, email, baseURL string) ResetResult {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return resetFailed(err)
	}
	if baseURL == "" {
		return resetFailed(oops.Code("RESET_REQUEST_FAILED").Errorf("base url is required"))
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resetFailed(oops.Code(CodeUserNotFound).
				With("message", MsgEmailNotFound).
				Wrap(err))
		}
		return resetFailed(oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByEmail").
			Wrap(err))
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return resetFailed(oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err))
	}

	expiresAt := m.now().Add(ResetTokenExpiry)
	if err := m.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return resetFailed(oops.Code("RESET_REQUEST_FAILED").
			With("operation", "SetResetToken").
			With("user_id", user.ID).
			Wrap(err))
	}

	msg := mail.Message{
		To:      user.Email,
		From:    m.mail.From,
		Subject: m.mail.RecoverySubject,
		Text:    recoveryText(baseURL, token),
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		return resetFailed(oops.Code("RESET_REQUEST_FAILED").
			With("operation", "SendRecoveryMail").
			With("user_id", user.ID).
			Wrap(err))
	}

	return resetOK()
}

// ValidateToken reports which user holds token, without consuming it.
func (m *ResetTokenManager) ValidateToken(ctx context.Context, token string) (int64, error) {
	if !wellFormedResetToken(token) {
		return 0, oops.Code(CodeResetNotFoundOrExpired).Errorf("reset token is malformed")
	}
	user, err := m.users.GetByResetToken(ctx, HashResetToken(token), m.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, oops.Code(CodeResetNotFoundOrExpired).Errorf("reset token not found or expired")
		}
		return 0, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByResetToken").
			Wrap(err)
	}
	return user.ID, nil
}

// CompleteReset sets a new password for the user holding token. The new hash
// is written and the token cleared in one conditional update, so a token can
// be consumed at most once.
func (m *ResetTokenManager) CompleteReset(ctx context.Context, token, newPassword, confirmPassword string) ResetResult {
	result := m.completeReset(ctx, token, newPassword, confirmPassword)
	m.record(ctx, "reset_complete", result)
	return result
}

func (m *ResetTokenManager) completeReset(ctx context.Context, token, newPassword, confirmPassword string) ResetResult {
	if !wellFormedResetToken(token) {
		return resetFailed(oops.Code(CodeResetNotFoundOrExpired).Errorf("reset token is malformed"))
	}
	if newPassword != confirmPassword {
		return resetFailed(validationError(MsgPasswordMismatch))
	}

	newHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return resetFailed(oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Hash").
			Wrap(err))
	}

	userID, err := m.users.ConsumeResetToken(ctx, HashResetToken(token), m.now(), newHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resetFailed(oops.Code(CodeResetNotFoundOrExpired).Errorf("reset token not found or expired"))
		}
		return resetFailed(oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "ConsumeResetToken").
			Wrap(err))
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return resetFailed(oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "GetByID").
			With("user_id", userID).
			Wrap(err))
	}

	msg := mail.Message{
		To:      user.Email,
		From:    m.mail.From,
		Subject: m.mail.ConfirmationSubject,
		Text:    confirmationText(user.Email),
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		return resetFailed(oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "SendConfirmationMail").
			With("user_id", userID).
			Wrap(err))
	}

	return resetOK()
}

// PurgeExpired clears reset tokens that have already expired.
func (m *ResetTokenManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.users.DeleteExpiredResetTokens(ctx, m.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

func (m *ResetTokenManager) record(ctx context.Context, event string, result ResetResult) {
	if result.OK {
		observability.RecordAuthEvent(event, observability.OutcomeSuccess)
		return
	}
	observability.RecordAuthEvent(event, observability.OutcomeFailure)
	errutil.LogWarnContext(ctx, m.logger, event+" failed", result.Err)
}

func recoveryText(baseURL, token string) string {
	link := strings.TrimRight(baseURL, "/") + "/reset/" + token
	return "You are receiving this because you (or someone else) have requested the reset of the password for your account.\n\n" +
		"Please click on the following link, or paste this into your browser to complete the process:\n\n" +
		link + "\n\n" +
		"If you did not request this, please ignore this email and your password will remain unchanged.\n"
}

func confirmationText(email string) string {
	return fmt.Sprintf("Hello,\n\n This is a confirmation that the password for your account %s has just been changed.\n", email)
}
