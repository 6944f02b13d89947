// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxUsernameLength is the longest username accepted, in characters.
const MaxUsernameLength = 64

var validate = validator.New(validator.WithRequiredStructEnabled())

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string

	// ResetTokenHash and ResetTokenExpiresAt are either both set or both nil.
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasResetToken reports whether a reset token is outstanding, expired or not.
func (u *User) HasResetToken() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil
}

// SetResetToken records a pending reset.
func (u *User) SetResetToken(tokenHash string, expiresAt time.Time) {
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiresAt = &expiresAt
}

// ClearResetToken removes any pending reset.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
}

// Profile returns the public projection of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Profile is the externally visible view of a User.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(username))
}

// ValidateEmail checks that email is a syntactically valid address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return validationError(MsgInvalidEmail)
	}
	return nil
}

// ValidateUsername validates a normalized username. Usernames are free text
// but must be non-blank, printable, and at most MaxUsernameLength characters.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return validationError(MsgInvalidUsername)
	}
	for _, r := range username {
		if !unicode.IsPrint(r) {
			return validationError(MsgInvalidUsername)
		}
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and fills in ID, CreatedAt, and UpdatedAt.
	// Returns an error wrapping ErrConflict if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns an error wrapping ErrNotFound if no user has the email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetToken retrieves the user whose reset token hash matches and
	// whose token expires after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// List returns up to take users ordered by ID, skipping the first skip.
	List(ctx context.Context, skip, take int) ([]*User, error)

	// Update persists username, email, and password hash.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SetResetToken stores a reset token hash and its expiry in one write.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically sets a new password hash and clears the
	// reset token for the user holding an unexpired matching token. Returns
	// the user's ID, or an error wrapping ErrNotFound when no row matched.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error)

	// DeleteExpiredResetTokens clears reset tokens that expired at or before now.
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	// Delete removes a user.
	Delete(ctx context.Context, id int64) error
}
