// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/guard"
	"github.com/wardenid/warden/internal/identity"
	"github.com/wardenid/warden/internal/observability"
	"github.com/wardenid/warden/pkg/errutil"
)

// Profile listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// dummyPassword is hashed once per service so logins for unknown emails
// spend the same time in Verify as logins for known ones.
//
//nolint:gosec // G101: not a credential.
const dummyPassword = "warden-timing-equalizer"

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the payload of Login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateInput is the payload of UpdateProfile. Empty fields are left unchanged.
type UpdateInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the result envelope of Register and UpdateProfile.
type UserResponse struct {
	Success bool     `json:"success"`
	User    *Profile `json:"user,omitempty"`
	Errors  string   `json:"errors,omitempty"`
}

// LoginResponse is the result envelope of Login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Errors  string `json:"errors,omitempty"`
}

// DeleteResponse is the result envelope of DeleteAccount.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Errors  string `json:"errors,omitempty"`
}

// TokenIssuer issues session tokens.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// AccountService implements registration, login, profile reads, and the
// authenticated account operations.
type AccountService struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions TokenIssuer
	resets   *ResetTokenManager
	logger   *slog.Logger

	dummyHash func() (string, error)
	protected guard.Pipeline

	updateProfile guard.Operation[UpdateInput, UserResponse]
	deleteAccount guard.Operation[struct{}, DeleteResponse]
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserRepository, hasher PasswordHasher, sessions TokenIssuer, resets *ResetTokenManager) (*AccountService, error) {
	return NewAccountServiceWithLogger(users, hasher, sessions, resets, slog.Default())
}

// NewAccountServiceWithLogger creates an AccountService that logs to logger.
// Protected operations are guarded by guard.RequireAuthenticated followed by
// any extra guards given.
func NewAccountServiceWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	sessions TokenIssuer,
	resets *ResetTokenManager,
	logger *slog.Logger,
	extra ...guard.Guard,
) (*AccountService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session token service is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset token manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &AccountService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		resets:    resets,
		logger:    logger,
		protected: guard.NewPipeline(guard.RequireAuthenticated()).With(extra...),
	}
	s.dummyHash = sync.OnceValues(func() (string, error) {
		return hasher.Hash(dummyPassword)
	})
	s.updateProfile = guard.Wrap(s.protected, s.doUpdateProfile)
	s.deleteAccount = guard.Wrap(s.protected, s.doDeleteAccount)
	return s, nil
}

// Protected returns the pipeline guarding UpdateProfile and DeleteAccount.
func (s *AccountService) Protected() guard.Pipeline {
	return s.protected
}

// Register creates an account. Username and email are stored lowercased.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) UserResponse {
	user, err := s.register(ctx, in)
	s.record(ctx, "register", err)
	if err != nil {
		return UserResponse{Errors: UserMessage(err)}
	}
	p := user.Profile()
	return UserResponse{Success: true, User: &p}
}

func (s *AccountService) register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	username := NormalizeUsername(in.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	user := &User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, oops.With("operation", "create user").With("email", email).Wrap(err)
	}
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords produce the same message.
func (s *AccountService) Login(ctx context.Context, in LoginInput) LoginResponse {
	token, err := s.login(ctx, in)
	s.record(ctx, "login", err)
	if err != nil {
		return LoginResponse{Errors: UserMessage(err)}
	}
	return LoginResponse{Success: true, Token: token}
}

func (s *AccountService) login(ctx context.Context, in LoginInput) (string, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	if user == nil {
		dummy, err := s.dummyHash()
		if err == nil {
			_, _ = s.hasher.Verify(in.Password, dummy) //nolint:errcheck // timing only
		}
		return "", invalidCredentials()
	}

	valid, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err)
	}
	if !valid {
		return "", invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, in.Password)
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			With("user_id", user.ID).
			Wrap(err)
	}
	return token, nil
}

// upgradeHash rehashes with current parameters. Failure does not affect login.
func (s *AccountService) upgradeHash(ctx context.Context, userID int64, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, userID, newHash)
	}
	if err != nil {
		errutil.LogWarnContext(ctx, s.logger, "password hash upgrade failed", err)
	}
}

// RequestPasswordReset starts password recovery for email. Every failure
// cause is reported as false.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, baseURL string) bool {
	return s.resets.RequestReset(ctx, email, baseURL).Collapse()
}

// CompletePasswordReset finishes password recovery. Every failure cause is
// reported as false.
func (s *AccountService) CompletePasswordReset(ctx context.Context, token, password, confirm string) bool {
	return s.resets.CompleteReset(ctx, token, password, confirm).Collapse()
}

// ValidateResetToken reports whether token is currently redeemable.
func (s *AccountService) ValidateResetToken(ctx context.Context, token string) bool {
	_, err := s.resets.ValidateToken(ctx, token)
	return err == nil
}

// ListProfiles returns one page of profiles ordered by id. page is zero based.
func (s *AccountService) ListProfiles(ctx context.Context, page, limit int) ([]Profile, error) {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	users, err := s.users.List(ctx, page*limit, limit)
	if err != nil {
		return nil, oops.Code("PROFILE_LIST_FAILED").
			With("page", page).
			With("limit", limit).
			Wrap(err)
	}

	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}

// GetProfile returns the profile of user id.
func (s *AccountService) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("id", id).Wrap(err)
		}
		return nil, oops.Code("PROFILE_GET_FAILED").With("id", id).Wrap(err)
	}
	p := user.Profile()
	return &p, nil
}

// UpdateProfile changes the caller's own account. The returned error is
// non-nil only when a guard denied the call.
func (s *AccountService) UpdateProfile(ctx context.Context, in UpdateInput) (UserResponse, error) {
	return s.updateProfile(ctx, in)
}

func (s *AccountService) doUpdateProfile(ctx context.Context, in UpdateInput) (UserResponse, error) {
	user, err := s.applyUpdate(ctx, identity.UserID(ctx), in)
	s.record(ctx, "update_profile", err)
	if err != nil {
		return UserResponse{Errors: UserMessage(err)}, nil
	}
	p := user.Profile()
	return UserResponse{Success: true, User: &p}, nil
}

func (s *AccountService) applyUpdate(ctx context.Context, userID int64, in UpdateInput) (*User, error) {
	if in.Email != "" {
		if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("id", userID).Wrap(err)
		}
		return nil, oops.With("operation", "get user").With("id", userID).Wrap(err)
	}

	if in.Username != "" {
		username := NormalizeUsername(in.Username)
		if err := ValidateUsername(username); err != nil {
			return nil, err
		}
		user.Username = username
	}
	if in.Email != "" {
		user.Email = NormalizeEmail(in.Email)
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, oops.With("operation", "hash password").Wrap(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("id", userID).Wrap(err)
		}
		return nil, oops.With("operation", "update user").With("id", userID).Wrap(err)
	}
	return user, nil
}

// DeleteAccount removes the caller's own account. The returned error is
// non-nil only when a guard denied the call.
func (s *AccountService) DeleteAccount(ctx context.Context) (DeleteResponse, error) {
	return s.deleteAccount(ctx, struct{}{})
}

func (s *AccountService) doDeleteAccount(ctx context.Context, _ struct{}) (DeleteResponse, error) {
	userID := identity.UserID(ctx)
	err := s.users.Delete(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		err = oops.Code(CodeUserNotFound).With("id", userID).Wrap(err)
	}
	s.record(ctx, "delete_account", err)
	if err != nil {
		return DeleteResponse{Errors: UserMessage(err)}, nil
	}
	return DeleteResponse{Success: true}, nil
}

// record counts the outcome and logs failures. Caller mistakes are logged at
// debug, everything else at error.
func (s *AccountService) record(ctx context.Context, event string, err error) {
	if err == nil {
		observability.RecordAuthEvent(event, observability.OutcomeSuccess)
		return
	}
	observability.RecordAuthEvent(event, observability.OutcomeFailure)

	switch errutil.Code(err) {
	case CodeValidation, CodeConflict, CodeInvalidCredentials, CodeUserNotFound:
		s.logger.DebugContext(ctx, event+" rejected", errutil.Attrs(err)...)
	default:
		errutil.LogErrorContext(ctx, s.logger, event+" failed", err)
	}
}
