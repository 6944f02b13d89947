// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/auth"
)

// Querier is the subset of *pgxpool.Pool used by UserRepository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ auth.UserRepository = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, reset_token_hash,
	reset_token_expires_at, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Querier) *UserRepository {
	return &UserRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(key string, value any) error {
	return oops.Code(auth.CodeUserNotFound).With(key, value).Wrap(auth.ErrNotFound)
}

// Create stores a new user. The database assigns ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, user.Username, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return oops.Code(auth.CodeConflict).
			With("email", user.Email).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("id", id)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("email", email)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// GetByResetToken retrieves the user holding an unexpired reset token.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
	`, tokenHash, now)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("reset_token", "hash")
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}
	return user, nil
}

// List returns up to take users ordered by id, skipping the first skip.
func (r *UserRepository) List(ctx context.Context, skip, take int) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, skip, take)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").
				With("operation", "scan user").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

// Update writes username, email, and password hash.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			username = $2,
			email = $3,
			password_hash = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, user.ID, user.Username, user.Email, user.PasswordHash).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("id", user.ID)
	}
	if isUniqueViolation(err) {
		return oops.Code(auth.CodeConflict).
			With("email", user.Email).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	return nil
}

// UpdatePassword updates only the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id)
	}
	return nil
}

// SetResetToken stores a reset token hash, replacing any previous token.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			reset_token_hash = $2,
			reset_token_expires_at = $3,
			updated_at = now()
		WHERE id = $1
	`, id, tokenHash, expiresAt)
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id)
	}
	return nil
}

// ConsumeResetToken sets the new password hash and clears the token in a
// single conditional update. Concurrent consumers of the same token see at
// most one success.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			password_hash = $3,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = now()
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
		RETURNING id
	`, tokenHash, now, passwordHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, notFound("reset_token", "hash")
	}
	if err != nil {
		return 0, oops.Code("USER_CONSUME_RESET_TOKEN_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return id, nil
}

// DeleteExpiredResetTokens clears reset tokens that expired at or before now.
func (r *UserRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("USER_PURGE_RESET_TOKENS_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.ResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}
	return &u, nil
}
