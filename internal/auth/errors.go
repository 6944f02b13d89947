// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/guard"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Error codes for account and credential failures.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeConflict               = "CONFLICT"
	CodeInvalidCredentials     = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken           = "AUTH_INVALID_TOKEN"
	CodeInvalidHash            = "AUTH_INVALID_HASH"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeResetNotFoundOrExpired = "RESET_NOT_FOUND_OR_EXPIRED"
)

// Caller-facing messages.
const (
	MsgInvalidEmail       = "Email is not valid."
	MsgUserExists         = "User already exists."
	MsgInvalidCredentials = "The provided credentials are invalid."
	MsgUserNotFound       = "No user exist with that id."
	MsgEmailNotFound      = "No user exist with that email."
	MsgPasswordMismatch   = "Password did not match."
	MsgPasswordRequired   = "Password is required."
	MsgPasswordTooLong    = "Password is too long."
	MsgInvalidUsername    = "Username is not valid."
	MsgGeneric            = "Something went wrong. Try again."
)

// ErrInvalidToken is returned by SessionTokenService.Verify for any token
// that is not a valid, unexpired session token.
var ErrInvalidToken = oops.Code(CodeInvalidToken).Errorf("session token is not valid")

func validationError(message string) error {
	return oops.Code(CodeValidation).With("message", message).Errorf("%s", message)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).
		With("message", MsgInvalidCredentials).
		Errorf("invalid email or password")
}

// UserMessage extracts a caller-facing message from an error. Internal
// failures collapse to a generic message.
func UserMessage(err error) string {
	if err == nil {
		return MsgGeneric
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return MsgGeneric
	}

	switch oopsErr.Code() {
	case CodeUserNotFound:
		return MsgUserNotFound
	case CodeValidation:
		if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
			return msg
		}
		return MsgGeneric
	case CodeConflict:
		return MsgUserExists
	case CodeInvalidCredentials:
		return MsgInvalidCredentials
	case CodeInvalidToken, guard.CodeUnauthorized:
		return guard.UnauthorizedMessage
	default:
		return MsgGeneric
	}
}
