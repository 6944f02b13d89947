// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package auth implements account credentials for Warden.
//
// # Components
//
//   - PasswordHasher / BcryptHasher - one-way password hashing
//   - SessionTokenService - signed, expiring session tokens carrying a user id
//   - Authenticator - resolves the x-token header into an identity.Identity
//   - ResetTokenManager - single-use, one-hour password reset tokens
//   - AccountService - registration, login, profiles, and the guarded
//     account operations
//
// Services are created with New* constructors that validate dependencies.
// Persistence goes through UserRepository; the postgres subpackage provides
// the production implementation and authtest an in-memory one.
package auth
