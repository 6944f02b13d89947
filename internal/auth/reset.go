// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 64        // 64 bytes = 128 hex chars
	ResetTokenExpiry = time.Hour // 1 hour expiry
)

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the user; the hash is stored in the database.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the hex SHA-256 digest under which a token is stored.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// wellFormedResetToken reports whether token has the shape GenerateResetToken
// produces. Anything else cannot match a stored hash.
func wellFormedResetToken(token string) bool {
	if len(token) != ResetTokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ResetResult is the detailed outcome of a reset operation. Err records why
// the operation failed and is nil when OK is true.
type ResetResult struct {
	OK  bool
	Err error
}

func resetOK() ResetResult { return ResetResult{OK: true} }

func resetFailed(err error) ResetResult { return ResetResult{Err: err} }

// Collapse discards the failure detail, leaving only success or failure.
func (r ResetResult) Collapse() bool {
	return r.OK
}
