// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenid/warden/pkg/errutil"
)

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	t.Run("produces bcrypt hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"), "expected bcrypt prefix, got %s", hash)
	})

	t.Run("different hashes for same password", func(t *testing.T) {
		hash1, err := hasher.Hash("password123")
		require.NoError(t, err)
		hash2, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2, "hashes should differ due to random salt")
	})

	t.Run("empty password returns error", func(t *testing.T) {
		_, err := hasher.Hash("")
		errutil.AssertErrorCode(t, err, CodeValidation)
	})

	t.Run("overlong password returns error", func(t *testing.T) {
		_, err := hasher.Hash(strings.Repeat("x", 73))
		errutil.AssertErrorCode(t, err, CodeValidation)
	})
}

func TestBcryptHasher_Verify(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-password")
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		valid, err := hasher.Verify("correct-password", hash)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("wrong password", func(t *testing.T) {
		valid, err := hasher.Verify("wrong-password", hash)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := hasher.Verify("password", "not-a-hash")
		errutil.AssertErrorCode(t, err, CodeInvalidHash)
	})
}

func TestBcryptHasher_NeedsUpgrade(t *testing.T) {
	low := NewBcryptHasher(bcrypt.MinCost)
	hash, err := low.Hash("password")
	require.NoError(t, err)

	assert.False(t, low.NeedsUpgrade(hash))
	assert.True(t, NewBcryptHasher(bcrypt.MinCost+1).NeedsUpgrade(hash))
	assert.True(t, low.NeedsUpgrade("garbage"))
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, DefaultHashCost, NewBcryptHasher(0).cost)
	assert.Equal(t, DefaultHashCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}
