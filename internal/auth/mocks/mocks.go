// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/mail"
)

var (
	_ auth.UserRepository = (*MockUserRepository)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
	_ mail.Sender         = (*MockSender)(nil)
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository that asserts its
// expectations when the test ends.
func NewMockUserRepository(t cleanupT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func userOrNil(v any) *auth.User {
	u, _ := v.(*auth.User)
	return u
}

// Create mocks auth.UserRepository.Create.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// GetByID mocks auth.UserRepository.GetByID.
func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

// GetByEmail mocks auth.UserRepository.GetByEmail.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

// GetByResetToken mocks auth.UserRepository.GetByResetToken.
func (m *MockUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tokenHash, now)
	return userOrNil(args.Get(0)), args.Error(1)
}

// List mocks auth.UserRepository.List.
func (m *MockUserRepository) List(ctx context.Context, skip, take int) ([]*auth.User, error) {
	args := m.Called(ctx, skip, take)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

// Update mocks auth.UserRepository.Update.
func (m *MockUserRepository) Update(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// UpdatePassword mocks auth.UserRepository.UpdatePassword.
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// SetResetToken mocks auth.UserRepository.SetResetToken.
func (m *MockUserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

// ConsumeResetToken mocks auth.UserRepository.ConsumeResetToken.
func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error) {
	args := m.Called(ctx, tokenHash, now, passwordHash)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

// DeleteExpiredResetTokens mocks auth.UserRepository.DeleteExpiredResetTokens.
func (m *MockUserRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// Delete mocks auth.UserRepository.Delete.
func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its
// expectations when the test ends.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash mocks auth.PasswordHasher.Hash.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify mocks auth.PasswordHasher.Verify.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade mocks auth.PasswordHasher.NeedsUpgrade.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockSender is a mock of mail.Sender.
type MockSender struct {
	mock.Mock
}

// NewMockSender creates a MockSender that asserts its expectations when the
// test ends.
func NewMockSender(t cleanupT) *MockSender {
	m := &MockSender{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send mocks mail.Sender.Send.
func (m *MockSender) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
