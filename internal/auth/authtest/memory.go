// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package authtest provides in-memory implementations of auth collaborators
// for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/mail"
)

var (
	_ auth.UserRepository = (*UserStore)(nil)
	_ mail.Sender         = (*Outbox)(nil)
)

// UserStore is a concurrency-safe in-memory auth.UserRepository with the same
// uniqueness and conditional-update semantics as the PostgreSQL store.
type UserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*auth.User
	now    func() time.Time
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]*auth.User), now: time.Now}
}

func clone(u *auth.User) *auth.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetTokenExpiresAt != nil {
		e := *u.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &e
	}
	return &c
}

func notFound(key string, value any) error {
	return oops.Code(auth.CodeUserNotFound).With(key, value).Wrap(auth.ErrNotFound)
}

func (s *UserStore) emailTaken(email string, exceptID int64) bool {
	for id, u := range s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// Create implements auth.UserRepository.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return oops.Code(auth.CodeConflict).With("email", user.Email).Wrap(auth.ErrConflict)
	}
	s.nextID++
	now := s.now()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = clone(user)
	return nil
}

// GetByID implements auth.UserRepository.
func (s *UserStore) GetByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound("id", id)
	}
	return clone(u), nil
}

// GetByEmail implements auth.UserRepository.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, notFound("email", email)
}

// GetByResetToken implements auth.UserRepository.
func (s *UserStore) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.findResetHolder(tokenHash, now); u != nil {
		return clone(u), nil
	}
	return nil, notFound("reset_token", "hash")
}

func (s *UserStore) findResetHolder(tokenHash string, now time.Time) *auth.User {
	for _, u := range s.users {
		if u.HasResetToken() && *u.ResetTokenHash == tokenHash && u.ResetTokenExpiresAt.After(now) {
			return u
		}
	}
	return nil
}

// List implements auth.UserRepository.
func (s *UserStore) List(_ context.Context, skip, take int) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*auth.User{}
	for i := skip; i < len(ids) && len(out) < take; i++ {
		out = append(out, clone(s.users[ids[i]]))
	}
	return out, nil
}

// Update implements auth.UserRepository.
func (s *UserStore) Update(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return notFound("id", user.ID)
	}
	if s.emailTaken(user.Email, user.ID) {
		return oops.Code(auth.CodeConflict).With("email", user.Email).Wrap(auth.ErrConflict)
	}
	stored.Username = user.Username
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.UpdatedAt = s.now()
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdatePassword implements auth.UserRepository.
func (s *UserStore) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return notFound("id", id)
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = s.now()
	return nil
}

// SetResetToken implements auth.UserRepository.
func (s *UserStore) SetResetToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return notFound("id", id)
	}
	stored.SetResetToken(tokenHash, expiresAt)
	stored.UpdatedAt = s.now()
	return nil
}

// ConsumeResetToken implements auth.UserRepository.
func (s *UserStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findResetHolder(tokenHash, now)
	if u == nil {
		return 0, notFound("reset_token", "hash")
	}
	u.PasswordHash = passwordHash
	u.ClearResetToken()
	u.UpdatedAt = s.now()
	return u.ID, nil
}

// DeleteExpiredResetTokens implements auth.UserRepository.
func (s *UserStore) DeleteExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.users {
		if u.HasResetToken() && !u.ResetTokenExpiresAt.After(now) {
			u.ClearResetToken()
			n++
		}
	}
	return n, nil
}

// Delete implements auth.UserRepository.
func (s *UserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return notFound("id", id)
	}
	delete(s.users, id)
	return nil
}

// Raw returns a copy of the stored user, for assertions.
func (s *UserStore) Raw(id int64) (*auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return clone(u), true
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Outbox is a mail.Sender that records messages instead of sending them.
type Outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
	// Err, when set, is returned by Send and nothing is recorded.
	Err error
}

// Send implements mail.Sender.
func (o *Outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.msgs...)
}

// Last returns the most recent message.
func (o *Outbox) Last() (mail.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.msgs) == 0 {
		return mail.Message{}, false
	}
	return o.msgs[len(o.msgs)-1], true
}

// SetErr sets the error returned by subsequent sends.
func (o *Outbox) SetErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Err = err
}
