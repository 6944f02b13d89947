// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wardenid/warden/internal/auth"
)

func newUser(username, email string) *auth.User {
	return &auth.User{Username: username, Email: email, PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderpla"}
}

var _ = Describe("UserRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx)
	})

	Describe("Create", func() {
		It("assigns an id and timestamps", func() {
			u := newUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, u)).To(Succeed())
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.CreatedAt).NotTo(BeZero())

			got, err := env.Users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(u.ID))
			Expect(got.HasResetToken()).To(BeFalse())
		})

		It("rejects a duplicate email with ErrConflict", func() {
			Expect(env.Users.Create(ctx, newUser("alice", "alice@example.com"))).To(Succeed())

			err := env.Users.Create(ctx, newUser("other", "alice@example.com"))
			Expect(err).To(MatchError(auth.ErrConflict))
		})

		It("lets exactly one concurrent registration of an email win", func() {
			const racers = 8
			var wg sync.WaitGroup
			errs := make(chan error, racers)
			for range racers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- env.Users.Create(ctx, newUser("racer", "race@example.com"))
				}()
			}
			wg.Wait()
			close(errs)

			var ok, conflicts int
			for err := range errs {
				if err == nil {
					ok++
					continue
				}
				Expect(err).To(MatchError(auth.ErrConflict))
				conflicts++
			}
			Expect(ok).To(Equal(1))
			Expect(conflicts).To(Equal(racers - 1))
		})
	})

	Describe("reset tokens", func() {
		var (
			user *auth.User
			now  time.Time
		)

		BeforeEach(func() {
			user = newUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())
			now = time.Now().UTC().Truncate(time.Microsecond)
		})

		It("finds an unexpired token and hides an expired one", func() {
			Expect(env.Users.SetResetToken(ctx, user.ID, "hash-1", now.Add(time.Hour))).To(Succeed())

			got, err := env.Users.GetByResetToken(ctx, "hash-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))

			_, err = env.Users.GetByResetToken(ctx, "hash-1", now.Add(time.Hour))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("consumes a token once and clears the pair", func() {
			Expect(env.Users.SetResetToken(ctx, user.ID, "hash-2", now.Add(time.Hour))).To(Succeed())

			id, err := env.Users.ConsumeResetToken(ctx, "hash-2", now, "new-hash")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(user.ID))

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))
			Expect(got.HasResetToken()).To(BeFalse())

			_, err = env.Users.ConsumeResetToken(ctx, "hash-2", now, "other-hash")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lets exactly one concurrent redemption win", func() {
			Expect(env.Users.SetResetToken(ctx, user.ID, "hash-3", now.Add(time.Hour))).To(Succeed())

			const racers = 8
			var wg sync.WaitGroup
			wins := make(chan int64, racers)
			for range racers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if id, err := env.Users.ConsumeResetToken(ctx, "hash-3", now, "new-hash"); err == nil {
						wins <- id
					}
				}()
			}
			wg.Wait()
			close(wins)
			Expect(wins).To(HaveLen(1))
		})

		It("replaces an outstanding token", func() {
			Expect(env.Users.SetResetToken(ctx, user.ID, "old", now.Add(time.Hour))).To(Succeed())
			Expect(env.Users.SetResetToken(ctx, user.ID, "new", now.Add(time.Hour))).To(Succeed())

			_, err := env.Users.GetByResetToken(ctx, "old", now)
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = env.Users.GetByResetToken(ctx, "new", now)
			Expect(err).NotTo(HaveOccurred())
		})

		It("purges only expired tokens", func() {
			other := newUser("bob", "bob@example.com")
			Expect(env.Users.Create(ctx, other)).To(Succeed())
			Expect(env.Users.SetResetToken(ctx, user.ID, "expired", now.Add(-time.Minute))).To(Succeed())
			Expect(env.Users.SetResetToken(ctx, other.ID, "live", now.Add(time.Hour))).To(Succeed())

			n, err := env.Users.DeleteExpiredResetTokens(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.HasResetToken()).To(BeFalse())
			_, err = env.Users.GetByResetToken(ctx, "live", now)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("List", func() {
		It("pages in id order", func() {
			for _, name := range []string{"a", "b", "c"} {
				Expect(env.Users.Create(ctx, newUser(name, name+"@example.com"))).To(Succeed())
			}

			page, err := env.Users.List(ctx, 1, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))
			Expect(page[0].Username).To(Equal("b"))
			Expect(page[1].Username).To(Equal("c"))
		})
	})

	Describe("Update and Delete", func() {
		It("rejects taking another user's email", func() {
			alice := newUser("alice", "alice@example.com")
			bob := newUser("bob", "bob@example.com")
			Expect(env.Users.Create(ctx, alice)).To(Succeed())
			Expect(env.Users.Create(ctx, bob)).To(Succeed())

			bob.Email = "alice@example.com"
			Expect(env.Users.Update(ctx, bob)).To(MatchError(auth.ErrConflict))
		})

		It("deletes and then reports not found", func() {
			u := newUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, u)).To(Succeed())

			Expect(env.Users.Delete(ctx, u.ID)).To(Succeed())
			Expect(env.Users.Delete(ctx, u.ID)).To(MatchError(auth.ErrNotFound))
		})
	})
})
