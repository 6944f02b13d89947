// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"context"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/auth/authtest"
	"github.com/wardenid/warden/internal/guard"
)

var tokenInLink = regexp.MustCompile(`/reset/([0-9a-f]{128})`)

var _ = Describe("AccountService on PostgreSQL", func() {
	var (
		ctx           context.Context
		outbox        *authtest.Outbox
		accounts      *auth.AccountService
		authenticator *auth.Authenticator
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx)

		outbox = &authtest.Outbox{}
		hasher := auth.NewBcryptHasher(bcrypt.MinCost)
		sessions, err := auth.NewSessionTokenService([]byte(strings.Repeat("s", 32)))
		Expect(err).NotTo(HaveOccurred())
		resets, err := auth.NewResetTokenManager(env.Users, hasher, outbox, auth.ResetMailConfig{})
		Expect(err).NotTo(HaveOccurred())
		accounts, err = auth.NewAccountService(env.Users, hasher, sessions, resets)
		Expect(err).NotTo(HaveOccurred())
		authenticator, err = auth.NewAuthenticator(sessions, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers, logs in, and updates through a session token", func() {
		reg := accounts.Register(ctx, auth.RegisterInput{Username: "Alice", Email: "Alice@Example.com", Password: "pw"})
		Expect(reg.Success).To(BeTrue(), reg.Errors)
		Expect(reg.User.Email).To(Equal("alice@example.com"))

		dup := accounts.Register(ctx, auth.RegisterInput{Username: "a2", Email: "ALICE@example.com", Password: "pw"})
		Expect(dup.Success).To(BeFalse())
		Expect(dup.Errors).To(Equal(auth.MsgUserExists))

		login := accounts.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "pw"})
		Expect(login.Success).To(BeTrue())

		authed := authenticator.Authenticate(ctx, login.Token)
		upd, err := accounts.UpdateProfile(authed, auth.UpdateInput{Username: "alicia"})
		Expect(err).NotTo(HaveOccurred())
		Expect(upd.User.Username).To(Equal("alicia"))

		_, err = accounts.UpdateProfile(authenticator.Authenticate(ctx, ""), auth.UpdateInput{Username: "mallory"})
		var denied *guard.Denied
		Expect(err).To(BeAssignableToTypeOf(denied))
	})

	It("recovers a password once", func() {
		Expect(accounts.Register(ctx, auth.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "old"}).Success).To(BeTrue())

		Expect(accounts.RequestPasswordReset(ctx, "alice@example.com", "https://id.example.com")).To(BeTrue())
		msg, ok := outbox.Last()
		Expect(ok).To(BeTrue())
		m := tokenInLink.FindStringSubmatch(msg.Text)
		Expect(m).To(HaveLen(2))
		token := m[1]

		Expect(accounts.ValidateResetToken(ctx, token)).To(BeTrue())
		Expect(accounts.CompletePasswordReset(ctx, token, "new", "new")).To(BeTrue())
		Expect(accounts.CompletePasswordReset(ctx, token, "again", "again")).To(BeFalse())

		Expect(accounts.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "old"}).Success).To(BeFalse())
		Expect(accounts.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "new"}).Success).To(BeTrue())
	})

	It("deletes only the caller's account", func() {
		Expect(accounts.Register(ctx, auth.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw"}).Success).To(BeTrue())
		Expect(accounts.Register(ctx, auth.RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw"}).Success).To(BeTrue())

		login := accounts.Login(ctx, auth.LoginInput{Email: "bob@example.com", Password: "pw"})
		resp, err := accounts.DeleteAccount(authenticator.Authenticate(ctx, login.Token))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Success).To(BeTrue())

		profiles, err := accounts.ListProfiles(ctx, 0, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(profiles).To(HaveLen(1))
		Expect(profiles[0].Username).To(Equal("alice"))
	})
})
