// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

//go:build integration

package integration_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/identity"
)

var _ = Describe("Identity lifecycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
	})

	Describe("Registration", func() {
		It("makes the first registrant an approved admin", func() {
			ident, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ident.Role).To(Equal(access.RoleAdmin))
			Expect(ident.Approved).To(BeTrue())
		})

		It("leaves later registrants pending as members", func() {
			_, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())

			second, err := env.Identity.Register(ctx, testRegistration("Second"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Role).To(Equal(access.RoleMember))
			Expect(second.Approved).To(BeFalse())
		})

		It("rejects a duplicate email", func() {
			reg := testRegistration("Founder")
			_, err := env.Identity.Register(ctx, reg)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Identity.Register(ctx, reg)
			Expect(err).To(MatchError(identity.ErrConflict))
		})
	})

	Describe("Login", func() {
		It("refuses a pending registration", func() {
			_, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())

			reg := testRegistration("Pending")
			_, err = env.Identity.Register(ctx, reg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Identity.Login(ctx, reg.Email, reg.Password)
			Expect(err).To(MatchError(identity.ErrPendingApproval))
		})

		It("admits an approved member and resolves the session", func() {
			admin, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())

			reg := testRegistration("Member")
			member, err := env.Identity.Register(ctx, reg)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Identity.Approve(ctx, admin, member.ID)).To(Succeed())

			ident, token, err := env.Identity.Login(ctx, reg.Email, reg.Password)
			Expect(err).NotTo(HaveOccurred())
			Expect(ident.ID).To(Equal(member.ID))
			Expect(token).NotTo(BeEmpty())

			resolved, err := env.Identity.Authenticate(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(member.ID))

			Expect(env.Identity.Logout(ctx, token)).To(Succeed())
			_, err = env.Identity.Authenticate(ctx, token)
			Expect(err).To(MatchError(identity.ErrNotFound))
		})

		It("returns invalid credentials for a wrong password", func() {
			reg := testRegistration("Founder")
			_, err := env.Identity.Register(ctx, reg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Identity.Login(ctx, reg.Email, "wrong password")
			Expect(err).To(MatchError(identity.ErrInvalidCredential))
		})

		It("upgrades a legacy hash on successful login", func() {
			reg := testRegistration("Founder")
			ident, err := env.Identity.Register(ctx, reg)
			Expect(err).NotTo(HaveOccurred())

			// Rewrite the stored credential as a pre-migration bare
			// SHA-256 digest.
			sum := sha256.Sum256([]byte(reg.Password))
			_, err = env.pool.Exec(ctx,
				"UPDATE identities SET password_hash = $2 WHERE id = $1",
				ident.ID.String(), hex.EncodeToString(sum[:]))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Identity.Login(ctx, reg.Email, reg.Password)
			Expect(err).NotTo(HaveOccurred())

			upgraded, err := env.Identities.GetByID(ctx, ident.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(upgraded.PasswordHash).To(HavePrefix("pbkdf2_sha256$"))

			// The upgraded hash still verifies.
			_, _, err = env.Identity.Login(ctx, reg.Email, reg.Password)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Role administration", func() {
		It("promotes a member to leader", func() {
			admin, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())
			member := registerApproved(admin, "Member")

			Expect(env.Identity.ChangeRole(ctx, admin, member.ID, access.RoleLeader)).To(Succeed())

			got, err := env.Identities.GetByID(ctx, member.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Role).To(Equal(access.RoleLeader))
		})

		It("refuses to demote the sole admin", func() {
			admin, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())

			err = env.Identity.ChangeRole(ctx, admin, admin.ID, access.RoleMember)
			Expect(err).To(MatchError(identity.ErrInvariant))
		})

		It("allows demotion once another admin exists", func() {
			admin, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())
			second := registerApproved(admin, "Second")

			Expect(env.Identity.ChangeRole(ctx, admin, second.ID, access.RoleAdmin)).To(Succeed())
			Expect(env.Identity.ChangeRole(ctx, admin, admin.ID, access.RoleMember)).To(Succeed())
		})
	})

	Describe("Rejection", func() {
		It("removes a pending registration", func() {
			admin, err := env.Identity.Register(ctx, testRegistration("Founder"))
			Expect(err).NotTo(HaveOccurred())

			pending, err := env.Identity.Register(ctx, testRegistration("Pending"))
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Identity.Reject(ctx, admin, pending.ID)).To(Succeed())

			_, err = env.Identities.GetByID(ctx, pending.ID)
			Expect(err).To(MatchError(identity.ErrNotFound))
		})
	})
})
