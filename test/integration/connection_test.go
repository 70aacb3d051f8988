// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

//go:build integration

package integration_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/koinonia/koinonia/internal/connection"
	"github.com/koinonia/koinonia/internal/identity"
)

var _ = Describe("Connections", func() {
	var (
		ctx  context.Context
		ana  *identity.Identity
		bela *identity.Identity
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)

		var err error
		ana, err = env.Identity.Register(ctx, testRegistration("Ana"))
		Expect(err).NotTo(HaveOccurred())
		bela = registerApproved(ana, "Bela")
	})

	It("walks the request/accept lifecycle", func() {
		conn, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.Status).To(Equal(connection.StatusPending))
		Expect(conn.Requester).To(Equal(ana.ID))

		accepted, err := env.Connections.Respond(ctx, bela.ID, ana.ID, connection.DecisionAccept)
		Expect(err).NotTo(HaveOccurred())
		Expect(accepted.Status).To(Equal(connection.StatusAccepted))

		ok, err := env.Connections.IsConnected(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("forbids the requester answering their own request", func() {
		_, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Connections.Respond(ctx, ana.ID, bela.ID, connection.DecisionAccept)
		Expect(err).To(MatchError(identity.ErrUnauthorized))
	})

	It("suppresses a duplicate request while one is pending", func() {
		_, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Connections.Request(ctx, bela.ID, ana.ID)
		Expect(err).To(MatchError(identity.ErrConflict))
	})

	It("supersedes a declined record with a fresh request", func() {
		_, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Connections.Respond(ctx, bela.ID, ana.ID, connection.DecisionDecline)
		Expect(err).NotTo(HaveOccurred())

		reopened, err := env.Connections.Request(ctx, bela.ID, ana.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(reopened.Status).To(Equal(connection.StatusPending))
		Expect(reopened.Requester).To(Equal(bela.ID))
	})

	It("deletes the record on withdrawal so a new request starts fresh", func() {
		_, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Connections.Respond(ctx, bela.ID, ana.ID, connection.DecisionAccept)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Connections.Withdraw(ctx, ana.ID, bela.ID)).To(Succeed())

		ok, err := env.Connections.IsConnected(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		conn, err := env.Connections.Request(ctx, bela.ID, ana.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.Status).To(Equal(connection.StatusPending))
	})

	It("refuses a request to a pending identity", func() {
		pending, err := env.Identity.Register(ctx, testRegistration("Pending"))
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Connections.Request(ctx, ana.ID, pending.ID)
		Expect(err).To(MatchError(identity.ErrNotFound))
	})

	It("lists records for both parties", func() {
		_, err := env.Connections.Request(ctx, ana.ID, bela.ID)
		Expect(err).NotTo(HaveOccurred())

		forAna, err := env.Connections.ListFor(ctx, ana.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(forAna).To(HaveLen(1))

		forBela, err := env.Connections.ListFor(ctx, bela.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(forBela).To(HaveLen(1))
	})
})
