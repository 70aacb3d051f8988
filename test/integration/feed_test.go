// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

//go:build integration

package integration_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/internal/moderation"
)

var _ = Describe("Feed", func() {
	var (
		ctx    context.Context
		admin  *identity.Identity
		member *identity.Identity
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)

		var err error
		admin, err = env.Identity.Register(ctx, testRegistration("Admin"))
		Expect(err).NotTo(HaveOccurred())
		member = registerApproved(admin, "Member")
	})

	It("lists posts newest first", func() {
		older, err := env.Feed.CreatePost(ctx, member, "first post")
		Expect(err).NotTo(HaveOccurred())
		newer, err := env.Feed.CreatePost(ctx, member, "second post")
		Expect(err).NotTo(HaveOccurred())

		posts, err := env.Feed.ListRecent(ctx, feed.DefaultFeedLimit)
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(HaveLen(2))
		Expect(posts[0].ID).To(Equal(newer.ID))
		Expect(posts[1].ID).To(Equal(older.ID))
	})

	It("lets the author delete their own post", func() {
		post, err := env.Feed.CreatePost(ctx, member, "regrettable")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Feed.DeleteOwnPost(ctx, member, post.ID)).To(Succeed())

		posts, err := env.Feed.ListRecent(ctx, feed.DefaultFeedLimit)
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(BeEmpty())
	})

	It("denies a member deleting someone else's post", func() {
		post, err := env.Feed.CreatePost(ctx, admin, "announcement")
		Expect(err).NotTo(HaveOccurred())

		err = env.Feed.DeleteOwnPost(ctx, member, post.ID)
		Expect(err).To(MatchError(identity.ErrUnauthorized))
	})

	It("threads comments under a post in creation order", func() {
		post, err := env.Feed.CreatePost(ctx, member, "discuss")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Feed.Comment(ctx, admin, post.ID, "first")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Feed.Comment(ctx, member, post.ID, "second")
		Expect(err).NotTo(HaveOccurred())

		comments, err := env.Feed.Comments(ctx, post.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(HaveLen(2))
		Expect(comments[0].Body).To(Equal("first"))
		Expect(comments[1].Body).To(Equal("second"))
	})

	It("toggles likes as set membership", func() {
		post, err := env.Feed.CreatePost(ctx, member, "likeable")
		Expect(err).NotTo(HaveOccurred())

		liked, err := env.Feed.ToggleLike(ctx, admin, post.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(liked).To(BeTrue())

		count, err := env.Feed.LikeCount(ctx, post.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))

		liked, err = env.Feed.ToggleLike(ctx, admin, post.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(liked).To(BeFalse())

		count, err = env.Feed.LikeCount(ctx, post.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(0))
	})
})

var _ = Describe("Moderation", func() {
	var (
		ctx    context.Context
		admin  *identity.Identity
		member *identity.Identity
		post   *feed.Post
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)

		var err error
		admin, err = env.Identity.Register(ctx, testRegistration("Admin"))
		Expect(err).NotTo(HaveOccurred())
		member = registerApproved(admin, "Member")

		post, err = env.Feed.CreatePost(ctx, member, "questionable")
		Expect(err).NotTo(HaveOccurred())
	})

	It("queues a filed report for moderators", func() {
		target := feed.ContentRef{Kind: feed.KindPost, ID: post.ID}
		report, err := env.Moderation.File(ctx, member, target, "inappropriate")
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status).To(Equal(moderation.StatusOpen))

		open, err := env.Moderation.Open(ctx, admin)
		Expect(err).NotTo(HaveOccurred())
		Expect(open).To(HaveLen(1))
		Expect(open[0].ID).To(Equal(report.ID))
	})

	It("denies the queue to members", func() {
		_, err := env.Moderation.Open(ctx, member)
		Expect(err).To(MatchError(identity.ErrUnauthorized))
	})

	It("keeps the first resolver on repeat resolution", func() {
		target := feed.ContentRef{Kind: feed.KindPost, ID: post.ID}
		report, err := env.Moderation.File(ctx, member, target, "inappropriate")
		Expect(err).NotTo(HaveOccurred())

		resolved, err := env.Moderation.Resolve(ctx, admin, report.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.Status).To(Equal(moderation.StatusResolved))
		Expect(resolved.ResolverID).NotTo(BeNil())
		Expect(*resolved.ResolverID).To(Equal(admin.ID))

		again, err := env.Moderation.Resolve(ctx, admin, report.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*again.ResolverID).To(Equal(admin.ID))
	})

	It("takes reported content down with the resolution", func() {
		target := feed.ContentRef{Kind: feed.KindPost, ID: post.ID}
		report, err := env.Moderation.File(ctx, member, target, "inappropriate")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Moderation.ResolveWithTakedown(ctx, admin, report.ID, env.Feed)
		Expect(err).NotTo(HaveOccurred())

		posts, err := env.Feed.ListRecent(ctx, feed.DefaultFeedLimit)
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(BeEmpty())
	})
})
