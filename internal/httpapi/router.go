// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package httpapi exposes the services over HTTP with JSON bodies and
// cookie sessions.
package httpapi

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/connection"
	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/internal/moderation"
	"github.com/koinonia/koinonia/internal/observability"
)

// IdentityService is the identity surface the handlers use.
type IdentityService interface {
	Register(ctx context.Context, reg identity.Registration) (*identity.Identity, error)
	Login(ctx context.Context, email, password string) (*identity.Identity, string, error)
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
	Logout(ctx context.Context, token string) error
	ChangeRole(ctx context.Context, actor *identity.Identity, targetID ulid.ULID, newRole access.Role) error
	Approve(ctx context.Context, actor *identity.Identity, targetID ulid.ULID) error
	Reject(ctx context.Context, actor *identity.Identity, targetID ulid.ULID) error
	Directory(ctx context.Context, actor *identity.Identity) ([]*identity.Identity, error)
	PendingRegistrations(ctx context.Context, actor *identity.Identity) ([]*identity.Identity, error)
	ViewProfile(ctx context.Context, actor *identity.Identity, targetID ulid.ULID, connections identity.ConnectionChecker) (*identity.Profile, error)
}

// ConnectionService is the connection surface the handlers use. It also
// satisfies identity.ConnectionChecker for profile visibility.
type ConnectionService interface {
	Request(ctx context.Context, actorID, targetID ulid.ULID) (*connection.Connection, error)
	Respond(ctx context.Context, actorID, otherID ulid.ULID, decision connection.Decision) (*connection.Connection, error)
	Withdraw(ctx context.Context, actorID, otherID ulid.ULID) error
	ListFor(ctx context.Context, id ulid.ULID) ([]*connection.Connection, error)
	IsConnected(ctx context.Context, a, b ulid.ULID) (bool, error)
}

// FeedService is the feed surface the handlers use. It also satisfies
// moderation.Remover for report takedowns.
type FeedService interface {
	CreatePost(ctx context.Context, actor *identity.Identity, body string) (*feed.Post, error)
	ListRecent(ctx context.Context, limit int) ([]*feed.Post, error)
	DeleteOwnPost(ctx context.Context, actor *identity.Identity, postID ulid.ULID) error
	RemoveReported(ctx context.Context, actor *identity.Identity, target feed.ContentRef) error
	Comment(ctx context.Context, actor *identity.Identity, postID ulid.ULID, body string) (*feed.Comment, error)
	Comments(ctx context.Context, postID ulid.ULID) ([]*feed.Comment, error)
	ToggleLike(ctx context.Context, actor *identity.Identity, postID ulid.ULID) (bool, error)
	LikeCount(ctx context.Context, postID ulid.ULID) (int, error)
}

// ModerationService is the moderation surface the handlers use.
type ModerationService interface {
	File(ctx context.Context, actor *identity.Identity, target feed.ContentRef, reason string) (*moderation.Report, error)
	Open(ctx context.Context, actor *identity.Identity) ([]*moderation.Report, error)
	Resolve(ctx context.Context, actor *identity.Identity, reportID ulid.ULID) (*moderation.Report, error)
	ResolveWithTakedown(ctx context.Context, actor *identity.Identity, reportID ulid.ULID, remover moderation.Remover) (*moderation.Report, error)
}

// Deps wires the services into the router.
type Deps struct {
	Identity    IdentityService
	Connections ConnectionService
	Feed        FeedService
	Moderation  ModerationService
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestMetrics(deps.Metrics))

	h := &handlers{deps: deps}

	api := engine.Group("/api/v1")

	api.POST("/register", h.register)
	api.POST("/login", h.login)

	authed := api.Group("")
	authed.Use(requireAuth(deps.Identity))
	{
		authed.POST("/logout", h.logout)
		authed.GET("/me", h.me)
		authed.GET("/directory", h.directory)
		authed.GET("/profiles/:id", h.viewProfile)

		authed.GET("/admin/pending", h.pendingRegistrations)
		authed.POST("/admin/pending/:id/approve", h.approveRegistration)
		authed.POST("/admin/pending/:id/reject", h.rejectRegistration)
		authed.PUT("/admin/identities/:id/role", h.changeRole)

		authed.GET("/connections", h.listConnections)
		authed.POST("/connections/:id", h.requestConnection)
		authed.POST("/connections/:id/respond", h.respondConnection)
		authed.DELETE("/connections/:id", h.withdrawConnection)

		authed.GET("/posts", h.listPosts)
		authed.POST("/posts", h.createPost)
		authed.DELETE("/posts/:id", h.deletePost)
		authed.GET("/posts/:id/comments", h.listComments)
		authed.POST("/posts/:id/comments", h.createComment)
		authed.POST("/posts/:id/like", h.toggleLike)

		authed.GET("/reports", h.openReports)
		authed.POST("/reports", h.fileReport)
		authed.POST("/reports/:id/resolve", h.resolveReport)
	}

	return engine
}

// handlers carries the wired dependencies for every route.
type handlers struct {
	deps Deps
}
