// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package feed provides the chronological post feed with comments and
// likes.
package feed

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Post body constraints.
const MaxBodyLength = 4000

// Post is a feed entry. Deletion is a soft flag; deleted posts stay in
// the store but disappear from every listing.
type Post struct {
	ID        ulid.ULID
	AuthorID  ulid.ULID
	Body      string
	Deleted   bool
	CreatedAt time.Time
}

// Comment is an append-only entry under a post.
type Comment struct {
	ID        ulid.ULID
	PostID    ulid.ULID
	AuthorID  ulid.ULID
	Body      string
	Deleted   bool
	CreatedAt time.Time
}

// ContentKind distinguishes reportable content.
type ContentKind string

// Reportable content kinds.
const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

// IsValid reports whether k is a defined content kind.
func (k ContentKind) IsValid() bool {
	return k == KindPost || k == KindComment
}

// ContentRef points at a post or comment.
type ContentRef struct {
	Kind ContentKind
	ID   ulid.ULID
}

// Repository persists feed content.
type Repository interface {
	CreatePost(ctx context.Context, post *Post) error

	// GetPost retrieves a post, deleted or not. Listings filter
	// deleted rows; moderation needs to see them.
	GetPost(ctx context.Context, id ulid.ULID) (*Post, error)

	// ListRecent returns the newest non-deleted posts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Post, error)

	// SoftDeletePost marks a post deleted. Deleting a deleted post is
	// a no-op.
	SoftDeletePost(ctx context.Context, id ulid.ULID) error

	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id ulid.ULID) (*Comment, error)

	// ListComments returns a post's non-deleted comments in creation
	// order.
	ListComments(ctx context.Context, postID ulid.ULID) ([]*Comment, error)

	SoftDeleteComment(ctx context.Context, id ulid.ULID) error

	// Like records that the identity likes the post. Liking twice is
	// a no-op; a like is set membership, not a counter.
	Like(ctx context.Context, postID, identityID ulid.ULID) error

	// Unlike removes the like if present.
	Unlike(ctx context.Context, postID, identityID ulid.ULID) error

	HasLiked(ctx context.Context, postID, identityID ulid.ULID) (bool, error)
	CountLikes(ctx context.Context, postID ulid.ULID) (int, error)
}
