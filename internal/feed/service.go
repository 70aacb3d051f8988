// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package feed

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/identity"
)

// DefaultFeedLimit bounds a feed page when the caller doesn't say.
const DefaultFeedLimit = 50

// Service provides feed operations. Every delete funnels through the
// access gate; the reported-content path is shared with moderation so
// the authorization logic exists exactly once.
type Service struct {
	posts Repository
	now   func() time.Time
}

// NewService creates a feed Service.
func NewService(posts Repository) (*Service, error) {
	if posts == nil {
		return nil, oops.Code("FEED_SERVICE_INIT").Errorf("feed repository is required")
	}
	return &Service{posts: posts, now: time.Now}, nil
}

// CreatePost appends a post to the feed.
func (s *Service) CreatePost(ctx context.Context, actor *identity.Identity, body string) (*Post, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > MaxBodyLength {
		return nil, oops.Code("FEED_INVALID_BODY").
			With("length", len(body)).
			Wrap(identity.ErrInvariant)
	}

	post := &Post{
		ID:        ulid.Make(),
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListRecent returns the newest posts for the feed page.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return s.posts.ListRecent(ctx, limit)
}

// DeleteOwnPost deletes a post the actor wrote.
func (s *Service) DeleteOwnPost(ctx context.Context, actor *identity.Identity, postID ulid.ULID) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	gateCtx := access.Context{Owner: post.AuthorID.Compare(actor.ID) == 0}
	if !access.Can(actor.Role, access.ActionDeleteOwnPost, gateCtx) {
		return oops.Code("FEED_DELETE_DENIED").
			With("post_id", postID.String()).
			Wrap(identity.ErrUnauthorized)
	}
	return s.posts.SoftDeletePost(ctx, postID)
}

// RemoveReported soft-deletes reported content. This is the takedown
// path moderation resolution reuses; only leaders and admins pass.
func (s *Service) RemoveReported(ctx context.Context, actor *identity.Identity, target ContentRef) error {
	if !access.Can(actor.Role, access.ActionDeleteReportedContent, access.Context{}) {
		return oops.Code("FEED_TAKEDOWN_DENIED").
			With("target_kind", string(target.Kind)).
			With("target_id", target.ID.String()).
			Wrap(identity.ErrUnauthorized)
	}

	switch target.Kind {
	case KindPost:
		if _, err := s.posts.GetPost(ctx, target.ID); err != nil {
			return err
		}
		return s.posts.SoftDeletePost(ctx, target.ID)
	case KindComment:
		if _, err := s.posts.GetComment(ctx, target.ID); err != nil {
			return err
		}
		return s.posts.SoftDeleteComment(ctx, target.ID)
	default:
		return oops.Code("FEED_INVALID_TARGET").
			With("target_kind", string(target.Kind)).
			Wrap(identity.ErrInvariant)
	}
}

// Comment appends a comment under a post.
func (s *Service) Comment(ctx context.Context, actor *identity.Identity, postID ulid.ULID, body string) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > MaxBodyLength {
		return nil, oops.Code("FEED_INVALID_BODY").
			With("length", len(body)).
			Wrap(identity.ErrInvariant)
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Deleted {
		return nil, oops.Code("FEED_POST_DELETED").
			With("post_id", postID.String()).
			Wrap(identity.ErrNotFound)
	}

	comment := &Comment{
		ID:        ulid.Make(),
		PostID:    postID,
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Comments lists a post's comments in creation order.
func (s *Service) Comments(ctx context.Context, postID ulid.ULID) ([]*Comment, error) {
	return s.posts.ListComments(ctx, postID)
}

// ToggleLike flips the actor's like on a post and reports the new
// state. A like is set membership: toggling twice restores the
// original state, and concurrent duplicate likes collapse to one.
func (s *Service) ToggleLike(ctx context.Context, actor *identity.Identity, postID ulid.ULID) (bool, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	if post.Deleted {
		return false, oops.Code("FEED_POST_DELETED").
			With("post_id", postID.String()).
			Wrap(identity.ErrNotFound)
	}

	liked, err := s.posts.HasLiked(ctx, postID, actor.ID)
	if err != nil {
		return false, err
	}
	if liked {
		return false, s.posts.Unlike(ctx, postID, actor.ID)
	}
	return true, s.posts.Like(ctx, postID, actor.ID)
}

// LikeCount returns the number of identities liking a post.
func (s *Service) LikeCount(ctx context.Context, postID ulid.ULID) (int, error) {
	return s.posts.CountLikes(ctx, postID)
}
