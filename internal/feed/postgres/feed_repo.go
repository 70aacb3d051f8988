// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package postgres implements the feed repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
)

// pool is the subset of pgxpool.Pool the repository uses, satisfied by
// pgxmock in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FeedRepository implements feed.Repository using PostgreSQL.
type FeedRepository struct {
	pool pool
}

// NewFeedRepository creates a new FeedRepository.
func NewFeedRepository(p pool) *FeedRepository {
	return &FeedRepository{pool: p}
}

// CreatePost stores a new post.
func (r *FeedRepository) CreatePost(ctx context.Context, post *feed.Post) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, author_id, body, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, post.ID.String(), post.AuthorID.String(), post.Body, post.Deleted, post.CreatedAt)
	if err != nil {
		return oops.Code("POST_CREATE_FAILED").
			With("author_id", post.AuthorID.String()).
			Wrap(err)
	}
	return nil
}

// GetPost retrieves a post, deleted or not.
func (r *FeedRepository) GetPost(ctx context.Context, id ulid.ULID) (*feed.Post, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, author_id, body, deleted, created_at
		FROM posts WHERE id = $1
	`, id.String())

	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("POST_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("POST_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return post, nil
}

// ListRecent returns the newest non-deleted posts.
func (r *FeedRepository) ListRecent(ctx context.Context, limit int) ([]*feed.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, author_id, body, deleted, created_at
		FROM posts
		WHERE NOT deleted
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var posts []*feed.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, oops.Code("POST_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POST_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return posts, nil
}

// SoftDeletePost marks a post deleted. Already-deleted posts are left
// as they are.
func (r *FeedRepository) SoftDeletePost(ctx context.Context, id ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE posts SET deleted = TRUE WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// CreateComment stores a new comment.
func (r *FeedRepository) CreateComment(ctx context.Context, comment *feed.Comment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO comments (id, post_id, author_id, body, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		comment.ID.String(),
		comment.PostID.String(),
		comment.AuthorID.String(),
		comment.Body,
		comment.Deleted,
		comment.CreatedAt,
	)
	if err != nil {
		return oops.Code("COMMENT_CREATE_FAILED").
			With("post_id", comment.PostID.String()).
			Wrap(err)
	}
	return nil
}

// GetComment retrieves a comment, deleted or not.
func (r *FeedRepository) GetComment(ctx context.Context, id ulid.ULID) (*feed.Comment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, post_id, author_id, body, deleted, created_at
		FROM comments WHERE id = $1
	`, id.String())

	comment, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("COMMENT_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("COMMENT_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return comment, nil
}

// ListComments returns a post's non-deleted comments in creation order.
func (r *FeedRepository) ListComments(ctx context.Context, postID ulid.ULID) ([]*feed.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, post_id, author_id, body, deleted, created_at
		FROM comments
		WHERE post_id = $1 AND NOT deleted
		ORDER BY created_at, id
	`, postID.String())
	if err != nil {
		return nil, oops.Code("COMMENT_LIST_FAILED").
			With("post_id", postID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var comments []*feed.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, oops.Code("COMMENT_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COMMENT_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return comments, nil
}

// SoftDeleteComment marks a comment deleted.
func (r *FeedRepository) SoftDeleteComment(ctx context.Context, id ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE comments SET deleted = TRUE WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("COMMENT_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// Like records a like as set membership; duplicate likes collapse onto
// the primary key.
func (r *FeedRepository) Like(ctx context.Context, postID, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO likes (post_id, identity_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (post_id, identity_id) DO NOTHING
	`, postID.String(), identityID.String())
	if err != nil {
		return oops.Code("LIKE_FAILED").
			With("post_id", postID.String()).
			Wrap(err)
	}
	return nil
}

// Unlike removes a like if present.
func (r *FeedRepository) Unlike(ctx context.Context, postID, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM likes WHERE post_id = $1 AND identity_id = $2
	`, postID.String(), identityID.String())
	if err != nil {
		return oops.Code("UNLIKE_FAILED").
			With("post_id", postID.String()).
			Wrap(err)
	}
	return nil
}

// HasLiked reports whether the identity likes the post.
func (r *FeedRepository) HasLiked(ctx context.Context, postID, identityID ulid.ULID) (bool, error) {
	var liked bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM likes WHERE post_id = $1 AND identity_id = $2)
	`, postID.String(), identityID.String()).Scan(&liked)
	if err != nil {
		return false, oops.Code("LIKE_CHECK_FAILED").
			With("post_id", postID.String()).
			Wrap(err)
	}
	return liked, nil
}

// CountLikes returns the number of likes on a post.
func (r *FeedRepository) CountLikes(ctx context.Context, postID ulid.ULID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM likes WHERE post_id = $1
	`, postID.String()).Scan(&count)
	if err != nil {
		return 0, oops.Code("LIKE_COUNT_FAILED").
			With("post_id", postID.String()).
			Wrap(err)
	}
	return count, nil
}

func scanPost(row pgx.Row) (*feed.Post, error) {
	var post feed.Post
	var idStr, authorStr string
	if err := row.Scan(&idStr, &authorStr, &post.Body, &post.Deleted, &post.CreatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("POST_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	author, err := ulid.Parse(authorStr)
	if err != nil {
		return nil, oops.Code("POST_CORRUPT_ID").With("author_id", authorStr).Wrap(err)
	}
	post.ID = id
	post.AuthorID = author
	return &post, nil
}

func scanComment(row pgx.Row) (*feed.Comment, error) {
	var comment feed.Comment
	var idStr, postStr, authorStr string
	if err := row.Scan(&idStr, &postStr, &authorStr, &comment.Body, &comment.Deleted, &comment.CreatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("COMMENT_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	postID, err := ulid.Parse(postStr)
	if err != nil {
		return nil, oops.Code("COMMENT_CORRUPT_ID").With("post_id", postStr).Wrap(err)
	}
	author, err := ulid.Parse(authorStr)
	if err != nil {
		return nil, oops.Code("COMMENT_CORRUPT_ID").With("author_id", authorStr).Wrap(err)
	}
	comment.ID = id
	comment.PostID = postID
	comment.AuthorID = author
	return &comment, nil
}
