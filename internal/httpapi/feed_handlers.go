// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koinonia/koinonia/internal/feed"
)

type postView struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func viewPost(post *feed.Post) postView {
	return postView{
		ID:        post.ID.String(),
		AuthorID:  post.AuthorID.String(),
		Body:      post.Body,
		CreatedAt: post.CreatedAt,
	}
}

type commentView struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type bodyRequest struct {
	Body string `json:"body"`
}

func (h *handlers) listPosts(c *gin.Context) {
	posts, err := h.deps.Feed.ListRecent(c.Request.Context(), feed.DefaultFeedLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		views = append(views, viewPost(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

func (h *handlers) createPost(c *gin.Context) {
	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	post, err := h.deps.Feed.CreatePost(c.Request.Context(), currentIdentity(c), req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewPost(post))
}

func (h *handlers) deletePost(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.deps.Feed.DeleteOwnPost(c.Request.Context(), currentIdentity(c), postID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listComments(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}

	comments, err := h.deps.Feed.Comments(c.Request.Context(), postID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		views = append(views, commentView{
			ID:        comment.ID.String(),
			PostID:    comment.PostID.String(),
			AuthorID:  comment.AuthorID.String(),
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"comments": views})
}

func (h *handlers) createComment(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}

	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comment, err := h.deps.Feed.Comment(c.Request.Context(), currentIdentity(c), postID, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commentView{
		ID:        comment.ID.String(),
		PostID:    comment.PostID.String(),
		AuthorID:  comment.AuthorID.String(),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	})
}

func (h *handlers) toggleLike(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}

	liked, err := h.deps.Feed.ToggleLike(c.Request.Context(), currentIdentity(c), postID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	count, err := h.deps.Feed.LikeCount(c.Request.Context(), postID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "likes": count})
}
