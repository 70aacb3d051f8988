// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koinonia/koinonia/internal/connection"
	"github.com/koinonia/koinonia/internal/identity"
)

type connectionView struct {
	OtherID   string    `json:"other_id"`
	Requester string    `json:"requester"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewConnection(conn *connection.Connection, viewer *identity.Identity) connectionView {
	return connectionView{
		OtherID:   conn.Pair.Other(viewer.ID).String(),
		Requester: conn.Requester.String(),
		Status:    string(conn.Status),
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}

func (h *handlers) listConnections(c *gin.Context) {
	actor := currentIdentity(c)
	conns, err := h.deps.Connections.ListFor(c.Request.Context(), actor.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, viewConnection(conn, actor))
	}
	c.JSON(http.StatusOK, gin.H{"connections": views})
}

func (h *handlers) requestConnection(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		return
	}

	actor := currentIdentity(c)
	conn, err := h.deps.Connections.Request(c.Request.Context(), actor.ID, targetID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewConnection(conn, actor))
}

type respondRequest struct {
	Decision string `json:"decision"`
}

func (h *handlers) respondConnection(c *gin.Context) {
	otherID, ok := parseID(c)
	if !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := currentIdentity(c)
	conn, err := h.deps.Connections.Respond(c.Request.Context(), actor.ID, otherID, connection.Decision(req.Decision))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewConnection(conn, actor))
}

func (h *handlers) withdrawConnection(c *gin.Context) {
	otherID, ok := parseID(c)
	if !ok {
		return
	}

	actor := currentIdentity(c)
	if err := h.deps.Connections.Withdraw(c.Request.Context(), actor.ID, otherID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
