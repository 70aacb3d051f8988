// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/pkg/errutil"
)

// writeError maps a service error to an HTTP status. The body carries
// the stable error code, never internal context.
func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		errutil.LogError(h.deps.Logger, "request failed", err)
	}

	body := gin.H{"error": http.StatusText(status)}
	if code := errutil.Code(err); code != "" && status != http.StatusInternalServerError {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrPendingApproval),
		errors.Is(err, identity.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvariant):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
