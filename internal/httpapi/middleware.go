// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/internal/observability"
)

// SessionCookie is the name of the session token cookie.
const SessionCookie = "koinonia_session"

// identityKey is the gin context key holding the authenticated identity.
const identityKey = "identity"

// requireAuth resolves the session cookie to an identity and aborts
// with 401 when the token is missing, unknown, or expired.
func requireAuth(identities IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		ident, err := identities.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// currentIdentity returns the identity set by requireAuth. Routes not
// behind requireAuth must not call it.
func currentIdentity(c *gin.Context) *identity.Identity {
	return c.MustGet(identityKey).(*identity.Identity)
}

// requestMetrics counts finished requests by method and status. A nil
// metrics value disables the middleware.
func requestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		m.HTTPRequestsTotal.
			WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
