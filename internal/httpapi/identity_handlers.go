// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/identity"
)

type registrationRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Church       string `json:"church"`
	City         string `json:"city"`
	Country      string `json:"country"`
	PhotoPresent bool   `json:"photo_present"`
	LifeReview   bool   `json:"life_review"`
	WaterBaptism bool   `json:"water_baptism"`
}

type identityView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

type profileView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Church    string    `json:"church,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	Connected bool      `json:"connected"`
	CreatedAt time.Time `json:"created_at"`
}

func viewIdentity(ident *identity.Identity) identityView {
	return identityView{
		ID:        ident.ID.String(),
		Name:      ident.Name,
		Role:      string(ident.Role),
		Approved:  ident.Approved,
		CreatedAt: ident.CreatedAt,
	}
}

func (h *handlers) register(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ident, err := h.deps.Identity.Register(c.Request.Context(), identity.Registration{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Church:       req.Church,
		City:         req.City,
		Country:      req.Country,
		PhotoPresent: req.PhotoPresent,
		LifeReview:   req.LifeReview,
		WaterBaptism: req.WaterBaptism,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RegistrationsTotal.Inc()
	}

	c.JSON(http.StatusCreated, viewIdentity(ident))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ident, token, err := h.deps.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		h.writeError(c, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.LoginsTotal.WithLabelValues("success").Inc()
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, int(identity.SessionTokenExpiry.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, viewIdentity(ident))
}

func (h *handlers) logout(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err == nil && token != "" {
		if err := h.deps.Identity.Logout(c.Request.Context(), token); err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, viewIdentity(currentIdentity(c)))
}

func (h *handlers) directory(c *gin.Context) {
	idents, err := h.deps.Identity.Directory(c.Request.Context(), currentIdentity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]identityView, 0, len(idents))
	for _, ident := range idents {
		views = append(views, viewIdentity(ident))
	}
	c.JSON(http.StatusOK, gin.H{"identities": views})
}

func (h *handlers) viewProfile(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		return
	}

	profile, err := h.deps.Identity.ViewProfile(c.Request.Context(), currentIdentity(c), targetID, h.deps.Connections)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileView{
		ID:        profile.ID.String(),
		Name:      profile.Name,
		Role:      string(profile.Role),
		Church:    profile.Church,
		City:      profile.City,
		Country:   profile.Country,
		Connected: profile.Connected,
		CreatedAt: profile.CreatedAt,
	})
}

func (h *handlers) pendingRegistrations(c *gin.Context) {
	idents, err := h.deps.Identity.PendingRegistrations(c.Request.Context(), currentIdentity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]identityView, 0, len(idents))
	for _, ident := range idents {
		views = append(views, viewIdentity(ident))
	}
	c.JSON(http.StatusOK, gin.H{"pending": views})
}

func (h *handlers) approveRegistration(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.deps.Identity.Approve(c.Request.Context(), currentIdentity(c), targetID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) rejectRegistration(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.deps.Identity.Reject(c.Request.Context(), currentIdentity(c), targetID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *handlers) changeRole(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		return
	}

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.deps.Identity.ChangeRole(c.Request.Context(), currentIdentity(c), targetID, access.Role(req.Role))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseID reads the :id path parameter as a ULID, aborting with 400 on
// malformed input.
func parseID(c *gin.Context) (ulid.ULID, bool) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return ulid.ULID{}, false
	}
	return id, true
}
