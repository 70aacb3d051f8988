// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/moderation"
)

type reportView struct {
	ID         string     `json:"id"`
	TargetKind string     `json:"target_kind"`
	TargetID   string     `json:"target_id"`
	ReporterID string     `json:"reporter_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ResolverID *string    `json:"resolver_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func viewReport(report *moderation.Report) reportView {
	view := reportView{
		ID:         report.ID.String(),
		TargetKind: string(report.Target.Kind),
		TargetID:   report.Target.ID.String(),
		ReporterID: report.ReporterID.String(),
		Reason:     report.Reason,
		Status:     string(report.Status),
		CreatedAt:  report.CreatedAt,
		ResolvedAt: report.ResolvedAt,
	}
	if report.ResolverID != nil {
		resolver := report.ResolverID.String()
		view.ResolverID = &resolver
	}
	return view
}

type fileReportRequest struct {
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

func (h *handlers) fileReport(c *gin.Context) {
	var req fileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	targetID, err := ulid.Parse(req.TargetID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	target := feed.ContentRef{Kind: feed.ContentKind(req.TargetKind), ID: targetID}
	report, err := h.deps.Moderation.File(c.Request.Context(), currentIdentity(c), target, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.ReportsTotal.WithLabelValues("filed").Inc()
	}
	c.JSON(http.StatusCreated, viewReport(report))
}

func (h *handlers) openReports(c *gin.Context) {
	reports, err := h.deps.Moderation.Open(c.Request.Context(), currentIdentity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]reportView, 0, len(reports))
	for _, report := range reports {
		views = append(views, viewReport(report))
	}
	c.JSON(http.StatusOK, gin.H{"reports": views})
}

type resolveRequest struct {
	RemoveContent bool `json:"remove_content"`
}

func (h *handlers) resolveReport(c *gin.Context) {
	reportID, ok := parseID(c)
	if !ok {
		return
	}

	// The body is optional; a missing body resolves without takedown.
	var req resolveRequest
	_ = c.ShouldBindJSON(&req) //nolint:errcheck // empty body means no takedown

	var (
		report *moderation.Report
		err    error
	)
	actor := currentIdentity(c)
	if req.RemoveContent {
		report, err = h.deps.Moderation.ResolveWithTakedown(c.Request.Context(), actor, reportID, h.deps.Feed)
	} else {
		report, err = h.deps.Moderation.Resolve(c.Request.Context(), actor, reportID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.ReportsTotal.WithLabelValues("resolved").Inc()
	}
	c.JSON(http.StatusOK, viewReport(report))
}
