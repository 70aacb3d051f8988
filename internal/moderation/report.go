// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package moderation provides the report lifecycle: any member may flag
// content, leaders and admins resolve the flag and may take the
// content down through the feed's reported-content delete path.
package moderation

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/koinonia/koinonia/internal/feed"
)

// ReportStatus is the state of a report.
type ReportStatus string

// Report states. Transitions only open → resolved, exactly once.
const (
	StatusOpen     ReportStatus = "open"
	StatusResolved ReportStatus = "resolved"
)

// Report is a flag raised against a post or comment.
type Report struct {
	ID         ulid.ULID
	Target     feed.ContentRef
	ReporterID ulid.ULID
	Reason     string
	Status     ReportStatus
	ResolverID *ulid.ULID // nil until resolved
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Resolved reports whether the report has been resolved.
func (r *Report) Resolved() bool {
	return r.Status == StatusResolved
}

// Repository persists reports.
type Repository interface {
	Create(ctx context.Context, report *Report) error

	// Get retrieves a report. Returns identity.ErrNotFound when absent.
	Get(ctx context.Context, id ulid.ULID) (*Report, error)

	// ListOpen returns open reports in creation order.
	ListOpen(ctx context.Context) ([]*Report, error)

	// Resolve transitions an open report to resolved, recording the
	// resolver and time. The open precondition is checked in the same
	// transaction as the write; identity.ErrConflict reports that a
	// concurrent writer resolved it first.
	Resolve(ctx context.Context, id, resolverID ulid.ULID, at time.Time) error
}
