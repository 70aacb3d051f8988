// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
)

// contentLookup is the slice of the feed repository this service needs:
// verifying that a reported target exists.
type contentLookup interface {
	GetPost(ctx context.Context, id ulid.ULID) (*feed.Post, error)
	GetComment(ctx context.Context, id ulid.ULID) (*feed.Comment, error)
}

// Remover takes reported content down. Implemented by the feed service;
// the authorization check lives there so takedown has one code path.
type Remover interface {
	RemoveReported(ctx context.Context, actor *identity.Identity, target feed.ContentRef) error
}

// Service drives the report lifecycle.
type Service struct {
	reports Repository
	content contentLookup
	now     func() time.Time
}

// NewService creates a moderation Service.
func NewService(reports Repository, content contentLookup) (*Service, error) {
	if reports == nil {
		return nil, oops.Code("MODERATION_SERVICE_INIT").Errorf("reports repository is required")
	}
	if content == nil {
		return nil, oops.Code("MODERATION_SERVICE_INIT").Errorf("content lookup is required")
	}
	return &Service{reports: reports, content: content, now: time.Now}, nil
}

// File raises a report against a post or comment. Any identity may
// file; the reason must be non-empty.
func (s *Service) File(ctx context.Context, actor *identity.Identity, target feed.ContentRef, reason string) (*Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, oops.Code("MODERATION_EMPTY_REASON").Wrap(identity.ErrInvariant)
	}

	switch target.Kind {
	case feed.KindPost:
		if _, err := s.content.GetPost(ctx, target.ID); err != nil {
			return nil, err
		}
	case feed.KindComment:
		if _, err := s.content.GetComment(ctx, target.ID); err != nil {
			return nil, err
		}
	default:
		return nil, oops.Code("MODERATION_INVALID_TARGET").
			With("target_kind", string(target.Kind)).
			Wrap(identity.ErrInvariant)
	}

	report := &Report{
		ID:         ulid.Make(),
		Target:     target,
		ReporterID: actor.ID,
		Reason:     reason,
		Status:     StatusOpen,
		CreatedAt:  s.now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Open lists open reports for the moderation queue.
func (s *Service) Open(ctx context.Context, actor *identity.Identity) ([]*Report, error) {
	if !access.Can(actor.Role, access.ActionResolveReport, access.Context{}) {
		return nil, oops.Code("MODERATION_QUEUE_DENIED").Wrap(identity.ErrUnauthorized)
	}
	return s.reports.ListOpen(ctx)
}

// Resolve closes a report, recording the actor as resolver. Resolving
// an already-resolved report is a no-op that returns the existing
// resolution unchanged; the original resolver is never overwritten.
func (s *Service) Resolve(ctx context.Context, actor *identity.Identity, reportID ulid.ULID) (*Report, error) {
	if !access.Can(actor.Role, access.ActionResolveReport, access.Context{}) {
		return nil, oops.Code("MODERATION_RESOLVE_DENIED").Wrap(identity.ErrUnauthorized)
	}

	report, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Resolved() {
		return report, nil
	}

	at := s.now()
	if err := s.reports.Resolve(ctx, reportID, actor.ID, at); err != nil {
		// A concurrent resolver winning the race is still a resolved
		// report; report that resolution rather than the conflict.
		if errors.Is(err, identity.ErrConflict) {
			return s.reports.Get(ctx, reportID)
		}
		return nil, err
	}

	report.Status = StatusResolved
	report.ResolverID = &actor.ID
	report.ResolvedAt = &at
	return report, nil
}

// ResolveWithTakedown resolves a report and removes the reported
// content. Deletion reuses the feed's reported-content path, so the
// role check for the takedown itself is not duplicated here.
func (s *Service) ResolveWithTakedown(ctx context.Context, actor *identity.Identity, reportID ulid.ULID, remover Remover) (*Report, error) {
	if remover == nil {
		return nil, oops.Code("MODERATION_NO_REMOVER").Errorf("remover is required")
	}

	report, err := s.Resolve(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}

	if err := remover.RemoveReported(ctx, actor, report.Target); err != nil {
		// The target may already be gone; the resolution stands.
		if errors.Is(err, identity.ErrNotFound) {
			return report, nil
		}
		return nil, err
	}
	return report, nil
}
