// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package postgres implements the report repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/internal/moderation"
)

// pool is the subset of pgxpool.Pool the repository uses, satisfied by
// pgxmock in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReportRepository implements moderation.Repository using PostgreSQL.
type ReportRepository struct {
	pool pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(p pool) *ReportRepository {
	return &ReportRepository{pool: p}
}

const reportColumns = `id, target_kind, target_id, reporter_id, reason, status, resolver_id, created_at, resolved_at`

// Create stores a new report.
func (r *ReportRepository) Create(ctx context.Context, report *moderation.Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (id, target_kind, target_id, reporter_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		report.ID.String(),
		string(report.Target.Kind),
		report.Target.ID.String(),
		report.ReporterID.String(),
		report.Reason,
		string(report.Status),
		report.CreatedAt,
	)
	if err != nil {
		return oops.Code("REPORT_CREATE_FAILED").
			With("target_id", report.Target.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a report.
func (r *ReportRepository) Get(ctx context.Context, id ulid.ULID) (*moderation.Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports WHERE id = $1
	`, id.String())

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REPORT_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REPORT_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return report, nil
}

// ListOpen returns open reports in creation order.
func (r *ReportRepository) ListOpen(ctx context.Context) ([]*moderation.Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE status = 'open'
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("REPORT_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var reports []*moderation.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, oops.Code("REPORT_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("REPORT_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return reports, nil
}

// Resolve transitions an open report to resolved. The open precondition
// is part of the UPDATE predicate, so the first writer wins and later
// writers observe a conflict.
func (r *ReportRepository) Resolve(ctx context.Context, id, resolverID ulid.ULID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = 'resolved', resolver_id = $2, resolved_at = $3
		WHERE id = $1 AND status = 'open'
	`, id.String(), resolverID.String(), at)
	if err != nil {
		return oops.Code("REPORT_RESOLVE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return oops.Code("REPORT_ALREADY_RESOLVED").
			With("id", id.String()).
			Wrap(identity.ErrConflict)
	}
	return nil
}

func scanReport(row pgx.Row) (*moderation.Report, error) {
	var report moderation.Report
	var idStr, kindStr, targetStr, reporterStr, statusStr string
	var resolverStr *string
	if err := row.Scan(
		&idStr,
		&kindStr,
		&targetStr,
		&reporterStr,
		&report.Reason,
		&statusStr,
		&resolverStr,
		&report.CreatedAt,
		&report.ResolvedAt,
	); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REPORT_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	targetID, err := ulid.Parse(targetStr)
	if err != nil {
		return nil, oops.Code("REPORT_CORRUPT_ID").With("target_id", targetStr).Wrap(err)
	}
	reporter, err := ulid.Parse(reporterStr)
	if err != nil {
		return nil, oops.Code("REPORT_CORRUPT_ID").With("reporter_id", reporterStr).Wrap(err)
	}

	kind := feed.ContentKind(kindStr)
	if !kind.IsValid() {
		return nil, oops.Code("REPORT_CORRUPT_KIND").
			With("kind", kindStr).
			Errorf("unknown target kind in database")
	}

	report.ID = id
	report.Target = feed.ContentRef{Kind: kind, ID: targetID}
	report.ReporterID = reporter
	report.Status = moderation.ReportStatus(statusStr)

	if resolverStr != nil {
		resolver, err := ulid.Parse(*resolverStr)
		if err != nil {
			return nil, oops.Code("REPORT_CORRUPT_ID").With("resolver_id", *resolverStr).Wrap(err)
		}
		report.ResolverID = &resolver
	}
	return &report, nil
}
