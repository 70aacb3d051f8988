// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia/koinonia/internal/feed"
	"github.com/koinonia/koinonia/internal/identity"
	"github.com/koinonia/koinonia/internal/moderation"
)

func TestReportRepository_Resolve(t *testing.T) {
	id := ulid.Make()
	resolver := ulid.Make()
	at := time.Now()

	t.Run("first resolver wins", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE reports`).
			WithArgs(id.String(), resolver.String(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewReportRepository(mock)
		require.NoError(t, repo.Resolve(context.Background(), id, resolver, at))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("already-resolved report conflicts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE reports`).
			WithArgs(id.String(), resolver.String(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		earlier := at.Add(-time.Minute)
		other := ulid.Make().String()
		mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "target_kind", "target_id", "reporter_id", "reason",
				"status", "resolver_id", "created_at", "resolved_at",
			}).AddRow(
				id.String(), "post", ulid.Make().String(), ulid.Make().String(),
				"spam", "resolved", &other, earlier, &earlier,
			))

		repo := NewReportRepository(mock)
		err = repo.Resolve(context.Background(), id, resolver, at)
		assert.ErrorIs(t, err, identity.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown report", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE reports`).
			WithArgs(id.String(), resolver.String(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewReportRepository(mock)
		err = repo.Resolve(context.Background(), id, resolver, at)
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestReportRepository_Get(t *testing.T) {
	t.Run("open report has nil resolver", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		id := ulid.Make()
		target := ulid.Make()
		now := time.Now()
		mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "target_kind", "target_id", "reporter_id", "reason",
				"status", "resolver_id", "created_at", "resolved_at",
			}).AddRow(
				id.String(), "comment", target.String(), ulid.Make().String(),
				"rude", "open", nil, now, nil,
			))

		repo := NewReportRepository(mock)
		report, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, feed.KindComment, report.Target.Kind)
		assert.Equal(t, target, report.Target.ID)
		assert.False(t, report.Resolved())
		assert.Nil(t, report.ResolverID)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("corrupt target kind rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		id := ulid.Make()
		now := time.Now()
		mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "target_kind", "target_id", "reporter_id", "reason",
				"status", "resolver_id", "created_at", "resolved_at",
			}).AddRow(
				id.String(), "video", ulid.Make().String(), ulid.Make().String(),
				"spam", "open", nil, now, nil,
			))

		repo := NewReportRepository(mock)
		_, err = repo.Get(context.Background(), id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown target kind")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestReportRepositoryInterface(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	var _ moderation.Repository = NewReportRepository(mock)
}
