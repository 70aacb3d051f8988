// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia/koinonia/internal/connection"
	"github.com/koinonia/koinonia/internal/identity"
)

func newPending(t *testing.T) *connection.Connection {
	t.Helper()
	a, b := ulid.Make(), ulid.Make()
	pair, err := connection.NewPair(a, b)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &connection.Connection{
		Pair:      pair,
		Requester: a,
		Status:    connection.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestConnectionRepository_CreateOrReopen(t *testing.T) {
	t.Run("inserts when no record exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		conn := newPending(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(`INSERT INTO connections`).
			WithArgs(
				conn.Pair.Lo.String(), conn.Pair.Hi.String(),
				conn.Requester.String(), "pending",
				conn.CreatedAt, conn.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		repo := NewConnectionRepository(mock)
		require.NoError(t, repo.CreateOrReopen(context.Background(), conn))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("supersedes a declined record in place", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		conn := newPending(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("declined"))
		mock.ExpectExec(`UPDATE connections`).
			WithArgs(
				conn.Pair.Lo.String(), conn.Pair.Hi.String(),
				conn.Requester.String(), "pending",
				conn.CreatedAt, conn.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		repo := NewConnectionRepository(mock)
		require.NoError(t, repo.CreateOrReopen(context.Background(), conn))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("pending record conflicts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		conn := newPending(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
		mock.ExpectRollback()

		repo := NewConnectionRepository(mock)
		err = repo.CreateOrReopen(context.Background(), conn)
		assert.ErrorIs(t, err, identity.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("concurrent insert loses to the unique key", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		conn := newPending(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(`INSERT INTO connections`).
			WithArgs(
				conn.Pair.Lo.String(), conn.Pair.Hi.String(),
				conn.Requester.String(), "pending",
				conn.CreatedAt, conn.UpdatedAt,
			).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		mock.ExpectRollback()

		repo := NewConnectionRepository(mock)
		err = repo.CreateOrReopen(context.Background(), conn)
		assert.ErrorIs(t, err, identity.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestConnectionRepository_Transition(t *testing.T) {
	conn := newPending(t)
	at := time.Now()

	t.Run("moves pending to accepted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE connections SET status = \$4`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String(), "pending", "accepted", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewConnectionRepository(mock)
		err = repo.Transition(context.Background(), conn.Pair, connection.StatusPending, connection.StatusAccepted, at)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("stale precondition conflicts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE connections SET status = \$4`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String(), "pending", "declined", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewConnectionRepository(mock)
		err = repo.Transition(context.Background(), conn.Pair, connection.StatusPending, connection.StatusDeclined, at)
		assert.ErrorIs(t, err, identity.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestConnectionRepository_Delete(t *testing.T) {
	conn := newPending(t)

	t.Run("removes an accepted record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String(), "accepted").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewConnectionRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), conn.Pair, connection.StatusAccepted))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("record moved on since the read", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM connections`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String(), "accepted").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewConnectionRepository(mock)
		err = repo.Delete(context.Background(), conn.Pair, connection.StatusAccepted)
		assert.ErrorIs(t, err, identity.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestConnectionRepository_Get(t *testing.T) {
	conn := newPending(t)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"pair_lo", "pair_hi", "requester", "status", "created_at", "updated_at"}).
			AddRow(conn.Pair.Lo.String(), conn.Pair.Hi.String(), conn.Requester.String(), "accepted", conn.CreatedAt, conn.UpdatedAt)
		mock.ExpectQuery(`SELECT pair_lo, pair_hi, requester, status, created_at, updated_at`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnRows(rows)

		repo := NewConnectionRepository(mock)
		got, err := repo.Get(context.Background(), conn.Pair)
		require.NoError(t, err)
		assert.Equal(t, conn.Pair, got.Pair)
		assert.Equal(t, connection.StatusAccepted, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT pair_lo, pair_hi, requester, status, created_at, updated_at`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewConnectionRepository(mock)
		_, err = repo.Get(context.Background(), conn.Pair)
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("corrupt status rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"pair_lo", "pair_hi", "requester", "status", "created_at", "updated_at"}).
			AddRow(conn.Pair.Lo.String(), conn.Pair.Hi.String(), conn.Requester.String(), "limbo", conn.CreatedAt, conn.UpdatedAt)
		mock.ExpectQuery(`SELECT pair_lo, pair_hi, requester, status, created_at, updated_at`).
			WithArgs(conn.Pair.Lo.String(), conn.Pair.Hi.String()).
			WillReturnRows(rows)

		repo := NewConnectionRepository(mock)
		_, err = repo.Get(context.Background(), conn.Pair)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown status")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestConnectionRepositoryInterface(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	var _ connection.Repository = NewConnectionRepository(mock)
}
