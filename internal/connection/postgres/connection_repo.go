// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package postgres implements the connection repository using PostgreSQL.
//
// The table holds one row per unordered identity pair, keyed
// (pair_lo, pair_hi) with pair_lo < pair_hi. Mutations lock the row
// with SELECT ... FOR UPDATE and re-check the caller's precondition
// inside the transaction, so concurrent writers observe a conflict
// instead of overwriting each other.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/connection"
	"github.com/koinonia/koinonia/internal/identity"
)

// pool is the subset of pgxpool.Pool the repository uses, satisfied by
// pgxmock in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConnectionRepository implements connection.Repository using PostgreSQL.
type ConnectionRepository struct {
	pool pool
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(p pool) *ConnectionRepository {
	return &ConnectionRepository{pool: p}
}

// Get retrieves the live record for a pair.
func (r *ConnectionRepository) Get(ctx context.Context, pair connection.Pair) (*connection.Connection, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT pair_lo, pair_hi, requester, status, created_at, updated_at
		FROM connections
		WHERE pair_lo = $1 AND pair_hi = $2
	`, pair.Lo.String(), pair.Hi.String())

	conn, err := scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CONNECTION_NOT_FOUND").
			With("pair_lo", pair.Lo.String()).
			With("pair_hi", pair.Hi.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CONNECTION_GET_FAILED").
			With("pair_lo", pair.Lo.String()).
			With("pair_hi", pair.Hi.String()).
			Wrap(err)
	}
	return conn, nil
}

// CreateOrReopen inserts a pending record for the pair, superseding a
// declined record in place. Pending and accepted records conflict.
func (r *ConnectionRepository) CreateOrReopen(ctx context.Context, conn *connection.Connection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("CONNECTION_REQUEST_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM connections
		WHERE pair_lo = $1 AND pair_hi = $2
		FOR UPDATE
	`, conn.Pair.Lo.String(), conn.Pair.Hi.String()).Scan(&status)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO connections (pair_lo, pair_hi, requester, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			conn.Pair.Lo.String(),
			conn.Pair.Hi.String(),
			conn.Requester.String(),
			string(conn.Status),
			conn.CreatedAt,
			conn.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				// A concurrent requester inserted first.
				return oops.Code("CONNECTION_EXISTS").Wrap(identity.ErrConflict)
			}
			return oops.Code("CONNECTION_REQUEST_FAILED").
				With("operation", "insert connection").
				Wrap(err)
		}
	case err != nil:
		return oops.Code("CONNECTION_REQUEST_FAILED").
			With("operation", "lock existing record").
			Wrap(err)
	case status == string(connection.StatusDeclined):
		_, err = tx.Exec(ctx, `
			UPDATE connections
			SET requester = $3, status = $4, created_at = $5, updated_at = $6
			WHERE pair_lo = $1 AND pair_hi = $2
		`,
			conn.Pair.Lo.String(),
			conn.Pair.Hi.String(),
			conn.Requester.String(),
			string(conn.Status),
			conn.CreatedAt,
			conn.UpdatedAt,
		)
		if err != nil {
			return oops.Code("CONNECTION_REQUEST_FAILED").
				With("operation", "supersede declined record").
				Wrap(err)
		}
	default:
		return oops.Code("CONNECTION_EXISTS").
			With("status", status).
			Wrap(identity.ErrConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("CONNECTION_REQUEST_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return nil
}

// Transition moves the pair's record between statuses. The expected
// status is part of the UPDATE predicate, so a record that moved on
// since the caller's read surfaces as a conflict.
func (r *ConnectionRepository) Transition(ctx context.Context, pair connection.Pair, from, to connection.Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE connections SET status = $4, updated_at = $5
		WHERE pair_lo = $1 AND pair_hi = $2 AND status = $3
	`, pair.Lo.String(), pair.Hi.String(), string(from), string(to), at)
	if err != nil {
		return oops.Code("CONNECTION_TRANSITION_FAILED").
			With("from", string(from)).
			With("to", string(to)).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("CONNECTION_STALE").
			With("from", string(from)).
			With("to", string(to)).
			Wrap(identity.ErrConflict)
	}
	return nil
}

// Delete removes the pair's record if it still has the given status.
func (r *ConnectionRepository) Delete(ctx context.Context, pair connection.Pair, current connection.Status) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM connections
		WHERE pair_lo = $1 AND pair_hi = $2 AND status = $3
	`, pair.Lo.String(), pair.Hi.String(), string(current))
	if err != nil {
		return oops.Code("CONNECTION_DELETE_FAILED").
			With("status", string(current)).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("CONNECTION_STALE").
			With("status", string(current)).
			Wrap(identity.ErrConflict)
	}
	return nil
}

// ListFor returns every record involving the identity, newest first.
func (r *ConnectionRepository) ListFor(ctx context.Context, id ulid.ULID) ([]*connection.Connection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pair_lo, pair_hi, requester, status, created_at, updated_at
		FROM connections
		WHERE pair_lo = $1 OR pair_hi = $1
		ORDER BY updated_at DESC
	`, id.String())
	if err != nil {
		return nil, oops.Code("CONNECTION_LIST_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}
	defer rows.Close()

	var conns []*connection.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, oops.Code("CONNECTION_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CONNECTION_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return conns, nil
}

func scanConnection(row pgx.Row) (*connection.Connection, error) {
	var conn connection.Connection
	var loStr, hiStr, requesterStr, statusStr string
	if err := row.Scan(&loStr, &hiStr, &requesterStr, &statusStr, &conn.CreatedAt, &conn.UpdatedAt); err != nil {
		return nil, err
	}

	lo, err := ulid.Parse(loStr)
	if err != nil {
		return nil, oops.Code("CONNECTION_CORRUPT_ID").With("pair_lo", loStr).Wrap(err)
	}
	hi, err := ulid.Parse(hiStr)
	if err != nil {
		return nil, oops.Code("CONNECTION_CORRUPT_ID").With("pair_hi", hiStr).Wrap(err)
	}
	requester, err := ulid.Parse(requesterStr)
	if err != nil {
		return nil, oops.Code("CONNECTION_CORRUPT_ID").With("requester", requesterStr).Wrap(err)
	}

	status := connection.Status(statusStr)
	if !status.IsValid() {
		return nil, oops.Code("CONNECTION_CORRUPT_STATUS").
			With("status", statusStr).
			Errorf("unknown status in database")
	}

	conn.Pair = connection.Pair{Lo: lo, Hi: hi}
	conn.Requester = requester
	conn.Status = status
	return &conn, nil
}
