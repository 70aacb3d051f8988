// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/identity"
)

// SessionRepository implements identity.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(p pool) *SessionRepository {
	return &SessionRepository{pool: p}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *identity.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, identity_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.IdentityID.String(),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its stored token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*identity.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	var session identity.Session
	var idStr, identityStr string
	err := row.Scan(&idStr, &identityStr, &session.TokenHash, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	if session.IdentityID, err = ulid.Parse(identityStr); err != nil {
		return nil, oops.Code("SESSION_CORRUPT_ID").With("identity_id", identityStr).Wrap(err)
	}
	return &session, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}
