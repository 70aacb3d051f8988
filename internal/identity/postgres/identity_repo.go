// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package postgres implements the identity repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/identity"
)

// registrationLockKey serializes registrations so the first-identity-
// becomes-admin rule cannot elect two admins under concurrency.
const registrationLockKey = 7231 // arbitrary app-wide advisory lock id

// pool is the subset of pgxpool.Pool the repositories use, satisfied
// by pgxmock in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdentityRepository implements identity.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool pool
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(p pool) *IdentityRepository {
	return &IdentityRepository{pool: p}
}

const identityColumns = `id, email, password_hash, name, church, city, country,
	       photo_present, life_review, water_baptism, role, approved,
	       created_at, updated_at`

// Create stores a new identity. Registrations serialize on an advisory
// lock so exactly one identity can observe the empty store: that one is
// inserted as a pre-approved admin, all others as unapproved members.
func (r *IdentityRepository) Create(ctx context.Context, ident *identity.Identity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "acquire registration lock").
			Wrap(err)
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&existing); err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "count identities").
			Wrap(err)
	}
	if existing == 0 {
		ident.Role = access.RoleAdmin
		ident.Approved = true
	} else {
		ident.Role = access.RoleMember
		ident.Approved = false
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identities (
			id, email, password_hash, name, church, city, country,
			photo_present, life_review, water_baptism, role, approved,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		ident.ID.String(),
		ident.Email,
		ident.PasswordHash,
		ident.Name,
		ident.Church,
		ident.City,
		ident.Country,
		ident.PhotoPresent,
		ident.LifeReview,
		ident.WaterBaptism,
		string(ident.Role),
		ident.Approved,
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("IDENTITY_EMAIL_TAKEN").
				With("email", ident.Email).
				Wrap(identity.ErrConflict)
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("email", ident.Email).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE id = $1
	`, id.String())

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return ident, nil
}

// GetByEmail retrieves an identity by its login handle (case-insensitive).
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE LOWER(email) = LOWER($1)
	`, email)

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("email", email).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_EMAIL_FAILED").
			With("email", email).
			Wrap(err)
	}
	return ident, nil
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id.String(), hash)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_HASH_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// UpdateRole reassigns an identity's role. The last-admin invariant is
// enforced in the UPDATE itself: demoting an admin succeeds only when
// another admin row exists at write time.
func (r *IdentityRepository) UpdateRole(ctx context.Context, id ulid.ULID, role access.Role) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities SET role = $2, updated_at = now()
		WHERE id = $1
		  AND ($2 = 'admin'
		       OR role <> 'admin'
		       OR EXISTS (SELECT 1 FROM identities WHERE role = 'admin' AND id <> $1))
	`, id.String(), string(role))
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_ROLE_FAILED").
			With("id", id.String()).
			With("role", string(role)).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return oops.Code("IDENTITY_LAST_ADMIN").
			With("id", id.String()).
			Wrap(identity.ErrInvariant)
	}
	return nil
}

// CountAdmins returns the number of admin identities.
func (r *IdentityRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities WHERE role = 'admin'`).Scan(&count)
	if err != nil {
		return 0, oops.Code("IDENTITY_COUNT_ADMINS_FAILED").Wrap(err)
	}
	return count, nil
}

// SetApproved marks a pending registration approved.
func (r *IdentityRepository) SetApproved(ctx context.Context, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities SET approved = TRUE, updated_at = now()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("IDENTITY_APPROVE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Delete removes an identity. Dependent rows (sessions, posts,
// comments, likes, reports, connections) go with it via ON DELETE
// CASCADE in the schema.
func (r *IdentityRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("IDENTITY_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// ListApproved returns approved identities ordered by name.
func (r *IdentityRepository) ListApproved(ctx context.Context) ([]*identity.Identity, error) {
	return r.list(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE approved ORDER BY name
	`)
}

// ListPending returns unapproved registrations in creation order.
func (r *IdentityRepository) ListPending(ctx context.Context) ([]*identity.Identity, error) {
	return r.list(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE NOT approved ORDER BY created_at
	`)
}

func (r *IdentityRepository) list(ctx context.Context, query string) ([]*identity.Identity, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, oops.Code("IDENTITY_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var idents []*identity.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, oops.Code("IDENTITY_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		idents = append(idents, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("IDENTITY_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return idents, nil
}

func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var ident identity.Identity
	var idStr, roleStr string
	if err := row.Scan(
		&idStr,
		&ident.Email,
		&ident.PasswordHash,
		&ident.Name,
		&ident.Church,
		&ident.City,
		&ident.Country,
		&ident.PhotoPresent,
		&ident.LifeReview,
		&ident.WaterBaptism,
		&roleStr,
		&ident.Approved,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	ident.ID = id

	role, ok := access.ParseRole(roleStr)
	if !ok {
		return nil, oops.Code("IDENTITY_CORRUPT_ROLE").
			With("id", idStr).
			With("role", roleStr).
			Errorf("unknown role in database")
	}
	ident.Role = role

	return &ident, nil
}
