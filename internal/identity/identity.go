// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/access"
)

// Display name constraints.
const (
	MinNameLength = 2
	MaxNameLength = 80
)

// Identity represents a registered person account. The email is the
// immutable login handle; the role is the only field a privileged actor
// mutates after registration.
type Identity struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Name         string
	Church       string
	City         string
	Country      string
	PhotoPresent bool
	LifeReview   bool
	WaterBaptism bool
	Role         access.Role
	Approved     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Registration carries the fields supplied at sign-up.
type Registration struct {
	Email        string
	Password     string
	Name         string
	Church       string
	City         string
	Country      string
	PhotoPresent bool
	LifeReview   bool
	WaterBaptism bool
}

// Validate checks the registration fields. The three verification flags
// (profile photo, life review, water baptism) must all be truthy; the
// community only admits verified members.
func (r Registration) Validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return oops.Code("IDENTITY_INVALID_EMAIL").
			With("email", r.Email).
			Errorf("invalid email address")
	}
	if r.Password == "" {
		return ErrEmptyPassword
	}
	name := strings.TrimSpace(r.Name)
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return oops.Code("IDENTITY_INVALID_NAME").
			With("min", MinNameLength).
			With("max", MaxNameLength).
			Errorf("display name must be between %d and %d characters", MinNameLength, MaxNameLength)
	}
	if strings.TrimSpace(r.Church) == "" || strings.TrimSpace(r.City) == "" || strings.TrimSpace(r.Country) == "" {
		return oops.Code("IDENTITY_INVALID_ATTRIBUTES").
			Errorf("church, city, and country are required")
	}
	if !r.PhotoPresent || !r.LifeReview || !r.WaterBaptism {
		return oops.Code("IDENTITY_NOT_VERIFIED").
			Wrap(ErrInvariant)
	}
	return nil
}

// NormalizedEmail returns the canonical form of the login handle.
func (r Registration) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// IdentityRepository persists identities.
//
//nolint:revive // Name keeps the entity visible at call sites in other packages.
type IdentityRepository interface {
	// Create stores a new identity. The implementation assigns
	// RoleAdmin when the identity is the first row in the store and
	// RoleMember otherwise, atomically with the insert. A duplicate
	// email returns ErrConflict.
	Create(ctx context.Context, ident *Identity) error

	// GetByID retrieves an identity by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by its login handle,
	// case-insensitively. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error

	// UpdateRole reassigns an identity's role. When demoting an admin,
	// the implementation must verify inside the same transaction that
	// another admin remains, returning ErrInvariant otherwise.
	UpdateRole(ctx context.Context, id ulid.ULID, role access.Role) error

	// CountAdmins returns the number of identities holding RoleAdmin.
	CountAdmins(ctx context.Context) (int, error)

	// SetApproved marks a pending registration approved.
	SetApproved(ctx context.Context, id ulid.ULID) error

	// Delete removes a rejected registration and its dependent rows.
	Delete(ctx context.Context, id ulid.ULID) error

	// ListApproved returns approved identities ordered by name, for
	// the member directory.
	ListApproved(ctx context.Context) ([]*Identity, error)

	// ListPending returns unapproved registrations in creation order.
	ListPending(ctx context.Context) ([]*Identity, error)
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by the hash of its token.
	// Returns ErrNotFound when absent or expired.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	Delete(ctx context.Context, id ulid.ULID) error
}
