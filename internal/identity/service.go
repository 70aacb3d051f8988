// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/access"
	"github.com/koinonia/koinonia/internal/observability"
	"github.com/koinonia/koinonia/pkg/errutil"
)

// dummyPasswordHash is verified when a handle doesn't exist so the
// response time does not distinguish "unknown email" from "wrong
// password". It is a well-formed strong hash that matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing uniformity, not a credential.
const dummyPasswordHash = "pbkdf2_sha256$200000$00000000000000000000000000000000$0000000000000000000000000000000000000000000000000000000000000000"

// ConnectionChecker reports whether two identities hold an accepted
// connection. Implemented by the connection service; the accepted fact
// is the authoritative signal for profile visibility.
type ConnectionChecker interface {
	IsConnected(ctx context.Context, a, b ulid.ULID) (bool, error)
}

// Service provides registration, login, and account administration.
type Service struct {
	identities IdentityRepository
	sessions   SessionRepository
	hasher     Hasher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates an identity Service.
func NewService(identities IdentityRepository, sessions SessionRepository, hasher Hasher, logger *slog.Logger) (*Service, error) {
	if identities == nil {
		return nil, oops.Code("IDENTITY_SERVICE_INIT").Errorf("identities repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("IDENTITY_SERVICE_INIT").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("IDENTITY_SERVICE_INIT").Errorf("hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Register creates a new identity from a sign-up form. The repository
// assigns the role atomically with the insert: the first identity in
// the system becomes admin and is pre-approved, every later one is a
// member awaiting admin approval.
func (s *Service) Register(ctx context.Context, reg Registration) (*Identity, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, oops.Code("IDENTITY_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := s.now()
	ident := &Identity{
		ID:           ulid.Make(),
		Email:        reg.NormalizedEmail(),
		PasswordHash: hash,
		Name:         reg.Name,
		Church:       reg.Church,
		City:         reg.City,
		Country:      reg.Country,
		PhotoPresent: reg.PhotoPresent,
		LifeReview:   reg.LifeReview,
		WaterBaptism: reg.WaterBaptism,
		Role:         access.RoleMember, // repository promotes the first row to admin
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.Create(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Login verifies a credential and creates a session. All credential
// failures return ErrInvalidCredential; a legacy hash that matches is
// transparently re-hashed with the strong scheme, best effort.
func (s *Service) Login(ctx context.Context, email, password string) (*Identity, string, error) {
	ident, lookupErr := s.identities.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = ident.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Verify against the dummy hash below to keep timing uniform.
	default:
		return nil, "", oops.Code("IDENTITY_LOGIN_FAILED").
			With("operation", "get identity by email").
			Wrap(lookupErr)
	}

	result := s.hasher.Verify(password, targetHash)
	if !exists || !result.Match {
		return nil, "", oops.Code("IDENTITY_INVALID_CREDENTIALS").Wrap(ErrInvalidCredential)
	}

	if !ident.Approved {
		return nil, "", oops.Code("IDENTITY_PENDING_APPROVAL").Wrap(ErrPendingApproval)
	}

	if result.NeedsUpgrade {
		s.upgradeCredential(ctx, ident, password)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("IDENTITY_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}
	session, err := NewSession(ident.ID, tokenHash, s.now().Add(SessionTokenExpiry))
	if err != nil {
		return nil, "", oops.Code("IDENTITY_LOGIN_FAILED").
			With("operation", "build session").
			Wrap(err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("IDENTITY_LOGIN_FAILED").
			With("operation", "store session").
			Wrap(err)
	}

	return ident, token, nil
}

// upgradeCredential re-hashes a legacy credential with the strong
// scheme. Failures are logged and swallowed: the login already
// succeeded, and the account stays legacy until the next successful
// attempt. A concurrent login racing this write is harmless; both
// produce valid strong hashes and the last write wins.
func (s *Service) upgradeCredential(ctx context.Context, ident *Identity, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "credential upgrade hash failed", err)
		observability.RecordCredentialUpgradeFailure()
		return
	}
	if err := s.identities.UpdatePasswordHash(ctx, ident.ID, newHash); err != nil {
		errutil.LogError(s.logger, "credential upgrade write failed", err)
		observability.RecordCredentialUpgradeFailure()
		return
	}
	ident.PasswordHash = newHash
	s.logger.Info("legacy credential upgraded", "identity_id", ident.ID.String())
}

// Authenticate resolves a session token to its identity.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		return nil, err
	}
	if session.IsExpiredAt(s.now()) {
		return nil, oops.Code("IDENTITY_SESSION_EXPIRED").Wrap(ErrNotFound)
	}
	return s.identities.GetByID(ctx, session.IdentityID)
}

// Logout deletes the session for the given token, if any.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Delete(ctx, session.ID)
}

// ChangeRole reassigns another identity's role. Only admins pass the
// gate, and demoting the sole remaining admin is denied before the
// write; the repository re-checks the same invariant inside the update
// transaction in case admins change concurrently.
func (s *Service) ChangeRole(ctx context.Context, actor *Identity, targetID ulid.ULID, newRole access.Role) error {
	if !newRole.IsValid() {
		return oops.Code("IDENTITY_INVALID_ROLE").
			With("role", string(newRole)).
			Wrap(ErrInvariant)
	}

	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	wouldRemoveLastAdmin := false
	if target.Role == access.RoleAdmin && newRole != access.RoleAdmin {
		count, err := s.identities.CountAdmins(ctx)
		if err != nil {
			return oops.Code("IDENTITY_CHANGE_ROLE_FAILED").
				With("operation", "count admins").
				Wrap(err)
		}
		wouldRemoveLastAdmin = count <= 1
	}

	gateCtx := access.Context{WouldRemoveLastAdmin: wouldRemoveLastAdmin}
	if !access.Can(actor.Role, access.ActionChangeRole, gateCtx) {
		if wouldRemoveLastAdmin && actor.Role == access.RoleAdmin {
			return oops.Code("IDENTITY_LAST_ADMIN").Wrap(ErrInvariant)
		}
		return oops.Code("IDENTITY_CHANGE_ROLE_DENIED").Wrap(ErrUnauthorized)
	}

	if target.Role == newRole {
		return nil
	}
	return s.identities.UpdateRole(ctx, targetID, newRole)
}

// Approve admits a pending registration.
func (s *Service) Approve(ctx context.Context, actor *Identity, targetID ulid.ULID) error {
	if !access.Can(actor.Role, access.ActionApproveRegistration, access.Context{}) {
		return oops.Code("IDENTITY_APPROVE_DENIED").Wrap(ErrUnauthorized)
	}
	return s.identities.SetApproved(ctx, targetID)
}

// Reject removes a pending registration and everything it created.
func (s *Service) Reject(ctx context.Context, actor *Identity, targetID ulid.ULID) error {
	if !access.Can(actor.Role, access.ActionApproveRegistration, access.Context{}) {
		return oops.Code("IDENTITY_REJECT_DENIED").Wrap(ErrUnauthorized)
	}
	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Approved {
		return oops.Code("IDENTITY_ALREADY_APPROVED").
			With("identity_id", targetID.String()).
			Wrap(ErrConflict)
	}
	return s.identities.Delete(ctx, targetID)
}

// Directory lists approved members for the actor.
func (s *Service) Directory(ctx context.Context, actor *Identity) ([]*Identity, error) {
	if !access.Can(actor.Role, access.ActionViewDirectory, access.Context{}) {
		return nil, oops.Code("IDENTITY_DIRECTORY_DENIED").Wrap(ErrUnauthorized)
	}
	return s.identities.ListApproved(ctx)
}

// PendingRegistrations lists unapproved sign-ups for the admin queue.
func (s *Service) PendingRegistrations(ctx context.Context, actor *Identity) ([]*Identity, error) {
	if !access.Can(actor.Role, access.ActionApproveRegistration, access.Context{}) {
		return nil, oops.Code("IDENTITY_PENDING_DENIED").Wrap(ErrUnauthorized)
	}
	return s.identities.ListPending(ctx)
}

// Profile is the directory view of an identity. Location and church
// details are included only when the viewer is the identity itself,
// holds an accepted connection with it, or is a leader or admin.
type Profile struct {
	ID        ulid.ULID
	Name      string
	Role      access.Role
	Church    string
	City      string
	Country   string
	Connected bool
	CreatedAt time.Time
}

// ViewProfile returns the actor's view of a target identity.
func (s *Service) ViewProfile(ctx context.Context, actor *Identity, targetID ulid.ULID, connections ConnectionChecker) (*Profile, error) {
	if !access.Can(actor.Role, access.ActionViewDirectory, access.Context{}) {
		return nil, oops.Code("IDENTITY_PROFILE_DENIED").Wrap(ErrUnauthorized)
	}
	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	connected := false
	if connections != nil && actor.ID.Compare(targetID) != 0 {
		connected, err = connections.IsConnected(ctx, actor.ID, targetID)
		if err != nil {
			return nil, oops.Code("IDENTITY_PROFILE_FAILED").
				With("operation", "check connection").
				Wrap(err)
		}
	}

	profile := &Profile{
		ID:        target.ID,
		Name:      target.Name,
		Role:      target.Role,
		Connected: connected,
		CreatedAt: target.CreatedAt,
	}
	if actor.ID.Compare(targetID) == 0 || connected || actor.Role.AtLeast(access.RoleLeader) {
		profile.Church = target.Church
		profile.City = target.City
		profile.Country = target.Country
	}
	return profile, nil
}
