// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package connection

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/identity"
)

// Repository persists connection records. Mutations are serialized per
// pair: implementations re-check the stated precondition inside the
// same transaction as the write and return identity.ErrConflict when a
// concurrent writer invalidated it.
type Repository interface {
	// Get retrieves the live record for a pair. Returns
	// identity.ErrNotFound when the pair has no record.
	Get(ctx context.Context, pair Pair) (*Connection, error)

	// CreateOrReopen inserts a pending record for the pair, or
	// supersedes an existing declined record in place. A live pending
	// or accepted record returns identity.ErrConflict.
	CreateOrReopen(ctx context.Context, conn *Connection) error

	// Transition moves the pair's record from status "from" to "to".
	// Precondition failure (record gone or status changed) returns
	// identity.ErrConflict.
	Transition(ctx context.Context, pair Pair, from, to Status, at time.Time) error

	// Delete removes the pair's record if it currently has the given
	// status, returning identity.ErrConflict otherwise.
	Delete(ctx context.Context, pair Pair, current Status) error

	// ListFor returns all records involving the identity.
	ListFor(ctx context.Context, id ulid.ULID) ([]*Connection, error)
}

// identityLookup is the slice of the identity repository this service
// needs: resolving request targets.
type identityLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (*identity.Identity, error)
}

// Service drives the connection state machine.
type Service struct {
	connections Repository
	identities  identityLookup
	now         func() time.Time
}

// NewService creates a connection Service.
func NewService(connections Repository, identities identityLookup) (*Service, error) {
	if connections == nil {
		return nil, oops.Code("CONNECTION_SERVICE_INIT").Errorf("connections repository is required")
	}
	if identities == nil {
		return nil, oops.Code("CONNECTION_SERVICE_INIT").Errorf("identity lookup is required")
	}
	return &Service{
		connections: connections,
		identities:  identities,
		now:         time.Now,
	}, nil
}

// Request opens a pending connection from the actor to the target.
// A live pending or accepted record for the pair suppresses the
// duplicate with identity.ErrConflict; a declined record is superseded
// by the new request.
func (s *Service) Request(ctx context.Context, actorID, targetID ulid.ULID) (*Connection, error) {
	pair, err := NewPair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !target.Approved {
		return nil, oops.Code("CONNECTION_TARGET_PENDING").
			With("target_id", targetID.String()).
			Wrap(identity.ErrNotFound)
	}

	now := s.now()
	conn := &Connection{
		Pair:      pair,
		Requester: actorID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.connections.CreateOrReopen(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Respond accepts or declines the pending request between the actor
// and the other identity. Only the recipient may respond; the requester
// gets identity.ErrUnauthorized. A repeated accept on an already
// accepted record is an idempotent no-op returning the existing state.
func (s *Service) Respond(ctx context.Context, actorID, otherID ulid.ULID, decision Decision) (*Connection, error) {
	pair, err := NewPair(actorID, otherID)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.Get(ctx, pair)
	if err != nil {
		return nil, err
	}

	if conn.Requester.Compare(actorID) == 0 {
		return nil, oops.Code("CONNECTION_REQUESTER_RESPONSE").
			With("pair_lo", pair.Lo.String()).
			With("pair_hi", pair.Hi.String()).
			Wrap(identity.ErrUnauthorized)
	}

	switch decision {
	case DecisionAccept:
		if conn.Status == StatusAccepted {
			return conn, nil
		}
	case DecisionDecline:
		// No idempotent path: declining anything but a pending
		// request is a stale view of the record.
	default:
		return nil, oops.Code("CONNECTION_INVALID_DECISION").
			With("decision", string(decision)).
			Wrap(identity.ErrInvariant)
	}

	if conn.Status != StatusPending {
		return nil, oops.Code("CONNECTION_NOT_PENDING").
			With("status", string(conn.Status)).
			Wrap(identity.ErrConflict)
	}

	to := StatusAccepted
	if decision == DecisionDecline {
		to = StatusDeclined
	}
	now := s.now()
	if err := s.connections.Transition(ctx, pair, StatusPending, to, now); err != nil {
		return nil, err
	}

	conn.Status = to
	conn.UpdatedAt = now
	return conn, nil
}

// Withdraw severs an established connection. Either party may withdraw;
// the record is deleted rather than marked declined, so a future
// request between the pair starts fresh.
func (s *Service) Withdraw(ctx context.Context, actorID, otherID ulid.ULID) error {
	pair, err := NewPair(actorID, otherID)
	if err != nil {
		return err
	}

	conn, err := s.connections.Get(ctx, pair)
	if err != nil {
		return err
	}
	if conn.Status != StatusAccepted {
		return oops.Code("CONNECTION_NOT_ACCEPTED").
			With("status", string(conn.Status)).
			Wrap(identity.ErrConflict)
	}

	return s.connections.Delete(ctx, pair, StatusAccepted)
}

// IsConnected reports whether the pair holds an accepted connection.
// This is the authoritative signal consumed by directory visibility.
func (s *Service) IsConnected(ctx context.Context, a, b ulid.ULID) (bool, error) {
	pair, err := NewPair(a, b)
	if err != nil {
		return false, err
	}
	conn, err := s.connections.Get(ctx, pair)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return conn.Status == StatusAccepted, nil
}

// ListFor returns every record involving the identity, for the
// connections page: accepted relations plus requests in flight.
func (s *Service) ListFor(ctx context.Context, id ulid.ULID) ([]*Connection, error) {
	return s.connections.ListFor(ctx, id)
}
