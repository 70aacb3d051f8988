// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package connection manages the bilateral acquaintance relationship
// between two identities.
//
// A relationship is a single record keyed by the canonicalized
// unordered pair of identity IDs, so at most one live record exists per
// pair regardless of who initiated it. The requester field identifies
// who opened the currently active record; only the other party may
// accept or decline it.
package connection

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/koinonia/koinonia/internal/identity"
)

// Status is the state of a connection record. The absence of a record
// means "none": never requested, withdrawn, or superseded.
type Status string

// Connection states.
const (
	// StatusPending means one side requested and the other has not
	// responded yet.
	StatusPending Status = "pending"

	// StatusAccepted means the relationship is established bilaterally.
	StatusAccepted Status = "accepted"

	// StatusDeclined means the recipient rejected the request. A
	// declined record is terminal until a new request supersedes it in
	// place. A severed established connection is deleted, never marked
	// declined, so a future request starts fresh.
	StatusDeclined Status = "declined"
)

// IsValid reports whether s is a defined status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	default:
		return false
	}
}

// Decision is a recipient's answer to a pending request.
type Decision string

// Recipient decisions.
const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Pair is the canonicalized unordered pair of identity IDs. Lo always
// sorts before Hi, so {A,B} and {B,A} key the same record.
type Pair struct {
	Lo ulid.ULID
	Hi ulid.ULID
}

// NewPair canonicalizes two identity IDs into a Pair. Connecting an
// identity to itself violates a system invariant.
func NewPair(a, b ulid.ULID) (Pair, error) {
	switch a.Compare(b) {
	case 0:
		return Pair{}, oops.Code("CONNECTION_SELF").
			With("identity_id", a.String()).
			Wrap(identity.ErrInvariant)
	case -1:
		return Pair{Lo: a, Hi: b}, nil
	default:
		return Pair{Lo: b, Hi: a}, nil
	}
}

// Contains reports whether id is one of the pair's identities.
func (p Pair) Contains(id ulid.ULID) bool {
	return p.Lo.Compare(id) == 0 || p.Hi.Compare(id) == 0
}

// Other returns the pair member that is not id.
func (p Pair) Other(id ulid.ULID) ulid.ULID {
	if p.Lo.Compare(id) == 0 {
		return p.Hi
	}
	return p.Lo
}

// Connection is the live relationship record for one unordered pair.
type Connection struct {
	Pair      Pair
	Requester ulid.ULID
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recipient returns the party the request was addressed to.
func (c *Connection) Recipient() ulid.ULID {
	return c.Pair.Other(c.Requester)
}
