// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package identity

import "errors"

// Sentinel error kinds shared by the core services. Services wrap these
// with oops codes and context; the transport layer maps them to uniform
// user-visible responses.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredential is returned on any failed login. It never
	// distinguishes an unknown handle from a wrong password or a
	// malformed stored hash.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrUnauthorized is returned when the role gate denies an action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when a precondition was invalidated by a
	// concurrent writer. Callers should re-read and retry.
	ErrConflict = errors.New("conflicting state")

	// ErrInvariant is returned when an operation would violate a system
	// invariant, such as removing the last admin or connecting an
	// identity to itself.
	ErrInvariant = errors.New("invariant violation")

	// ErrPendingApproval is returned when an unapproved identity
	// attempts to log in.
	ErrPendingApproval = errors.New("registration pending approval")
)
