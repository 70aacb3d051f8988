// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package access

// Action is a privileged operation subject to the gate.
type Action string

// Gated actions.
const (
	// ActionDeleteOwnPost deletes a post the actor owns. Context.Owner
	// must be true; no elevated role is required.
	ActionDeleteOwnPost Action = "delete_own_post"

	// ActionDeleteReportedContent deletes any post or comment that has
	// been flagged by moderation.
	ActionDeleteReportedContent Action = "delete_reported_content"

	// ActionResolveReport transitions a report from open to resolved.
	ActionResolveReport Action = "resolve_report"

	// ActionChangeRole reassigns another identity's role.
	ActionChangeRole Action = "change_role"

	// ActionApproveRegistration approves or rejects a pending
	// registration from the admin queue.
	ActionApproveRegistration Action = "approve_registration"

	// ActionViewDirectory lists or searches the member directory.
	ActionViewDirectory Action = "view_directory"
)

// Context carries the ownership and invariant facts a decision depends
// on. The gate itself holds no state; callers supply the facts.
type Context struct {
	// Owner is true when the actor owns the target entity.
	Owner bool

	// WouldRemoveLastAdmin is true when granting the action would leave
	// the system with zero admins.
	WouldRemoveLastAdmin bool
}

// Can decides whether an actor with the given role may perform action.
// It fails closed: unknown roles and unknown actions are denied, and a
// role change that would remove the last admin is denied regardless of
// the actor's tier.
func Can(role Role, action Action, ctx Context) bool {
	if !role.IsValid() {
		return false
	}

	switch action {
	case ActionDeleteOwnPost:
		return ctx.Owner
	case ActionDeleteReportedContent:
		return role.AtLeast(RoleLeader)
	case ActionResolveReport:
		return role.AtLeast(RoleLeader)
	case ActionChangeRole:
		if ctx.WouldRemoveLastAdmin {
			return false
		}
		return role == RoleAdmin
	case ActionApproveRegistration:
		return role == RoleAdmin
	case ActionViewDirectory:
		return role.AtLeast(RoleMember)
	default:
		return false
	}
}
