// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package access provides role-based authorization for Koinonia.
//
// Every privileged mutation in the service (post deletion, report
// resolution, role changes, connection transitions) passes through the
// same gate: Can(role, action, Context). The gate is a pure function
// over a closed role enumeration so that adding an action forces a
// review of every role's permission.
package access

// Role is an identity's authorization tier.
type Role string

// The three authorization tiers, in ascending order of privilege.
const (
	RoleMember Role = "member"
	RoleLeader Role = "leader"
	RoleAdmin  Role = "admin"
)

// roleLevel orders roles for minimum-tier checks. Unknown roles map to -1
// and never satisfy any minimum.
func roleLevel(r Role) int {
	switch r {
	case RoleMember:
		return 0
	case RoleLeader:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return roleLevel(r) >= 0
}

// AtLeast reports whether r meets the minimum tier min.
func (r Role) AtLeast(min Role) bool {
	level := roleLevel(r)
	return level >= 0 && level >= roleLevel(min)
}

// ParseRole parses a stored role string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// AllRoles returns the defined roles in ascending privilege order.
func AllRoles() []Role {
	return []Role{RoleMember, RoleLeader, RoleAdmin}
}
