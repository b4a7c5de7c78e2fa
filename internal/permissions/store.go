package permissions

import "context"

// DirectRoleSource provides the active direct role assignments of a user.
type DirectRoleSource interface {
	// QueryDirectRoles returns ACTIVE direct role assignments for the user
	// within the application. Implementations may return assignments for any
	// environment; the resolver filters to the requested one.
	QueryDirectRoles(ctx context.Context, userID, applicationID string) ([]DirectRoleAssignment, error)
}

// MembershipSource provides the active group memberships of a user.
type MembershipSource interface {
	// QueryGroupMemberships returns ACTIVE memberships for the user within
	// the application.
	QueryGroupMemberships(ctx context.Context, userID, applicationID string) ([]GroupMembership, error)
}

// GroupRoleSource provides group records and their per-environment role
// assignments. Absence is reported via the boolean, not an error: a missing
// group or an unassigned environment is an expected outcome.
type GroupRoleSource interface {
	// GetGroup returns the group record, or false when no such group exists.
	GetGroup(ctx context.Context, groupID string) (Group, bool, error)

	// GetGroupRole returns the single ACTIVE role assignment for the group
	// and environment, or false when none exists.
	GetGroupRole(ctx context.Context, groupID string, env Environment) (GroupRoleAssignment, bool, error)
}

// RoleStore bundles the three read capabilities the resolver depends on.
type RoleStore interface {
	DirectRoleSource
	MembershipSource
	GroupRoleSource
}
