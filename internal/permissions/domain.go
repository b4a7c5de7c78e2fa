package permissions

import "time"

// Environment is the deployment tier a role assignment is scoped to.
type Environment string

const (
	EnvProduction  Environment = "PRODUCTION"
	EnvStaging     Environment = "STAGING"
	EnvDevelopment Environment = "DEVELOPMENT"
	EnvTest        Environment = "TEST"
	EnvPreview     Environment = "PREVIEW"
)

// ParseEnvironment returns the Environment for raw, or false when raw is not
// one of the known tiers.
func ParseEnvironment(raw string) (Environment, bool) {
	switch Environment(raw) {
	case EnvProduction, EnvStaging, EnvDevelopment, EnvTest, EnvPreview:
		return Environment(raw), true
	}
	return "", false
}

// AssignmentStatus is the lifecycle state of a role assignment.
type AssignmentStatus string

const (
	AssignmentActive  AssignmentStatus = "ACTIVE"
	AssignmentDeleted AssignmentStatus = "DELETED"
)

// MembershipStatus is the lifecycle state of a group membership.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "ACTIVE"
	MembershipRemoved MembershipStatus = "REMOVED"
)

// GroupStatus is the lifecycle state of a group.
type GroupStatus string

const (
	GroupActive  GroupStatus = "ACTIVE"
	GroupDeleted GroupStatus = "DELETED"
)

// DirectRoleAssignment binds a role straight to a user for one
// application and environment.
type DirectRoleAssignment struct {
	ID            string
	UserID        string
	ApplicationID string
	Environment   Environment
	RoleID        string
	RoleName      string
	Permissions   []string
	Status        AssignmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GroupMembership binds a user to a group within an application.
type GroupMembership struct {
	ID            string
	GroupID       string
	UserID        string
	ApplicationID string
	Status        MembershipStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GroupRoleAssignment binds a role to a group for one application and
// environment. At most one ACTIVE assignment exists per (group, environment).
type GroupRoleAssignment struct {
	ID            string
	GroupID       string
	ApplicationID string
	Environment   Environment
	RoleID        string
	RoleName      string
	Permissions   []string
	Status        AssignmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Group is the subset of a group record the resolver needs to decide whether
// group-derived roles still count.
type Group struct {
	ID            string
	ApplicationID string
	Name          string
	Status        GroupStatus
}

// RoleGrant is one contributing role in a resolution result, either a direct
// assignment or a group-derived one.
type RoleGrant struct {
	AssignmentID string      `json:"assignmentId"`
	RoleID       string      `json:"roleId"`
	RoleName     string      `json:"roleName"`
	GroupID      string      `json:"groupId,omitempty"`
	Environment  Environment `json:"environment"`
	Permissions  []string    `json:"permissions"`
}

// EffectivePermissionSet is the computed output of one resolution call. It is
// derived fresh on every call and never persisted.
type EffectivePermissionSet struct {
	UserID               string      `json:"userId"`
	ApplicationID        string      `json:"applicationId"`
	Environment          Environment `json:"environment"`
	DirectRoles          []RoleGrant `json:"directRoles"`
	GroupRoles           []RoleGrant `json:"groupRoles"`
	EffectivePermissions []string    `json:"effectivePermissions"`
}
