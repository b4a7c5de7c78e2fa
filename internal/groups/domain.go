package groups

import (
	"time"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
)

// Group collects users so a role can be granted to all of them at once.
// Deletion is soft and cascades: memberships flip to REMOVED and role
// assignments to DELETED in the same transaction.
type Group struct {
	ID            string
	ApplicationID string
	Name          string
	Description   string
	Status        permissions.GroupStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Membership and GroupRole reuse the canonical record shapes the resolver
// consumes; this package owns their lifecycle.
type (
	Membership = permissions.GroupMembership
	GroupRole  = permissions.GroupRoleAssignment
)
