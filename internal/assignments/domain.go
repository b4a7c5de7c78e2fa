package assignments

import (
	"time"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
)

// Assignment binds a role straight to a user for one application and
// environment. Permissions are snapshotted from the role catalog at
// assignment time. Removal is a soft delete; a user may hold any number of
// simultaneous ACTIVE assignments for the same application and environment.
type Assignment struct {
	ID            string
	UserID        string
	ApplicationID string
	Environment   permissions.Environment
	RoleID        string
	RoleName      string
	Permissions   []string
	Status        permissions.AssignmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
