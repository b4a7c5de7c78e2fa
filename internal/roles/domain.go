package roles

import "time"

// Role is a named bundle of permission strings scoped to one application.
// Assignment records snapshot the name and permissions at assignment time,
// so editing a role does not rewrite history.
type Role struct {
	ID            string
	ApplicationID string
	Name          string
	Description   string
	Permissions   []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
