package users

import "time"

// User is a directory entry. Authentication is owned elsewhere; Gatehouse
// only tracks identity and active state for permission resolution targets.
type User struct {
	ID             string
	OrganizationID string
	Email          string
	Name           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
