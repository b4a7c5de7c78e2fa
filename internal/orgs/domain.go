package orgs

import "time"

// OrganizationStatus is the lifecycle state of an organization.
type OrganizationStatus string

const (
	OrganizationActive  OrganizationStatus = "ACTIVE"
	OrganizationDeleted OrganizationStatus = "DELETED"
)

// Organization is a tenant owning applications, users and groups.
type Organization struct {
	ID        string
	Name      string
	Status    OrganizationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Application is a product surface within an organization. Role assignments
// are always scoped to one application.
type Application struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
