package orgs

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for organizations.
type RepositoryPort interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ArchiveOrganization(ctx context.Context, id string) error
	CreateApplication(ctx context.Context, app Application) (Application, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	ListApplications(ctx context.Context, organizationID string) ([]Application, error)
}

// Service handles organization business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateOrganization registers a new tenant.
func (s *Service) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, errors.New("orgs: organization name required")
	}
	return s.repo.CreateOrganization(ctx, Organization{
		ID:     uuid.NewString(),
		Name:   name,
		Status: OrganizationActive,
	})
}

// GetOrganization fetches a tenant by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	return s.repo.GetOrganization(ctx, id)
}

// ListOrganizations returns all active tenants.
func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.repo.ListOrganizations(ctx)
}

// ArchiveOrganization soft-deletes a tenant. Applications and their role data
// stay queryable for history.
func (s *Service) ArchiveOrganization(ctx context.Context, id string) error {
	return s.repo.ArchiveOrganization(ctx, id)
}

// CreateApplication registers an application under an organization.
func (s *Service) CreateApplication(ctx context.Context, organizationID, name string) (Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Application{}, errors.New("orgs: application name required")
	}
	org, err := s.repo.GetOrganization(ctx, organizationID)
	if err != nil {
		return Application{}, err
	}
	if org.Status != OrganizationActive {
		return Application{}, ErrNotFound
	}
	return s.repo.CreateApplication(ctx, Application{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Name:           name,
	})
}

// GetApplication fetches an application by id.
func (s *Service) GetApplication(ctx context.Context, id string) (Application, error) {
	return s.repo.GetApplication(ctx, id)
}

// ListApplications returns all applications of an organization.
func (s *Service) ListApplications(ctx context.Context, organizationID string) ([]Application, error) {
	return s.repo.ListApplications(ctx, organizationID)
}
