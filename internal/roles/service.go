package roles

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context, applicationID string) ([]Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// Service handles role catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateRole adds a role to the application catalog.
func (s *Service) CreateRole(ctx context.Context, applicationID, name, description string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	return s.repo.CreateRole(ctx, Role{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Name:          name,
		Description:   strings.TrimSpace(description),
		Permissions:   NormalizePermissions(permissions),
	})
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns the catalog for an application.
func (s *Service) ListRoles(ctx context.Context, applicationID string) ([]Role, error) {
	return s.repo.ListRoles(ctx, applicationID)
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id, name, description string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	return s.repo.UpdateRole(ctx, Role{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: NormalizePermissions(permissions),
	})
}

// DeleteRole removes a role from the catalog.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	return s.repo.DeleteRole(ctx, id)
}

// NormalizePermissions trims, drops empties, deduplicates and sorts the
// permission strings. Stored catalogs are canonical so role snapshots diff
// cleanly.
func NormalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
