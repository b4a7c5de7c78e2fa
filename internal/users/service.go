package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, organizationID string) ([]User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateUser registers a directory entry.
func (s *Service) CreateUser(ctx context.Context, organizationID, email, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("users: email required")
	}
	return s.repo.CreateUser(ctx, User{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Email:          email,
		Name:           strings.TrimSpace(name),
		IsActive:       true,
	})
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all users of an organization.
func (s *Service) ListUsers(ctx context.Context, organizationID string) ([]User, error) {
	return s.repo.ListUsers(ctx, organizationID)
}

// DeactivateUser marks a user inactive. Existing role assignments stay in
// place; callers deny access based on the flag.
func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, false)
}

// ReactivateUser marks a user active again.
func (s *Service) ReactivateUser(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, true)
}
