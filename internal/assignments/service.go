package assignments

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

// ErrUnknownEnvironment indicates an environment outside the fixed tiers.
var ErrUnknownEnvironment = errors.New("assignments: unknown environment")

// RepositoryPort defines data access methods for assignments.
type RepositoryPort interface {
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListByUser(ctx context.Context, userID, applicationID string) ([]Assignment, error)
	RevokeAssignment(ctx context.Context, id string) error
}

// RoleCatalog resolves role ids against the catalog at assignment time.
type RoleCatalog interface {
	GetRole(ctx context.Context, id string) (roles.Role, error)
}

// EventPublisher fans assignment changes out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Service handles direct role assignment business logic.
type Service struct {
	repo    RepositoryPort
	catalog RoleCatalog
	events  EventPublisher
	logger  *slog.Logger
}

// NewService builds Service instance. events may be nil.
func NewService(repo RepositoryPort, catalog RoleCatalog, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, events: events, logger: logger}
}

// Assign snapshots the role and binds it to the user. Multiple simultaneous
// ACTIVE assignments for the same user, application and environment are legal
// and compose additively during resolution.
func (s *Service) Assign(ctx context.Context, userID, applicationID, environment, roleID string) (Assignment, error) {
	env, ok := permissions.ParseEnvironment(environment)
	if !ok {
		return Assignment{}, ErrUnknownEnvironment
	}
	role, err := s.catalog.GetRole(ctx, roleID)
	if err != nil {
		return Assignment{}, err
	}
	created, err := s.repo.CreateAssignment(ctx, Assignment{
		ID:            uuid.NewString(),
		UserID:        userID,
		ApplicationID: applicationID,
		Environment:   env,
		RoleID:        role.ID,
		RoleName:      role.Name,
		Permissions:   role.Permissions,
		Status:        permissions.AssignmentActive,
	})
	if err != nil {
		return Assignment{}, err
	}
	s.publish(ctx, "role_assignment.created", created)
	return created, nil
}

// Revoke soft-deletes an assignment. The record stays queryable for history.
func (s *Service) Revoke(ctx context.Context, id string) error {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.RevokeAssignment(ctx, id); err != nil {
		return err
	}
	a.Status = permissions.AssignmentDeleted
	s.publish(ctx, "role_assignment.revoked", a)
	return nil
}

// ListByUser returns the assignment history of a user within an application.
func (s *Service) ListByUser(ctx context.Context, userID, applicationID string) ([]Assignment, error) {
	return s.repo.ListByUser(ctx, userID, applicationID)
}

// publish is best-effort: a failed event never rolls an assignment back.
func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil && s.logger != nil {
		s.logger.Warn("publish assignment event", slog.String("type", eventType), slog.Any("error", err))
	}
}
