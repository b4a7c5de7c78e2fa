package groups

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

var (
	// ErrGroupDeleted indicates an operation against a soft-deleted group.
	ErrGroupDeleted = errors.New("groups: group is deleted")
	// ErrUnknownEnvironment indicates an environment outside the fixed tiers.
	ErrUnknownEnvironment = errors.New("groups: unknown environment")
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	CreateGroup(ctx context.Context, g Group) (Group, error)
	GetGroupRecord(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context, applicationID string) ([]Group, error)
	DeleteGroupCascade(ctx context.Context, id string) error
	AddMember(ctx context.Context, m Membership) (Membership, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string) ([]Membership, error)
	UpsertGroupRole(ctx context.Context, a GroupRole) (GroupRole, error)
	RemoveGroupRole(ctx context.Context, groupID string, env permissions.Environment) error
}

// RoleCatalog resolves role ids against the catalog at assignment time.
type RoleCatalog interface {
	GetRole(ctx context.Context, id string) (roles.Role, error)
}

// EventPublisher fans group changes out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Service handles group business logic.
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

// CreateGroup registers a group within an application.
func (s *Service) CreateGroup(ctx context.Context, applicationID, name, description string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, errors.New("groups: group name required")
	}
	return s.repo.CreateGroup(ctx, Group{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Name:          name,
		Description:   strings.TrimSpace(description),
		Status:        permissions.GroupActive,
	})
}

// GetGroup fetches a group by id.
func (s *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	return s.repo.GetGroupRecord(ctx, id)
}

// ListGroups returns all active groups of an application.
func (s *Service) ListGroups(ctx context.Context, applicationID string) ([]Group, error) {
	return s.repo.ListGroups(ctx, applicationID)
}

// DeleteGroup soft-deletes the group and cascades to memberships and role
// assignments in one transaction, so a deleted group can never contribute
// permissions from a half-removed state.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	if err := s.repo.DeleteGroupCascade(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, "group.deleted", map[string]string{"groupId": id})
	return nil
}

// AddMember puts a user into a group. At most one ACTIVE membership per
// (group, user) exists; re-adding after removal creates a fresh membership.
func (s *Service) AddMember(ctx context.Context, groupID, userID string) (Membership, error) {
	g, err := s.repo.GetGroupRecord(ctx, groupID)
	if err != nil {
		return Membership{}, err
	}
	if g.Status != permissions.GroupActive {
		return Membership{}, ErrGroupDeleted
	}
	m, err := s.repo.AddMember(ctx, Membership{
		ID:            uuid.NewString(),
		GroupID:       g.ID,
		UserID:        userID,
		ApplicationID: g.ApplicationID,
		Status:        permissions.MembershipActive,
	})
	if err != nil {
		return Membership{}, err
	}
	s.publish(ctx, "group.member_added", m)
	return m, nil
}

// RemoveMember soft-removes a user from a group.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.publish(ctx, "group.member_removed", map[string]string{"groupId": groupID, "userId": userID})
	return nil
}

// ListMembers returns the active memberships of a group.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]Membership, error) {
	return s.repo.ListMembers(ctx, groupID)
}

// AssignRole snapshots the role and binds it to the group for one
// environment. Assigning over an existing environment updates in place.
func (s *Service) AssignRole(ctx context.Context, groupID, environment, roleID string) (GroupRole, error) {
	env, ok := permissions.ParseEnvironment(environment)
	if !ok {
		return GroupRole{}, ErrUnknownEnvironment
	}
	g, err := s.repo.GetGroupRecord(ctx, groupID)
	if err != nil {
		return GroupRole{}, err
	}
	if g.Status != permissions.GroupActive {
		return GroupRole{}, ErrGroupDeleted
	}
	role, err := s.catalog.GetRole(ctx, roleID)
	if err != nil {
		return GroupRole{}, err
	}
	assigned, err := s.repo.UpsertGroupRole(ctx, GroupRole{
		ID:            uuid.NewString(),
		GroupID:       g.ID,
		ApplicationID: g.ApplicationID,
		Environment:   env,
		RoleID:        role.ID,
		RoleName:      role.Name,
		Permissions:   role.Permissions,
		Status:        permissions.AssignmentActive,
	})
	if err != nil {
		return GroupRole{}, err
	}
	s.publish(ctx, "group_role.assigned", assigned)
	return assigned, nil
}

// RemoveRole soft-deletes the group's role for an environment.
func (s *Service) RemoveRole(ctx context.Context, groupID, environment string) error {
	env, ok := permissions.ParseEnvironment(environment)
	if !ok {
		return ErrUnknownEnvironment
	}
	if err := s.repo.RemoveGroupRole(ctx, groupID, env); err != nil {
		return err
	}
	s.publish(ctx, "group_role.removed", map[string]string{"groupId": groupID, "environment": environment})
	return nil
}

// publish is best-effort: a failed event never rolls a group change back.
func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil && s.logger != nil {
		s.logger.Warn("publish group event", slog.String("type", eventType), slog.Any("error", err))
	}
}
