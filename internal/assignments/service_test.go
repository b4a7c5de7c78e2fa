package assignments

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

type mockRepository struct {
	assignments map[string]Assignment
	order       []string
}

func newMockRepository() *mockRepository {
	return &mockRepository{assignments: make(map[string]Assignment)}
}

func (m *mockRepository) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	m.assignments[a.ID] = a
	m.order = append(m.order, a.ID)
	return a, nil
}

func (m *mockRepository) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *mockRepository) ListByUser(ctx context.Context, userID, applicationID string) ([]Assignment, error) {
	var out []Assignment
	for _, id := range m.order {
		a := m.assignments[id]
		if a.UserID == userID && a.ApplicationID == applicationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepository) RevokeAssignment(ctx context.Context, id string) error {
	a, ok := m.assignments[id]
	if !ok || a.Status != permissions.AssignmentActive {
		return ErrNotFound
	}
	a.Status = permissions.AssignmentDeleted
	m.assignments[id] = a
	return nil
}

type stubCatalog struct {
	roles map[string]roles.Role
}

func (s *stubCatalog) GetRole(ctx context.Context, id string) (roles.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return roles.Role{}, roles.ErrNotFound
	}
	return role, nil
}

type stubPublisher struct {
	types []string
}

func (s *stubPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	s.types = append(s.types, eventType)
	return nil
}

func newTestService() (*Service, *mockRepository, *stubPublisher) {
	repo := newMockRepository()
	catalog := &stubCatalog{roles: map[string]roles.Role{
		"role-admin": {ID: "role-admin", Name: "admin", Permissions: []string{"users:manage", "orders:read"}},
	}}
	publisher := &stubPublisher{}
	return NewService(repo, catalog, publisher, slog.New(slog.DiscardHandler)), repo, publisher
}

func TestAssignSnapshotsRole(t *testing.T) {
	svc, _, publisher := newTestService()

	a, err := svc.Assign(context.Background(), "u1", "app1", "PRODUCTION", "role-admin")
	require.NoError(t, err)

	assert.Equal(t, permissions.EnvProduction, a.Environment)
	assert.Equal(t, "admin", a.RoleName)
	assert.Equal(t, []string{"users:manage", "orders:read"}, a.Permissions)
	assert.Equal(t, permissions.AssignmentActive, a.Status)
	assert.Equal(t, []string{"role_assignment.created"}, publisher.types)
}

func TestAssignUnknownEnvironment(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Assign(context.Background(), "u1", "app1", "production", "role-admin")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestAssignUnknownRole(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Assign(context.Background(), "u1", "app1", "TEST", "missing")
	assert.ErrorIs(t, err, roles.ErrNotFound)
}

func TestAssignSameRoleTwiceComposes(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Assign(ctx, "u1", "app1", "STAGING", "role-admin")
	require.NoError(t, err)
	second, err := svc.Assign(ctx, "u1", "app1", "STAGING", "role-admin")
	require.NoError(t, err)

	// Multiple ACTIVE assignments are legal and additive.
	assert.NotEqual(t, first.ID, second.ID)
	list, err := repo.ListByUser(ctx, "u1", "app1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRevokeSoftDeletes(t *testing.T) {
	svc, repo, publisher := newTestService()
	ctx := context.Background()

	a, err := svc.Assign(ctx, "u1", "app1", "PRODUCTION", "role-admin")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, a.ID))

	stored := repo.assignments[a.ID]
	assert.Equal(t, permissions.AssignmentDeleted, stored.Status)
	assert.Equal(t, []string{"role_assignment.created", "role_assignment.revoked"}, publisher.types)

	// Revoking again is a no-op failure, not a hard delete.
	assert.ErrorIs(t, svc.Revoke(ctx, a.ID), ErrNotFound)
}
