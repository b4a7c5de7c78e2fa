package groups

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

// ============================================================================
// MOCK DEPENDENCIES
// ============================================================================

type mockRepository struct {
	groups      map[string]Group
	memberships map[string]Membership
	groupRoles  map[string]GroupRole
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		groups:      make(map[string]Group),
		memberships: make(map[string]Membership),
		groupRoles:  make(map[string]GroupRole),
	}
}

func (m *mockRepository) CreateGroup(ctx context.Context, g Group) (Group, error) {
	m.groups[g.ID] = g
	return g, nil
}

func (m *mockRepository) GetGroupRecord(ctx context.Context, id string) (Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (m *mockRepository) ListGroups(ctx context.Context, applicationID string) ([]Group, error) {
	var out []Group
	for _, g := range m.groups {
		if g.ApplicationID == applicationID && g.Status == permissions.GroupActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockRepository) DeleteGroupCascade(ctx context.Context, id string) error {
	g, ok := m.groups[id]
	if !ok || g.Status != permissions.GroupActive {
		return ErrNotFound
	}
	g.Status = permissions.GroupDeleted
	m.groups[id] = g
	for k, mem := range m.memberships {
		if mem.GroupID == id && mem.Status == permissions.MembershipActive {
			mem.Status = permissions.MembershipRemoved
			m.memberships[k] = mem
		}
	}
	for k, role := range m.groupRoles {
		if role.GroupID == id && role.Status == permissions.AssignmentActive {
			role.Status = permissions.AssignmentDeleted
			m.groupRoles[k] = role
		}
	}
	return nil
}

func (m *mockRepository) AddMember(ctx context.Context, mem Membership) (Membership, error) {
	for _, existing := range m.memberships {
		if existing.GroupID == mem.GroupID && existing.UserID == mem.UserID && existing.Status == permissions.MembershipActive {
			return Membership{}, ErrDuplicateMember
		}
	}
	m.memberships[mem.ID] = mem
	return mem, nil
}

func (m *mockRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	for k, mem := range m.memberships {
		if mem.GroupID == groupID && mem.UserID == userID && mem.Status == permissions.MembershipActive {
			mem.Status = permissions.MembershipRemoved
			m.memberships[k] = mem
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepository) ListMembers(ctx context.Context, groupID string) ([]Membership, error) {
	var out []Membership
	for _, mem := range m.memberships {
		if mem.GroupID == groupID && mem.Status == permissions.MembershipActive {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockRepository) UpsertGroupRole(ctx context.Context, a GroupRole) (GroupRole, error) {
	for k, existing := range m.groupRoles {
		if existing.GroupID == a.GroupID && existing.Environment == a.Environment && existing.Status == permissions.AssignmentActive {
			existing.RoleID = a.RoleID
			existing.RoleName = a.RoleName
			existing.Permissions = a.Permissions
			m.groupRoles[k] = existing
			return existing, nil
		}
	}
	m.groupRoles[a.ID] = a
	return a, nil
}

func (m *mockRepository) RemoveGroupRole(ctx context.Context, groupID string, env permissions.Environment) error {
	for k, role := range m.groupRoles {
		if role.GroupID == groupID && role.Environment == env && role.Status == permissions.AssignmentActive {
			role.Status = permissions.AssignmentDeleted
			m.groupRoles[k] = role
			return nil
		}
	}
	return ErrNotFound
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

type capturedEvent struct {
	eventType string
	payload   any
}

type stubPublisher struct {
	events []capturedEvent
}

func (s *stubPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	s.events = append(s.events, capturedEvent{eventType: eventType, payload: payload})
	return nil
}

func newTestService() (*Service, *mockRepository, *stubPublisher) {
	repo := newMockRepository()
	catalog := &stubCatalog{roles: map[string]roles.Role{
		"role-editor": {ID: "role-editor", ApplicationID: "app1", Name: "editor", Permissions: []string{"docs:read", "docs:write"}},
	}}
	publisher := &stubPublisher{}
	return NewService(repo, catalog, publisher, slog.New(slog.DiscardHandler)), repo, publisher
}

// ============================================================================
// GROUP LIFECYCLE
// ============================================================================

func TestCreateGroupRequiresName(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateGroup(context.Background(), "app1", "   ", "")
	require.Error(t, err)
}

func TestDeleteGroupCascades(t *testing.T) {
	svc, repo, publisher := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, g.ID, "u1")
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, g.ID, "PRODUCTION", "role-editor")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteGroup(ctx, g.ID))

	stored := repo.groups[g.ID]
	assert.Equal(t, permissions.GroupDeleted, stored.Status)
	for _, mem := range repo.memberships {
		assert.Equal(t, permissions.MembershipRemoved, mem.Status)
	}
	for _, role := range repo.groupRoles {
		assert.Equal(t, permissions.AssignmentDeleted, role.Status)
	}

	var types []string
	for _, ev := range publisher.events {
		types = append(types, ev.eventType)
	}
	assert.Contains(t, types, "group.deleted")
}

func TestDeleteGroupTwiceReturnsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteGroup(ctx, g.ID))
	assert.ErrorIs(t, svc.DeleteGroup(ctx, g.ID), ErrNotFound)
}

// ============================================================================
// MEMBERSHIPS
// ============================================================================

func TestAddMemberDuplicate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, g.ID, "u1")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, g.ID, "u1")
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestAddMemberToDeletedGroup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteGroup(ctx, g.ID))

	_, err = svc.AddMember(ctx, g.ID, "u1")
	assert.ErrorIs(t, err, ErrGroupDeleted)
}

func TestReAddMemberAfterRemoval(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)

	first, err := svc.AddMember(ctx, g.ID, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.RemoveMember(ctx, g.ID, "u1"))

	second, err := svc.AddMember(ctx, g.ID, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	// The removed membership stays REMOVED permanently.
	assert.Equal(t, permissions.MembershipRemoved, repo.memberships[first.ID].Status)
	assert.Equal(t, permissions.MembershipActive, repo.memberships[second.ID].Status)
}

// ============================================================================
// GROUP ROLES
// ============================================================================

func TestAssignRoleUnknownEnvironment(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)

	_, err = svc.AssignRole(ctx, g.ID, "SANDBOX", "role-editor")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestAssignRoleUpsertsInPlace(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	catalog := &stubCatalog{roles: map[string]roles.Role{
		"role-editor": {ID: "role-editor", Name: "editor", Permissions: []string{"docs:write"}},
		"role-viewer": {ID: "role-viewer", Name: "viewer", Permissions: []string{"docs:read"}},
	}}
	svc.catalog = catalog

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)

	first, err := svc.AssignRole(ctx, g.ID, "STAGING", "role-editor")
	require.NoError(t, err)
	second, err := svc.AssignRole(ctx, g.ID, "STAGING", "role-viewer")
	require.NoError(t, err)

	// Same record updated, not a duplicate.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "role-viewer", second.RoleID)

	active := 0
	for _, role := range repo.groupRoles {
		if role.GroupID == g.ID && role.Environment == permissions.EnvStaging && role.Status == permissions.AssignmentActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestAssignRoleSnapshotsCatalog(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)

	assigned, err := svc.AssignRole(ctx, g.ID, "PRODUCTION", "role-editor")
	require.NoError(t, err)
	assert.Equal(t, "editor", assigned.RoleName)
	assert.Equal(t, []string{"docs:read", "docs:write"}, assigned.Permissions)
}

func TestRemoveRoleNotAssigned(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "app1", "platform", "")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.RemoveRole(ctx, g.ID, "PRODUCTION"), ErrNotFound)
}
