package permissions

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// IN-MEMORY ROLE STORE
// ============================================================================

type memoryStore struct {
	direct      []DirectRoleAssignment
	memberships []GroupMembership
	groups      map[string]Group
	groupRoles  []GroupRoleAssignment

	directErr     error
	membershipErr error
	groupErr      error
	groupRoleErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{groups: make(map[string]Group)}
}

func (s *memoryStore) QueryDirectRoles(ctx context.Context, userID, applicationID string) ([]DirectRoleAssignment, error) {
	if s.directErr != nil {
		return nil, s.directErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []DirectRoleAssignment
	for _, a := range s.direct {
		if a.UserID == userID && a.ApplicationID == applicationID && a.Status == AssignmentActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memoryStore) QueryGroupMemberships(ctx context.Context, userID, applicationID string) ([]GroupMembership, error) {
	if s.membershipErr != nil {
		return nil, s.membershipErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []GroupMembership
	for _, m := range s.memberships {
		if m.UserID == userID && m.ApplicationID == applicationID && m.Status == MembershipActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) GetGroup(ctx context.Context, groupID string) (Group, bool, error) {
	if s.groupErr != nil {
		return Group{}, false, s.groupErr
	}
	group, ok := s.groups[groupID]
	return group, ok, nil
}

func (s *memoryStore) GetGroupRole(ctx context.Context, groupID string, env Environment) (GroupRoleAssignment, bool, error) {
	if s.groupRoleErr != nil {
		return GroupRoleAssignment{}, false, s.groupRoleErr
	}
	for _, role := range s.groupRoles {
		if role.GroupID == groupID && role.Environment == env && role.Status == AssignmentActive {
			return role, true, nil
		}
	}
	return GroupRoleAssignment{}, false, nil
}

func (s *memoryStore) addGroup(id string, status GroupStatus) {
	s.groups[id] = Group{ID: id, ApplicationID: "app1", Name: "group " + id, Status: status}
}

// ============================================================================
// RESOLUTION
// ============================================================================

func TestResolveEndToEnd(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{{
		ID:            "dra-1",
		UserID:        "u1",
		ApplicationID: "app1",
		Environment:   EnvProduction,
		RoleID:        "role-viewer",
		RoleName:      "viewer",
		Permissions:   []string{"orders:read"},
		Status:        AssignmentActive,
	}}
	store.addGroup("g1", GroupActive)
	store.memberships = []GroupMembership{{
		ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive,
	}}
	store.groupRoles = []GroupRoleAssignment{{
		ID:            "gra-1",
		GroupID:       "g1",
		ApplicationID: "app1",
		Environment:   EnvProduction,
		RoleID:        "role-editor",
		RoleName:      "editor",
		Permissions:   []string{"orders:write", "orders:read"},
		Status:        AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Equal(t, "u1", set.UserID)
	assert.Equal(t, "app1", set.ApplicationID)
	assert.Equal(t, EnvProduction, set.Environment)
	assert.Equal(t, []string{"orders:read", "orders:write"}, set.EffectivePermissions)
	require.Len(t, set.DirectRoles, 1)
	assert.Equal(t, "dra-1", set.DirectRoles[0].AssignmentID)
	require.Len(t, set.GroupRoles, 1)
	assert.Equal(t, "gra-1", set.GroupRoles[0].AssignmentID)
	assert.Equal(t, "g1", set.GroupRoles[0].GroupID)
}

func TestResolveDeterministic(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{
		{ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvStaging, RoleID: "r1", RoleName: "ops", Permissions: []string{"deploy:run", "logs:read"}, Status: AssignmentActive},
		{ID: "dra-2", UserID: "u1", ApplicationID: "app1", Environment: EnvStaging, RoleID: "r2", RoleName: "audit", Permissions: []string{"logs:read", "audit:read"}, Status: AssignmentActive},
	}
	for _, id := range []string{"g1", "g2", "g3"} {
		store.addGroup(id, GroupActive)
		store.memberships = append(store.memberships, GroupMembership{
			ID: "gm-" + id, GroupID: id, UserID: "u1", ApplicationID: "app1", Status: MembershipActive,
		})
		store.groupRoles = append(store.groupRoles, GroupRoleAssignment{
			ID: "gra-" + id, GroupID: id, ApplicationID: "app1", Environment: EnvStaging,
			RoleID: "role-" + id, RoleName: id, Permissions: []string{id + ":read", "shared:ping"}, Status: AssignmentActive,
		})
	}

	resolver := NewResolver(store)
	first, err := resolver.Resolve(context.Background(), "u1", "app1", EnvStaging)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		next, err := resolver.Resolve(context.Background(), "u1", "app1", EnvStaging)
		require.NoError(t, err)
		assert.Equal(t, first.EffectivePermissions, next.EffectivePermissions)
		assert.Equal(t, first.DirectRoles, next.DirectRoles)
		assert.Equal(t, first.GroupRoles, next.GroupRoles)
	}
}

func TestResolveUnionAndDeduplication(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{{
		ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r1", RoleName: "reader", Permissions: []string{"read:x", "read:y"}, Status: AssignmentActive,
	}}
	store.addGroup("g1", GroupActive)
	store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive}}
	store.groupRoles = []GroupRoleAssignment{{
		ID: "gra-1", GroupID: "g1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r2", RoleName: "writer", Permissions: []string{"read:x", "write:x"}, Status: AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Equal(t, []string{"read:x", "read:y", "write:x"}, set.EffectivePermissions)
}

func TestResolveDirectRolePriority(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{{
		ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r1", RoleName: "admin", Permissions: []string{"admin:all", "read:x"}, Status: AssignmentActive,
	}}
	// Group path contributes nothing: membership exists but the group holds
	// no role for the requested environment.
	store.addGroup("g1", GroupActive)
	store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Contains(t, set.EffectivePermissions, "admin:all")
	assert.Contains(t, set.EffectivePermissions, "read:x")
	assert.Empty(t, set.GroupRoles)
}

func TestResolveSortedness(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{{
		ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r1", RoleName: "mixed", Permissions: []string{"zeta:do", "Alpha:do", "alpha:do", "beta:do"}, Status: AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	sorted := append([]string(nil), set.EffectivePermissions...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, set.EffectivePermissions)
	// Case-sensitive byte order: uppercase sorts before lowercase.
	assert.Equal(t, []string{"Alpha:do", "alpha:do", "beta:do", "zeta:do"}, set.EffectivePermissions)
}

func TestResolveEmptyInputs(t *testing.T) {
	set, err := NewResolver(newMemoryStore()).Resolve(context.Background(), "ghost", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Empty(t, set.EffectivePermissions)
	assert.Empty(t, set.DirectRoles)
	assert.Empty(t, set.GroupRoles)
}

func TestResolveMultiGroupUnion(t *testing.T) {
	store := newMemoryStore()
	store.addGroup("gA", GroupActive)
	store.addGroup("gB", GroupActive)
	store.memberships = []GroupMembership{
		{ID: "gm-1", GroupID: "gA", UserID: "u1", ApplicationID: "app1", Status: MembershipActive},
		{ID: "gm-2", GroupID: "gB", UserID: "u1", ApplicationID: "app1", Status: MembershipActive},
	}
	store.groupRoles = []GroupRoleAssignment{
		{ID: "gra-a", GroupID: "gA", ApplicationID: "app1", Environment: EnvProduction, RoleID: "rA", RoleName: "a", Permissions: []string{"read:x", "write:x"}, Status: AssignmentActive},
		{ID: "gra-b", GroupID: "gB", ApplicationID: "app1", Environment: EnvProduction, RoleID: "rB", RoleName: "b", Permissions: []string{"read:y"}, Status: AssignmentActive},
	}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Equal(t, []string{"read:x", "read:y", "write:x"}, set.EffectivePermissions)
	require.Len(t, set.GroupRoles, 2)
	assert.Equal(t, "gA", set.GroupRoles[0].GroupID)
	assert.Equal(t, "gB", set.GroupRoles[1].GroupID)
}

func TestResolveDeletedGroupExcluded(t *testing.T) {
	store := newMemoryStore()
	store.addGroup("g1", GroupDeleted)
	store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive}}
	// The role record survives the soft delete but must not contribute.
	store.groupRoles = []GroupRoleAssignment{{
		ID: "gra-1", GroupID: "g1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r1", RoleName: "ghost", Permissions: []string{"secret:read"}, Status: AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Empty(t, set.EffectivePermissions)
	assert.Empty(t, set.GroupRoles)
}

func TestResolveEnvironmentIsolation(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{{
		ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvStaging,
		RoleID: "r1", RoleName: "stager", Permissions: []string{"deploy:staging"}, Status: AssignmentActive,
	}}
	store.addGroup("g1", GroupActive)
	store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive}}
	store.groupRoles = []GroupRoleAssignment{{
		ID: "gra-1", GroupID: "g1", ApplicationID: "app1", Environment: EnvStaging,
		RoleID: "r2", RoleName: "staging group", Permissions: []string{"logs:staging"}, Status: AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Empty(t, set.EffectivePermissions)
	assert.Empty(t, set.DirectRoles)
	assert.Empty(t, set.GroupRoles)
}

func TestResolveMultipleDirectRolesCompose(t *testing.T) {
	store := newMemoryStore()
	store.direct = []DirectRoleAssignment{
		{ID: "dra-1", UserID: "u1", ApplicationID: "app1", Environment: EnvProduction, RoleID: "r1", RoleName: "reader", Permissions: []string{"read:x"}, Status: AssignmentActive},
		{ID: "dra-2", UserID: "u1", ApplicationID: "app1", Environment: EnvProduction, RoleID: "r2", RoleName: "writer", Permissions: []string{"write:x"}, Status: AssignmentActive},
	}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)

	assert.Equal(t, []string{"read:x", "write:x"}, set.EffectivePermissions)
	assert.Len(t, set.DirectRoles, 2)
}

func TestResolveSkipsRemovedMembership(t *testing.T) {
	store := newMemoryStore()
	store.addGroup("g1", GroupActive)
	store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipRemoved}}
	store.groupRoles = []GroupRoleAssignment{{
		ID: "gra-1", GroupID: "g1", ApplicationID: "app1", Environment: EnvProduction,
		RoleID: "r1", RoleName: "member", Permissions: []string{"read:x"}, Status: AssignmentActive,
	}}

	set, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
	require.NoError(t, err)
	assert.Empty(t, set.EffectivePermissions)
}

// ============================================================================
// VALIDATION AND FAILURE PATHS
// ============================================================================

func TestResolveValidation(t *testing.T) {
	resolver := NewResolver(newMemoryStore())

	cases := []struct {
		name   string
		userID string
		appID  string
		env    Environment
		code   string
	}{
		{name: "missing user", userID: "", appID: "app1", env: EnvProduction, code: CodeInvalidUserID},
		{name: "blank user", userID: "   ", appID: "app1", env: EnvProduction, code: CodeInvalidUserID},
		{name: "missing application", userID: "u1", appID: "", env: EnvProduction, code: CodeInvalidApplicationID},
		{name: "unknown environment", userID: "u1", appID: "app1", env: "QA", code: CodeInvalidEnvironment},
		{name: "empty environment", userID: "u1", appID: "app1", env: "", code: CodeInvalidEnvironment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tc.userID, tc.appID, tc.env)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.code, verr.Code)
		})
	}
}

func TestResolveFetchFailureAbortsCall(t *testing.T) {
	boom := errors.New("store unavailable")

	t.Run("direct roles", func(t *testing.T) {
		store := newMemoryStore()
		store.directErr = boom
		_, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
		var derr *DataAccessError
		require.ErrorAs(t, err, &derr)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("memberships", func(t *testing.T) {
		store := newMemoryStore()
		store.membershipErr = boom
		_, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("group role lookup", func(t *testing.T) {
		store := newMemoryStore()
		store.addGroup("g1", GroupActive)
		store.memberships = []GroupMembership{{ID: "gm-1", GroupID: "g1", UserID: "u1", ApplicationID: "app1", Status: MembershipActive}}
		store.groupRoleErr = boom
		_, err := NewResolver(store).Resolve(context.Background(), "u1", "app1", EnvProduction)
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolveCancelledContext(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(store).Resolve(ctx, "u1", "app1", EnvProduction)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseEnvironment(t *testing.T) {
	for _, raw := range []string{"PRODUCTION", "STAGING", "DEVELOPMENT", "TEST", "PREVIEW"} {
		env, ok := ParseEnvironment(raw)
		assert.True(t, ok)
		assert.Equal(t, Environment(raw), env)
	}
	_, ok := ParseEnvironment("production")
	assert.False(t, ok)
}
