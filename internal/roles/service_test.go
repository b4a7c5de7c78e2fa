package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRoleRepo struct {
	roles map[string]Role
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{roles: map[string]Role{}}
}

func (m *memoryRoleRepo) CreateRole(_ context.Context, role Role) (Role, error) {
	m.roles[role.ID] = role
	return role, nil
}

func (m *memoryRoleRepo) GetRole(_ context.Context, id string) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryRoleRepo) ListRoles(_ context.Context, applicationID string) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		if r.ApplicationID == applicationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRoleRepo) UpdateRole(_ context.Context, role Role) (Role, error) {
	existing, ok := m.roles[role.ID]
	if !ok {
		return Role{}, ErrNotFound
	}
	existing.Name = role.Name
	existing.Description = role.Description
	existing.Permissions = role.Permissions
	m.roles[role.ID] = existing
	return existing, nil
}

func (m *memoryRoleRepo) DeleteRole(_ context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func TestCreateRoleCanonicalizesPermissions(t *testing.T) {
	svc := NewService(newMemoryRoleRepo())

	created, err := svc.CreateRole(context.Background(), "app-1", " editor ", "",
		[]string{"orders:write", " catalog:read ", "orders:write", "", "catalog:read"})
	require.NoError(t, err)

	assert.Equal(t, "editor", created.Name)
	assert.Equal(t, []string{"catalog:read", "orders:write"}, created.Permissions)
}

func TestCreateRoleRequiresName(t *testing.T) {
	svc := NewService(newMemoryRoleRepo())

	_, err := svc.CreateRole(context.Background(), "app-1", "  ", "", nil)
	require.Error(t, err)
}

func TestUpdateRoleDoesNotTouchOtherFields(t *testing.T) {
	repo := newMemoryRoleRepo()
	svc := NewService(repo)

	created, err := svc.CreateRole(context.Background(), "app-1", "editor", "catalog access", []string{"catalog:read"})
	require.NoError(t, err)

	updated, err := svc.UpdateRole(context.Background(), created.ID, "editor", "catalog access", []string{"catalog:read", "catalog:write"})
	require.NoError(t, err)
	assert.Equal(t, created.ApplicationID, updated.ApplicationID)
	assert.Equal(t, []string{"catalog:read", "catalog:write"}, updated.Permissions)
}

func TestNormalizePermissions(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"dedupe and sort", []string{"b:x", "a:y", "b:x"}, []string{"a:y", "b:x"}},
		{"case sensitive", []string{"Alpha:do", "alpha:do"}, []string{"Alpha:do", "alpha:do"}},
		{"blank entries dropped", []string{" ", "", "a:y"}, []string{"a:y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePermissions(tc.in))
		})
	}
}
