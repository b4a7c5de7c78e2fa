package perf

import (
	"context"
	"fmt"
	"testing"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
)

// benchStore serves a synthetic access graph with fanout groups per user,
// each carrying a role with a handful of permissions.
type benchStore struct {
	fanout int
}

func (s benchStore) QueryDirectRoles(_ context.Context, userID, applicationID string) ([]permissions.DirectRoleAssignment, error) {
	return []permissions.DirectRoleAssignment{{
		ID:            "asg-direct",
		UserID:        userID,
		ApplicationID: applicationID,
		Environment:   permissions.EnvProduction,
		RoleID:        "role-direct",
		RoleName:      "direct",
		Permissions:   []string{"orders:read", "orders:write", "catalog:read"},
		Status:        permissions.AssignmentActive,
	}}, nil
}

func (s benchStore) QueryGroupMemberships(_ context.Context, userID, applicationID string) ([]permissions.GroupMembership, error) {
	out := make([]permissions.GroupMembership, 0, s.fanout)
	for i := 0; i < s.fanout; i++ {
		out = append(out, permissions.GroupMembership{
			ID:            fmt.Sprintf("mem-%d", i),
			GroupID:       fmt.Sprintf("grp-%d", i),
			UserID:        userID,
			ApplicationID: applicationID,
			Status:        permissions.MembershipActive,
		})
	}
	return out, nil
}

func (s benchStore) GetGroup(_ context.Context, groupID string) (permissions.Group, bool, error) {
	return permissions.Group{ID: groupID, Status: permissions.GroupActive}, true, nil
}

func (s benchStore) GetGroupRole(_ context.Context, groupID string, env permissions.Environment) (permissions.GroupRoleAssignment, bool, error) {
	return permissions.GroupRoleAssignment{
		ID:          "grole-" + groupID,
		GroupID:     groupID,
		Environment: env,
		RoleID:      "role-" + groupID,
		RoleName:    groupID,
		Permissions: []string{"catalog:read", "reports:" + groupID},
		Status:      permissions.AssignmentActive,
	}, true, nil
}

func BenchmarkResolve(b *testing.B) {
	for _, fanout := range []int{1, 8, 64} {
		b.Run(fmt.Sprintf("groups-%d", fanout), func(b *testing.B) {
			resolver := permissions.NewResolver(benchStore{fanout: fanout})
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := resolver.Resolve(ctx, "user-1", "app-1", permissions.EnvProduction); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
