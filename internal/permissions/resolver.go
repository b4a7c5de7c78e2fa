package permissions

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultGroupLookupLimit bounds how many per-group role lookups run at once.
const defaultGroupLookupLimit = 4

// Resolver computes effective permission sets. It holds no mutable state and
// is safe for concurrent use.
type Resolver struct {
	store            RoleStore
	groupLookupLimit int
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithGroupLookupLimit overrides the concurrency bound on per-group role
// lookups.
func WithGroupLookupLimit(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.groupLookupLimit = n
		}
	}
}

// NewResolver constructs a Resolver over the given role store.
func NewResolver(store RoleStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:            store,
		groupLookupLimit: defaultGroupLookupLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the effective permission set for the user within the
// application and environment. The result unions every permission string
// reachable through an ACTIVE direct assignment or an ACTIVE membership in a
// non-deleted group holding an ACTIVE role for the environment. Output is
// deterministic: effective permissions are deduplicated and sorted
// lexicographically, and the contribution lists follow source record order.
//
// Any fetch failure aborts the call; no partial set is ever returned.
func (r *Resolver) Resolve(ctx context.Context, userID, applicationID string, env Environment) (EffectivePermissionSet, error) {
	if err := validateInput(userID, applicationID, env); err != nil {
		return EffectivePermissionSet{}, err
	}

	var (
		direct      []DirectRoleAssignment
		groupGrants []RoleGrant
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.store.QueryDirectRoles(gctx, userID, applicationID)
		if err != nil {
			return &DataAccessError{Op: "query direct roles", Err: err}
		}
		direct = rows
		return nil
	})
	g.Go(func() error {
		grants, err := r.resolveGroupGrants(gctx, userID, applicationID, env)
		if err != nil {
			return err
		}
		groupGrants = grants
		return nil
	})
	if err := g.Wait(); err != nil {
		return EffectivePermissionSet{}, err
	}

	result := EffectivePermissionSet{
		UserID:        userID,
		ApplicationID: applicationID,
		Environment:   env,
		DirectRoles:   make([]RoleGrant, 0, len(direct)),
		GroupRoles:    groupGrants,
	}

	union := make(map[string]struct{})
	for _, a := range direct {
		// Stores are expected to pre-filter, but a record for another
		// application or environment must never contribute.
		if a.Status != AssignmentActive || a.UserID != userID {
			continue
		}
		if a.ApplicationID != applicationID || a.Environment != env {
			continue
		}
		result.DirectRoles = append(result.DirectRoles, RoleGrant{
			AssignmentID: a.ID,
			RoleID:       a.RoleID,
			RoleName:     a.RoleName,
			Environment:  a.Environment,
			Permissions:  a.Permissions,
		})
		for _, p := range a.Permissions {
			union[p] = struct{}{}
		}
	}
	for _, grant := range groupGrants {
		for _, p := range grant.Permissions {
			union[p] = struct{}{}
		}
	}

	result.EffectivePermissions = sortedPermissions(union)
	return result, nil
}

// resolveGroupGrants fetches the user's memberships and the role assigned to
// each member group for the environment. Grants are returned in membership
// order so that concurrent lookups cannot perturb the output.
func (r *Resolver) resolveGroupGrants(ctx context.Context, userID, applicationID string, env Environment) ([]RoleGrant, error) {
	memberships, err := r.store.QueryGroupMemberships(ctx, userID, applicationID)
	if err != nil {
		return nil, &DataAccessError{Op: "query group memberships", Err: err}
	}

	slots := make([]*RoleGrant, len(memberships))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.groupLookupLimit)
	for i, m := range memberships {
		if m.Status != MembershipActive || m.ApplicationID != applicationID {
			continue
		}
		g.Go(func() error {
			group, ok, err := r.store.GetGroup(gctx, m.GroupID)
			if err != nil {
				return &DataAccessError{Op: "get group", Err: err}
			}
			// A deleted or vanished group contributes nothing.
			if !ok || group.Status != GroupActive {
				return nil
			}
			role, ok, err := r.store.GetGroupRole(gctx, m.GroupID, env)
			if err != nil {
				return &DataAccessError{Op: "get group role", Err: err}
			}
			if !ok || role.Status != AssignmentActive || role.Environment != env {
				return nil
			}
			slots[i] = &RoleGrant{
				AssignmentID: role.ID,
				RoleID:       role.RoleID,
				RoleName:     role.RoleName,
				GroupID:      role.GroupID,
				Environment:  role.Environment,
				Permissions:  role.Permissions,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grants := make([]RoleGrant, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			grants = append(grants, *slot)
		}
	}
	return grants, nil
}

func validateInput(userID, applicationID string, env Environment) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Code: CodeInvalidUserID, Message: "userId is required"}
	}
	if strings.TrimSpace(applicationID) == "" {
		return &ValidationError{Code: CodeInvalidApplicationID, Message: "applicationId is required"}
	}
	if _, ok := ParseEnvironment(string(env)); !ok {
		return &ValidationError{Code: CodeInvalidEnvironment, Message: "environment must be one of PRODUCTION, STAGING, DEVELOPMENT, TEST, PREVIEW"}
	}
	return nil
}

// sortedPermissions flattens the accumulation set into the canonical output
// order. Sorting is case-sensitive and byte-wise so repeated calls yield
// identical sequences regardless of map iteration order.
func sortedPermissions(union map[string]struct{}) []string {
	perms := make([]string, 0, len(union))
	for p := range union {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}
