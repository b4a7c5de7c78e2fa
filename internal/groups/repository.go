package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("groups: not found")
	// ErrDuplicateMember indicates the user already holds an ACTIVE membership.
	ErrDuplicateMember = errors.New("groups: user already a member")
)

// Repository provides PostgreSQL backed persistence. It doubles as the
// resolver's membership and group-role source.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, g Group) (Group, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO groups (id, application_id, name, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, application_id, name, description, status, created_at, updated_at`,
		g.ID, g.ApplicationID, g.Name, g.Description, g.Status)
	out, err := scanGroup(row)
	if err != nil {
		return Group{}, fmt.Errorf("groups: create: %w", err)
	}
	return out, nil
}

// GetGroupRecord fetches the full group record by id.
func (r *Repository) GetGroupRecord(ctx context.Context, id string) (Group, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, application_id, name, description, status, created_at, updated_at
		FROM groups WHERE id = $1`, id)
	out, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, fmt.Errorf("groups: get: %w", err)
	}
	return out, nil
}

// ListGroups returns all non-deleted groups of an application.
func (r *Repository) ListGroups(ctx context.Context, applicationID string) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, application_id, name, description, status, created_at, updated_at
		FROM groups WHERE application_id = $1 AND status = 'ACTIVE' ORDER BY name`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("groups: list: %w", err)
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("groups: scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGroupCascade soft-deletes a group and, in the same transaction,
// removes its memberships and role assignments.
func (r *Repository) DeleteGroupCascade(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE groups SET status = 'DELETED', updated_at = now()
			WHERE id = $1 AND status = 'ACTIVE'`, id)
		if err != nil {
			return fmt.Errorf("groups: delete group: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `
			UPDATE group_memberships SET status = 'REMOVED', updated_at = now()
			WHERE group_id = $1 AND status = 'ACTIVE'`, id); err != nil {
			return fmt.Errorf("groups: cascade memberships: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE group_role_assignments SET status = 'DELETED', updated_at = now()
			WHERE group_id = $1 AND status = 'ACTIVE'`, id); err != nil {
			return fmt.Errorf("groups: cascade role assignments: %w", err)
		}
		return nil
	})
}

// AddMember inserts an ACTIVE membership. A partial unique index on
// (group_id, user_id) WHERE status = 'ACTIVE' enforces at most one.
func (r *Repository) AddMember(ctx context.Context, m Membership) (Membership, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO group_memberships (id, group_id, user_id, application_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, group_id, user_id, application_id, status, created_at, updated_at`,
		m.ID, m.GroupID, m.UserID, m.ApplicationID, m.Status)
	out, err := scanMembership(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Membership{}, ErrDuplicateMember
		}
		return Membership{}, fmt.Errorf("groups: add member: %w", err)
	}
	return out, nil
}

// RemoveMember flips the ACTIVE membership of the user to REMOVED. The old
// record stays for history; re-adding creates a fresh membership id.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE group_memberships SET status = 'REMOVED', updated_at = now()
		WHERE group_id = $1 AND user_id = $2 AND status = 'ACTIVE'`, groupID, userID)
	if err != nil {
		return fmt.Errorf("groups: remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembers returns the ACTIVE memberships of a group.
func (r *Repository) ListMembers(ctx context.Context, groupID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_id, user_id, application_id, status, created_at, updated_at
		FROM group_memberships WHERE group_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("groups: list members: %w", err)
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("groups: scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertGroupRole assigns a role to the group for one environment. Assigning
// over an existing ACTIVE record updates it in place rather than creating a
// duplicate, preserving at most one ACTIVE assignment per (group, environment).
func (r *Repository) UpsertGroupRole(ctx context.Context, a GroupRole) (GroupRole, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO group_role_assignments (id, group_id, application_id, environment, role_id, role_name, permissions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (group_id, environment) WHERE status = 'ACTIVE'
		DO UPDATE SET role_id = EXCLUDED.role_id, role_name = EXCLUDED.role_name,
			permissions = EXCLUDED.permissions, updated_at = now()
		RETURNING id, group_id, application_id, environment, role_id, role_name, permissions, status, created_at, updated_at`,
		a.ID, a.GroupID, a.ApplicationID, a.Environment, a.RoleID, a.RoleName, a.Permissions, a.Status)
	out, err := scanGroupRole(row)
	if err != nil {
		return GroupRole{}, fmt.Errorf("groups: upsert group role: %w", err)
	}
	return out, nil
}

// RemoveGroupRole soft-deletes the ACTIVE role of a group for an environment.
func (r *Repository) RemoveGroupRole(ctx context.Context, groupID string, env permissions.Environment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE group_role_assignments SET status = 'DELETED', updated_at = now()
		WHERE group_id = $1 AND environment = $2 AND status = 'ACTIVE'`, groupID, env)
	if err != nil {
		return fmt.Errorf("groups: remove group role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryGroupMemberships implements the resolver's membership source.
func (r *Repository) QueryGroupMemberships(ctx context.Context, userID, applicationID string) ([]permissions.GroupMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_id, user_id, application_id, status, created_at, updated_at
		FROM group_memberships
		WHERE user_id = $1 AND application_id = $2 AND status = 'ACTIVE'
		ORDER BY created_at, id`, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("groups: query memberships: %w", err)
	}
	defer rows.Close()
	var out []permissions.GroupMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("groups: scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetGroup implements the resolver's group lookup. Absence is not an error.
func (r *Repository) GetGroup(ctx context.Context, groupID string) (permissions.Group, bool, error) {
	g, err := r.GetGroupRecord(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return permissions.Group{}, false, nil
		}
		return permissions.Group{}, false, err
	}
	return permissions.Group{
		ID:            g.ID,
		ApplicationID: g.ApplicationID,
		Name:          g.Name,
		Status:        g.Status,
	}, true, nil
}

// GetGroupRole implements the resolver's per-environment role lookup.
func (r *Repository) GetGroupRole(ctx context.Context, groupID string, env permissions.Environment) (permissions.GroupRoleAssignment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, group_id, application_id, environment, role_id, role_name, permissions, status, created_at, updated_at
		FROM group_role_assignments
		WHERE group_id = $1 AND environment = $2 AND status = 'ACTIVE'`, groupID, env)
	a, err := scanGroupRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permissions.GroupRoleAssignment{}, false, nil
		}
		return permissions.GroupRoleAssignment{}, false, fmt.Errorf("groups: get group role: %w", err)
	}
	return a, true, nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.ApplicationID, &g.Name, &g.Description, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func scanMembership(row pgx.Row) (Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.ApplicationID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func scanGroupRole(row pgx.Row) (GroupRole, error) {
	var a GroupRole
	err := row.Scan(&a.ID, &a.GroupID, &a.ApplicationID, &a.Environment, &a.RoleID, &a.RoleName, &a.Permissions, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
