package assignments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/permissions"
)

// ErrNotFound indicates that the requested assignment does not exist.
var ErrNotFound = errors.New("assignments: not found")

// Repository provides PostgreSQL backed persistence. It doubles as the
// resolver's direct-role source.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentColumns = `id, user_id, application_id, environment, role_id, role_name, permissions, status, created_at, updated_at`

// CreateAssignment inserts a new direct role assignment.
func (r *Repository) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO direct_role_assignments (id, user_id, application_id, environment, role_id, role_name, permissions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+assignmentColumns,
		a.ID, a.UserID, a.ApplicationID, a.Environment, a.RoleID, a.RoleName, a.Permissions, a.Status)
	out, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignments: create: %w", err)
	}
	return out, nil
}

// GetAssignment fetches an assignment by id regardless of status.
func (r *Repository) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM direct_role_assignments WHERE id = $1`, id)
	out, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, fmt.Errorf("assignments: get: %w", err)
	}
	return out, nil
}

// ListByUser returns every assignment of a user within an application,
// including soft-deleted history.
func (r *Repository) ListByUser(ctx context.Context, userID, applicationID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM direct_role_assignments
		WHERE user_id = $1 AND application_id = $2
		ORDER BY created_at, id`, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("assignments: list by user: %w", err)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// RevokeAssignment soft-deletes an ACTIVE assignment.
func (r *Repository) RevokeAssignment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE direct_role_assignments SET status = 'DELETED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("assignments: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryDirectRoles implements the resolver's direct-role source: ACTIVE
// assignments for the user within the application, in stable order.
func (r *Repository) QueryDirectRoles(ctx context.Context, userID, applicationID string) ([]permissions.DirectRoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM direct_role_assignments
		WHERE user_id = $1 AND application_id = $2 AND status = 'ACTIVE'
		ORDER BY created_at, id`, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("assignments: query direct roles: %w", err)
	}
	defer rows.Close()
	list, err := collectAssignments(rows)
	if err != nil {
		return nil, err
	}
	out := make([]permissions.DirectRoleAssignment, len(list))
	for i, a := range list {
		out[i] = permissions.DirectRoleAssignment{
			ID:            a.ID,
			UserID:        a.UserID,
			ApplicationID: a.ApplicationID,
			Environment:   a.Environment,
			RoleID:        a.RoleID,
			RoleName:      a.RoleName,
			Permissions:   a.Permissions,
			Status:        a.Status,
			CreatedAt:     a.CreatedAt,
			UpdatedAt:     a.UpdatedAt,
		}
	}
	return out, nil
}

func collectAssignments(rows pgx.Rows) ([]Assignment, error) {
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("assignments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.UserID, &a.ApplicationID, &a.Environment, &a.RoleID, &a.RoleName, &a.Permissions, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
