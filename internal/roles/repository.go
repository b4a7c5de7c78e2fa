package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested role does not exist.
var ErrNotFound = errors.New("roles: not found")

// ErrDuplicateName indicates a role name collision within an application.
var ErrDuplicateName = errors.New("roles: name already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (id, application_id, name, description, permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, application_id, name, description, permissions, created_at, updated_at`,
		role.ID, role.ApplicationID, role.Name, role.Description, role.Permissions)
	out, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, ErrDuplicateName
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return out, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, application_id, name, description, permissions, created_at, updated_at
		FROM roles WHERE id = $1`, id)
	out, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return out, nil
}

// ListRoles returns all roles of an application ordered by name.
func (r *Repository) ListRoles(ctx context.Context, applicationID string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, application_id, name, description, permissions, created_at, updated_at
		FROM roles WHERE application_id = $1 ORDER BY name`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// UpdateRole updates name, description and permissions in place.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, permissions = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, application_id, name, description, permissions, created_at, updated_at`,
		role.ID, role.Name, role.Description, role.Permissions)
	out, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return out, nil
}

// DeleteRole removes a role from the catalog. Assignment snapshots survive.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.ApplicationID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}
