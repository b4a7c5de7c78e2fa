package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("orgs: not found")

// ErrDuplicateName indicates an organization or application name collision.
var ErrDuplicateName = errors.New("orgs: name already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateOrganization inserts a new organization.
func (r *Repository) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO organizations (id, name, status)
		VALUES ($1, $2, $3)
		RETURNING id, name, status, created_at, updated_at`,
		org.ID, org.Name, org.Status)
	out, err := scanOrganization(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Organization{}, ErrDuplicateName
		}
		return Organization{}, fmt.Errorf("orgs: create organization: %w", err)
	}
	return out, nil
}

// GetOrganization fetches an organization by id.
func (r *Repository) GetOrganization(ctx context.Context, id string) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM organizations WHERE id = $1`, id)
	out, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("orgs: get organization: %w", err)
	}
	return out, nil
}

// ListOrganizations returns all non-deleted organizations ordered by name.
func (r *Repository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM organizations WHERE status = 'ACTIVE' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("orgs: list organizations: %w", err)
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("orgs: scan organization: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// ArchiveOrganization soft-deletes an organization.
func (r *Repository) ArchiveOrganization(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organizations SET status = 'DELETED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("orgs: archive organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateApplication inserts an application under an organization.
func (r *Repository) CreateApplication(ctx context.Context, appRec Application) (Application, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO applications (id, organization_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, created_at, updated_at`,
		appRec.ID, appRec.OrganizationID, appRec.Name)
	out, err := scanApplication(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Application{}, ErrDuplicateName
		}
		return Application{}, fmt.Errorf("orgs: create application: %w", err)
	}
	return out, nil
}

// GetApplication fetches an application by id.
func (r *Repository) GetApplication(ctx context.Context, id string) (Application, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM applications WHERE id = $1`, id)
	out, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("orgs: get application: %w", err)
	}
	return out, nil
}

// ListApplications returns all applications of an organization.
func (r *Repository) ListApplications(ctx context.Context, organizationID string) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM applications WHERE organization_id = $1 ORDER BY name`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("orgs: list applications: %w", err)
	}
	defer rows.Close()
	var out []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("orgs: scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
