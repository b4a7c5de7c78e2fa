package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested endpoint does not exist.
var ErrNotFound = errors.New("webhooks: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const endpointColumns = `id, organization_id, url, secret, event_types, status, created_at, updated_at`

// CreateEndpoint inserts an endpoint registration.
func (r *Repository) CreateEndpoint(ctx context.Context, e Endpoint) (Endpoint, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (id, organization_id, url, secret, event_types, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+endpointColumns,
		e.ID, e.OrganizationID, e.URL, e.Secret, e.EventTypes, e.Status)
	out, err := scanEndpoint(row)
	if err != nil {
		return Endpoint{}, fmt.Errorf("webhooks: create: %w", err)
	}
	return out, nil
}

// GetEndpoint fetches an endpoint by id.
func (r *Repository) GetEndpoint(ctx context.Context, id string) (Endpoint, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = $1`, id)
	out, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrNotFound
		}
		return Endpoint{}, fmt.Errorf("webhooks: get: %w", err)
	}
	return out, nil
}

// ListEndpoints returns all endpoints of an organization.
func (r *Repository) ListEndpoints(ctx context.Context, organizationID string) ([]Endpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+endpointColumns+` FROM webhook_endpoints
		WHERE organization_id = $1 ORDER BY created_at, id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("webhooks: list: %w", err)
	}
	return collectEndpoints(rows)
}

// ListSubscribed returns the ACTIVE endpoints subscribed to an event type,
// either explicitly or via the "*" wildcard.
func (r *Repository) ListSubscribed(ctx context.Context, eventType string) ([]Endpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+endpointColumns+` FROM webhook_endpoints
		WHERE status = 'ACTIVE' AND (event_types @> ARRAY[$1]::text[] OR event_types @> ARRAY['*']::text[])
		ORDER BY created_at, id`, eventType)
	if err != nil {
		return nil, fmt.Errorf("webhooks: list subscribed: %w", err)
	}
	return collectEndpoints(rows)
}

// DisableEndpoint marks an ACTIVE endpoint disabled.
func (r *Repository) DisableEndpoint(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_endpoints SET status = 'DISABLED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("webhooks: disable: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectEndpoints(rows pgx.Rows) ([]Endpoint, error) {
	defer rows.Close()
	var out []Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("webhooks: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEndpoint(row pgx.Row) (Endpoint, error) {
	var e Endpoint
	err := row.Scan(&e.ID, &e.OrganizationID, &e.URL, &e.Secret, &e.EventTypes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
