package apikeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested key does not exist.
var ErrNotFound = errors.New("apikeys: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const keyColumns = `id, organization_id, name, prefix, secret_hash, version, status, created_at, updated_at`

// CreateKey inserts an issued key record.
func (r *Repository) CreateKey(ctx context.Context, k Key) (Key, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, organization_id, name, prefix, secret_hash, version, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+keyColumns,
		k.ID, k.OrganizationID, k.Name, k.Prefix, k.SecretHash, k.Version, k.Status)
	out, err := scanKey(row)
	if err != nil {
		return Key{}, fmt.Errorf("apikeys: create: %w", err)
	}
	return out, nil
}

// GetKey fetches a key by id.
func (r *Repository) GetKey(ctx context.Context, id string) (Key, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, id)
	out, err := scanKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrNotFound
		}
		return Key{}, fmt.Errorf("apikeys: get: %w", err)
	}
	return out, nil
}

// GetKeyByPrefix fetches a key by its public prefix.
func (r *Repository) GetKeyByPrefix(ctx context.Context, prefix string) (Key, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE prefix = $1`, prefix)
	out, err := scanKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrNotFound
		}
		return Key{}, fmt.Errorf("apikeys: get by prefix: %w", err)
	}
	return out, nil
}

// ListKeys returns all keys of an organization.
func (r *Repository) ListKeys(ctx context.Context, organizationID string) ([]Key, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+keyColumns+` FROM api_keys
		WHERE organization_id = $1 ORDER BY created_at, id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("apikeys: list: %w", err)
	}
	defer rows.Close()
	var out []Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("apikeys: scan: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RotateKey swaps in a new secret hash and bumps the version of an ACTIVE key.
func (r *Repository) RotateKey(ctx context.Context, id, secretHash string) (Key, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE api_keys SET secret_hash = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING `+keyColumns, id, secretHash)
	out, err := scanKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrNotFound
		}
		return Key{}, fmt.Errorf("apikeys: rotate: %w", err)
	}
	return out, nil
}

// RevokeKey marks an ACTIVE key revoked.
func (r *Repository) RevokeKey(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET status = 'REVOKED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("apikeys: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanKey(row pgx.Row) (Key, error) {
	var k Key
	err := row.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.Prefix, &k.SecretHash, &k.Version, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}
