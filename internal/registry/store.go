package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store resolves registry entities by the keys the request path presents:
// tenant slug, api slug, hashed key, client id, plan id.
type Store interface {
	TenantBySlug(ctx context.Context, slug string) (Tenant, error)
	APIByTenantAndSlug(ctx context.Context, tenantID int64, slug string) (API, error)
	APIKeyByHash(ctx context.Context, hashedKey string) (APIKey, error)
	ClientByClientID(ctx context.Context, tenantID int64, clientID string) (Client, error)
	PlanByID(ctx context.Context, id int64) (Plan, error)
}

// PGStore is a Store backed by the control plane's Postgres registry schema.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a registry Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *PGStore) TenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	const query = `SELECT id, slug, is_active FROM tenants_tenant WHERE slug = $1`
	var t Tenant
	err := s.pool.QueryRow(ctx, query, slug).Scan(&t.ID, &t.Slug, &t.IsActive)
	if err != nil {
		return Tenant{}, wrapNotFound(err, "looking up tenant by slug")
	}
	return t, nil
}

func (s *PGStore) APIByTenantAndSlug(ctx context.Context, tenantID int64, slug string) (API, error) {
	const query = `SELECT id, tenant_id, slug, upstream_base_url, is_active
	FROM apis_api WHERE tenant_id = $1 AND slug = $2`
	var a API
	err := s.pool.QueryRow(ctx, query, tenantID, slug).Scan(&a.ID, &a.TenantID, &a.Slug, &a.UpstreamBaseURL, &a.IsActive)
	if err != nil {
		return API{}, wrapNotFound(err, "looking up api by tenant and slug")
	}
	return a, nil
}

func (s *PGStore) APIKeyByHash(ctx context.Context, hashedKey string) (APIKey, error) {
	const query = `SELECT id, tenant_id, plan_id, hashed_key, is_active
	FROM apis_apikey WHERE hashed_key = $1`
	var k APIKey
	err := s.pool.QueryRow(ctx, query, hashedKey).Scan(&k.ID, &k.TenantID, &k.PlanID, &k.HashedKey, &k.IsActive)
	if err != nil {
		return APIKey{}, wrapNotFound(err, "looking up api key by hash")
	}
	return k, nil
}

func (s *PGStore) ClientByClientID(ctx context.Context, tenantID int64, clientID string) (Client, error) {
	const query = `SELECT id, tenant_id, plan_id, client_id
	FROM apis_client WHERE tenant_id = $1 AND client_id = $2`
	var c Client
	err := s.pool.QueryRow(ctx, query, tenantID, clientID).Scan(&c.ID, &c.TenantID, &c.PlanID, &c.ClientID)
	if err != nil {
		return Client{}, wrapNotFound(err, "looking up client by client id")
	}
	return c, nil
}

func (s *PGStore) PlanByID(ctx context.Context, id int64) (Plan, error) {
	const query = `SELECT id, requests_per_minute, requests_per_month, is_active
	FROM billing_plan WHERE id = $1`
	var p Plan
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.RequestsPerMinute, &p.RequestsPerMonth, &p.IsActive)
	if err != nil {
		return Plan{}, wrapNotFound(err, "looking up plan by id")
	}
	return p, nil
}
