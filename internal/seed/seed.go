// Package seed provisions a development tenant, api, plan, and api key so
// the gateway has something to resolve against without a control plane.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northwind/apigateway/internal/httpserver"
)

// DevAPIKey is the raw API key seeded for development/testing.
// It is only created by the seed command and should never be used in production.
const DevAPIKey = "dev_seed_key_do_not_use_in_production"

const (
	devTenantSlug   = "acme"
	devAPISlug      = "echo"
	devUpstreamBase = "https://httpbin.org"
	devKeyPlanRPM   = 60
	devClientRPM    = 10
	devClientID     = "downstream-a"
)

// tenantFixture, apiFixture, and planFixture are validated with the same
// go-playground/validator/v10 instance the HTTP layer uses before being
// inserted, so a malformed fixture fails loudly instead of producing a
// registry row the resolver can never correctly serve.
type tenantFixture struct {
	Slug string `validate:"required,lowercase,alphanum"`
}

type apiFixture struct {
	Slug            string `validate:"required,lowercase,alphanum"`
	UpstreamBaseURL string `validate:"required,url"`
}

type planFixture struct {
	RequestsPerMinute int `validate:"required,gt=0"`
}

type clientFixture struct {
	ClientID string `validate:"required"`
}

// Run provisions the "acme" development tenant against the registry schema:
// a tenant, an api pointed at a public echo upstream, a plan, a hashed api
// key, and a client override. It is idempotent: if the tenant already
// exists it logs and returns nil.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if err := validateFixtures(); err != nil {
		return fmt.Errorf("validating seed fixtures: %w", err)
	}

	var existingID int64
	err := pool.QueryRow(ctx, `SELECT id FROM tenants_tenant WHERE slug = $1`, devTenantSlug).Scan(&existingID)
	if err == nil {
		logger.Info("seed: tenant already exists, skipping", "slug", devTenantSlug, "tenant_id", existingID)
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tenantID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO tenants_tenant (slug, is_active) VALUES ($1, true) RETURNING id`,
		devTenantSlug,
	).Scan(&tenantID); err != nil {
		return fmt.Errorf("seeding tenant: %w", err)
	}

	var apiID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO apis_api (tenant_id, slug, upstream_base_url, is_active) VALUES ($1, $2, $3, true) RETURNING id`,
		tenantID, devAPISlug, devUpstreamBase,
	).Scan(&apiID); err != nil {
		return fmt.Errorf("seeding api: %w", err)
	}

	var keyPlanID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO billing_plan (requests_per_minute, requests_per_month, is_active) VALUES ($1, NULL, true) RETURNING id`,
		devKeyPlanRPM,
	).Scan(&keyPlanID); err != nil {
		return fmt.Errorf("seeding plan: %w", err)
	}

	hashedKey := hashAPIKey(DevAPIKey)
	var apiKeyID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO apis_apikey (tenant_id, plan_id, hashed_key, is_active) VALUES ($1, $2, $3, true) RETURNING id`,
		tenantID, keyPlanID, hashedKey,
	).Scan(&apiKeyID); err != nil {
		return fmt.Errorf("seeding api key: %w", err)
	}

	var clientPlanID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO billing_plan (requests_per_minute, requests_per_month, is_active) VALUES ($1, NULL, true) RETURNING id`,
		devClientRPM,
	).Scan(&clientPlanID); err != nil {
		return fmt.Errorf("seeding client plan: %w", err)
	}

	var clientID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO apis_client (tenant_id, plan_id, client_id) VALUES ($1, $2, $3) RETURNING id`,
		tenantID, clientPlanID, devClientID,
	).Scan(&clientID); err != nil {
		return fmt.Errorf("seeding client: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}

	logger.Info("seed: provisioned development fixtures",
		"tenant", devTenantSlug,
		"tenant_id", tenantID,
		"api", devAPISlug,
		"api_id", apiID,
		"api_key_id", apiKeyID,
		"client_id", devClientID,
		"raw_api_key", DevAPIKey,
	)
	return nil
}

// validateFixtures runs the seed's fixture values through the same
// validator the HTTP layer uses, before any of them reach a query.
func validateFixtures() error {
	fixtures := []any{
		tenantFixture{Slug: devTenantSlug},
		apiFixture{Slug: devAPISlug, UpstreamBaseURL: devUpstreamBase},
		planFixture{RequestsPerMinute: devKeyPlanRPM},
		planFixture{RequestsPerMinute: devClientRPM},
		clientFixture{ClientID: devClientID},
	}

	var messages []string
	for _, f := range fixtures {
		for _, verr := range httpserver.Validate(f) {
			messages = append(messages, fmt.Sprintf("%s: %s", verr.Field, verr.Message))
		}
	}
	if len(messages) > 0 {
		return fmt.Errorf("%s", strings.Join(messages, "; "))
	}
	return nil
}

func hashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
