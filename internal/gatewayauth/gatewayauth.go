// Package gatewayauth resolves an inbound request's tenant, api, api key,
// optional client, and plan, short-circuiting on the first failed lookup.
package gatewayauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/northwind/apigateway/internal/registry"
)

// Reason identifies why resolution failed, so the HTTP layer can map it to
// the correct status code and message without re-deriving the cause.
type Reason int

const (
	_ Reason = iota
	ReasonMissingAPIKey
	ReasonTenantNotFound
	ReasonAPINotFound
	ReasonInvalidAPIKey
	ReasonInvalidClient
	ReasonInvalidPlan
)

// Error wraps a resolution failure with the Reason driving the HTTP response.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(reason Reason, message string) *Error {
	return &Error{Reason: reason, Message: message}
}

// Identity is the resolved subject of a proxied request: the rate-limit
// identity is ClientID if a client was supplied, else KeyID.
type Identity struct {
	TenantID     int64
	APIID        int64
	UpstreamBase string
	KeyID        int64
	ClientID     int64 // 0 when no client was supplied
	Plan         registry.Plan
}

// RateLimitKeyBase is the counter-store key prefix the rate limiter builds
// its per-minute and per-month keys from: "rate_limit_client:{id}" when a
// client was supplied, else "rate_limit:{id}".
func (id Identity) RateLimitKeyBase() string {
	if id.ClientID != 0 {
		return fmt.Sprintf("rate_limit_client:%d", id.ClientID)
	}
	return fmt.Sprintf("rate_limit:%d", id.KeyID)
}

// Resolver authenticates and authorizes a request against the registry.
type Resolver struct {
	store registry.Store
}

// NewResolver creates a Resolver backed by the given registry store.
func NewResolver(store registry.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve implements the lookup chain: tenant -> api -> api key -> optional
// client -> plan. Each step short-circuits on failure.
func (r *Resolver) Resolve(ctx context.Context, tenantSlug, apiSlug, apiKey, clientID string) (Identity, error) {
	if apiKey == "" {
		return Identity{}, newError(ReasonMissingAPIKey, "missing api key")
	}
	hashed := hashAPIKey(apiKey)

	tenant, err := r.store.TenantBySlug(ctx, tenantSlug)
	if err != nil {
		return Identity{}, lookupErr(err, ReasonTenantNotFound, "tenant not found")
	}
	if !tenant.IsActive {
		return Identity{}, newError(ReasonTenantNotFound, "tenant not found")
	}

	api, err := r.store.APIByTenantAndSlug(ctx, tenant.ID, apiSlug)
	if err != nil {
		return Identity{}, lookupErr(err, ReasonAPINotFound, "api not found")
	}
	if !api.IsActive {
		return Identity{}, newError(ReasonAPINotFound, "api not found")
	}

	key, err := r.store.APIKeyByHash(ctx, hashed)
	if err != nil {
		return Identity{}, lookupErr(err, ReasonInvalidAPIKey, "invalid or inactive api key")
	}
	if !key.IsActive || key.TenantID != tenant.ID {
		return Identity{}, newError(ReasonInvalidAPIKey, "invalid or inactive api key")
	}

	id := Identity{
		TenantID:     tenant.ID,
		APIID:        api.ID,
		UpstreamBase: api.UpstreamBaseURL,
		KeyID:        key.ID,
	}

	planID := key.PlanID
	if clientID != "" {
		client, err := r.store.ClientByClientID(ctx, tenant.ID, clientID)
		if err != nil {
			return Identity{}, lookupErr(err, ReasonInvalidClient, "invalid client id")
		}
		id.ClientID = client.ID
		planID = client.PlanID
	}

	plan, err := r.store.PlanByID(ctx, planID)
	if err != nil || !plan.IsActive {
		return Identity{}, newError(ReasonInvalidPlan, "plan invalid")
	}
	id.Plan = plan

	return id, nil
}

func lookupErr(err error, reason Reason, message string) error {
	if errors.Is(err, registry.ErrNotFound) {
		return newError(reason, message)
	}
	return fmt.Errorf("resolving request: %w", err)
}

func hashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
