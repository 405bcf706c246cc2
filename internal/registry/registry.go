// Package registry provides read-only access to the control plane's
// relational schema: tenants, apis, api keys, plans, and clients. The data
// plane never writes these tables — they are owned and migrated by the
// control plane in production.
package registry

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("registry: not found")

// Tenant is a registered customer namespace.
type Tenant struct {
	ID       int64
	Slug     string
	IsActive bool
}

// API binds a per-tenant slug to an upstream base URL.
type API struct {
	ID              int64
	TenantID        int64
	Slug            string
	UpstreamBaseURL string
	IsActive        bool
}

// APIKey is an opaque secret issued to a tenant, stored only as a SHA-256
// hex digest.
type APIKey struct {
	ID        int64
	TenantID  int64
	PlanID    int64
	HashedKey string
	IsActive  bool
}

// Client is an optional sub-identity within a tenant with its own plan.
type Client struct {
	ID       int64
	TenantID int64
	PlanID   int64
	ClientID string
}

// Plan is a request-rate quota set.
type Plan struct {
	ID                int64
	RequestsPerMinute int
	RequestsPerMonth  *int // nil means unlimited
	IsActive          bool
}
