package registry

import "context"

// Fake is an in-memory Store for tests that exercise gatewayauth and
// httpserver without a live Postgres instance.
type Fake struct {
	Tenants map[string]Tenant // by slug
	APIs    map[[2]any]API    // by [tenantID, slug]
	Keys    map[string]APIKey // by hashed key
	Clients map[[2]any]Client // by [tenantID, clientID]
	Plans   map[int64]Plan    // by id
}

// NewFake returns an empty Fake store ready for population by tests.
func NewFake() *Fake {
	return &Fake{
		Tenants: map[string]Tenant{},
		APIs:    map[[2]any]API{},
		Keys:    map[string]APIKey{},
		Clients: map[[2]any]Client{},
		Plans:   map[int64]Plan{},
	}
}

func (f *Fake) TenantBySlug(_ context.Context, slug string) (Tenant, error) {
	t, ok := f.Tenants[slug]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (f *Fake) APIByTenantAndSlug(_ context.Context, tenantID int64, slug string) (API, error) {
	a, ok := f.APIs[[2]any{tenantID, slug}]
	if !ok {
		return API{}, ErrNotFound
	}
	return a, nil
}

func (f *Fake) APIKeyByHash(_ context.Context, hashedKey string) (APIKey, error) {
	k, ok := f.Keys[hashedKey]
	if !ok {
		return APIKey{}, ErrNotFound
	}
	return k, nil
}

func (f *Fake) ClientByClientID(_ context.Context, tenantID int64, clientID string) (Client, error) {
	c, ok := f.Clients[[2]any{tenantID, clientID}]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (f *Fake) PlanByID(_ context.Context, id int64) (Plan, error) {
	p, ok := f.Plans[id]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return p, nil
}
