package httpserver

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/northwind/apigateway/internal/counterstore"
	"github.com/northwind/apigateway/internal/gatewayauth"
	"github.com/northwind/apigateway/internal/ratelimit"
	"github.com/northwind/apigateway/internal/registry"
	"github.com/northwind/apigateway/internal/reverseproxy"
	"github.com/northwind/apigateway/internal/usagerecorder"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sha256hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func newTestServer(t *testing.T, upstream *httptest.Server) (*Server, *registry.Fake) {
	t.Helper()

	store := registry.NewFake()
	store.Tenants["acme"] = registry.Tenant{ID: 1, Slug: "acme", IsActive: true}
	store.APIs[[2]any{int64(1), "echo"}] = registry.API{ID: 10, TenantID: 1, Slug: "echo", UpstreamBaseURL: upstream.URL, IsActive: true}
	store.Plans[1000] = registry.Plan{ID: 1000, RequestsPerMinute: 2, IsActive: true}

	resolver := gatewayauth.NewResolver(store)
	counters := counterstore.NewLocalStore()
	t.Cleanup(func() { counters.Close() })

	limiter := ratelimit.NewLimiter(counters, testLogger())
	proxy := reverseproxy.NewProxy(0, 8) // timeout 0 means no client-side deadline
	recorder := usagerecorder.NewRecorder(counters, testLogger(), 2, 16)
	t.Cleanup(recorder.Close)

	metrics := prometheus.NewRegistry()

	s := NewServer(testLogger(), Deps{
		DB:       nil,
		Redis:    nil,
		Counters: counters,
		Metrics:  metrics,
		Resolver: resolver,
		Limiter:  limiter,
		Proxy:    proxy,
		Recorder: recorder,
	})

	return s, store
}

func TestHandleProxyMissingAPIKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s, _ := newTestServer(t, upstream)

	req := httptest.NewRequest(http.MethodGet, "/acme/echo/anything", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleProxyUnknownTenant(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s, _ := newTestServer(t, upstream)

	req := httptest.NewRequest(http.MethodGet, "/nope/echo/anything", nil)
	req.Header.Set("X-API-Key", "whatever")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleProxyHappyPath(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if r.Header.Get("X-Api-Key") != "" {
			t.Error("X-Api-Key must not reach upstream")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	s, store := newTestServer(t, upstream)
	store.Keys[sha256hex("good-key")] = registry.APIKey{ID: 100, TenantID: 1, PlanID: 1000, IsActive: true}

	req := httptest.NewRequest(http.MethodGet, "/acme/echo/get?x=1", nil)
	req.Header.Set("X-API-Key", "good-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if gotPath != "/get" {
		t.Errorf("upstream path = %q, want /get", gotPath)
	}
	if gotQuery != "x=1" {
		t.Errorf("upstream query = %q, want x=1", gotQuery)
	}
}

func TestHandleProxyRateLimitExceeded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s, store := newTestServer(t, upstream)
	store.Keys[sha256hex("good-key")] = registry.APIKey{ID: 100, TenantID: 1, PlanID: 1000, IsActive: true}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/acme/echo/get", nil)
		req.Header.Set("X-API-Key", "good-key")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/acme/echo/get", nil)
	req.Header.Set("X-API-Key", "good-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
