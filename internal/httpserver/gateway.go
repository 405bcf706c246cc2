package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/northwind/apigateway/internal/gatewayauth"
	"github.com/northwind/apigateway/internal/ratelimit"
	"github.com/northwind/apigateway/internal/reverseproxy"
	"github.com/northwind/apigateway/internal/telemetry"
)

// handleProxy implements the gateway's single route family:
// <METHOD> /{tenant_slug}/{api_slug}/{path...}. It runs the resolver, the
// rate limiter, the reverse proxy, then schedules the usage recorder, in
// that fixed order.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantSlug := chi.URLParam(r, "tenant_slug")
	apiSlug := chi.URLParam(r, "api_slug")
	path := chi.URLParam(r, "*")

	identity, err := s.Resolver.Resolve(ctx, tenantSlug, apiSlug, r.Header.Get("X-API-Key"), r.Header.Get("X-Client-ID"))
	if err != nil {
		s.respondAuthError(w, err)
		return
	}

	if err := s.Limiter.Check(ctx, identity.RateLimitKeyBase(), identity.Plan); err != nil {
		s.respondRateLimitError(w, err)
		return
	}

	upstreamReq, err := reverseproxy.BuildUpstreamRequest(ctx, r, identity.UpstreamBase, path)
	if err != nil {
		RespondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not routed")
		return
	}

	resp, err := s.Proxy.Do(upstreamReq)
	if err != nil {
		// An upstream transport failure still counts as an attempted call
		// on the tenant's behalf, so usage is recorded even on 502.
		telemetry.ProxiedRequestsTotal.WithLabelValues(tenantSlug, apiSlug, "upstream_unavailable").Inc()
		RespondError(w, http.StatusBadGateway, "upstream_unavailable", "upstream service unavailable")
		s.Recorder.Record(identity.TenantID, identity.APIID)
		return
	}
	defer resp.Body.Close()

	telemetry.ProxiedRequestsTotal.WithLabelValues(tenantSlug, apiSlug, "proxied").Inc()

	if err := reverseproxy.CopyResponse(w, resp); err != nil {
		s.Logger.Warn("copying upstream response body failed", "error", err)
	}

	s.Recorder.Record(identity.TenantID, identity.APIID)
}

func (s *Server) respondAuthError(w http.ResponseWriter, err error) {
	var gatewayErr *gatewayauth.Error
	if !errors.As(err, &gatewayErr) {
		s.Logger.Error("resolving request identity", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "registry_unavailable", "registry lookup failed")
		return
	}

	status := http.StatusForbidden
	code := "forbidden"
	switch gatewayErr.Reason {
	case gatewayauth.ReasonMissingAPIKey:
		status, code = http.StatusUnauthorized, "missing_api_key"
	case gatewayauth.ReasonTenantNotFound, gatewayauth.ReasonAPINotFound:
		status, code = http.StatusNotFound, "not_found"
	case gatewayauth.ReasonInvalidAPIKey:
		code = "invalid_api_key"
	case gatewayauth.ReasonInvalidClient:
		code = "invalid_client_id"
	case gatewayauth.ReasonInvalidPlan:
		code = "invalid_plan"
	}

	telemetry.AuthRejectionsTotal.WithLabelValues(code).Inc()
	RespondError(w, status, code, gatewayErr.Message)
}

func (s *Server) respondRateLimitError(w http.ResponseWriter, err error) {
	var rlErr *ratelimit.Error
	if !errors.As(err, &rlErr) {
		// Limiter.Check returns only nil or *Error: counter-store failures
		// are logged inside it and fail open, so nothing should reach here.
		s.Logger.Error("unexpected rate limiter error", "error", err)
		return
	}

	window := "minute"
	if rlErr.Reason == ratelimit.ReasonMonthExceeded {
		window = "month"
	}
	telemetry.RateLimitRejectionsTotal.WithLabelValues(window).Inc()
	RespondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", rlErr.Message)
}

