package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/northwind/apigateway/internal/counterstore"
	"github.com/northwind/apigateway/internal/gatewayauth"
	"github.com/northwind/apigateway/internal/ratelimit"
	"github.com/northwind/apigateway/internal/reverseproxy"
	"github.com/northwind/apigateway/internal/usagerecorder"
)

// Server holds the data plane's HTTP server and its request-path
// dependencies: the resolver, limiter, proxy, and usage recorder.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client // nil when the local counter-store fallback was selected
	Counters  counterstore.Store
	Metrics   *prometheus.Registry
	Resolver  *gatewayauth.Resolver
	Limiter   *ratelimit.Limiter
	Proxy     *reverseproxy.Proxy
	Recorder  *usagerecorder.Recorder
	startedAt time.Time
}

// Deps bundles the request-path dependencies NewServer wires onto the
// gateway route.
type Deps struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Counters counterstore.Store
	Metrics  *prometheus.Registry
	Resolver *gatewayauth.Resolver
	Limiter  *ratelimit.Limiter
	Proxy    *reverseproxy.Proxy
	Recorder *usagerecorder.Recorder
}

// NewServer creates the gateway's HTTP server: middleware stack, ops
// endpoints, and the single proxied route family.
func NewServer(logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        deps.DB,
		Redis:     deps.Redis,
		Counters:  deps.Counters,
		Metrics:   deps.Metrics,
		Resolver:  deps.Resolver,
		Limiter:   deps.Limiter,
		Proxy:     deps.Proxy,
		Recorder:  deps.Recorder,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Client-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))

	// The gateway's single route family: <METHOD> /{tenant_slug}/{api_slug}/{path...}
	s.Router.HandleFunc("/{tenant_slug}/{api_slug}/*", s.handleProxy)
	s.Router.HandleFunc("/{tenant_slug}/{api_slug}", s.handleProxy)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports 503 if the registry database or the active
// counter-store backend cannot be reached. The local counter-store
// fallback always pings clean, so this never flaps readiness purely
// because Redis is down — that outage was already absorbed at startup.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		s.Logger.Error("readiness check: registry database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "registry database not ready")
		return
	}
	if err := s.Counters.Ping(r.Context()); err != nil {
		s.Logger.Error("readiness check: counter store ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "counter store not ready")
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
