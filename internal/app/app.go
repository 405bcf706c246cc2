// Package app wires the gateway's infrastructure and dispatches to the
// configured run mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/northwind/apigateway/internal/config"
	"github.com/northwind/apigateway/internal/counterstore"
	"github.com/northwind/apigateway/internal/gatewayauth"
	"github.com/northwind/apigateway/internal/httpserver"
	"github.com/northwind/apigateway/internal/platform"
	"github.com/northwind/apigateway/internal/ratelimit"
	"github.com/northwind/apigateway/internal/registry"
	"github.com/northwind/apigateway/internal/reverseproxy"
	"github.com/northwind/apigateway/internal/seed"
	"github.com/northwind/apigateway/internal/telemetry"
	"github.com/northwind/apigateway/internal/usagerecorder"
)

// Run is the process entry point. It reads config, connects to
// infrastructure, and starts the configured mode (api or seed).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting apigateway",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to registry database: %w", err)
	}
	defer db.Close()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db)
	case "seed":
		if err := platform.RunRegistryMigrations(cfg.DatabaseURL, cfg.RegistryMigrationsDir); err != nil {
			return fmt.Errorf("running registry migrations: %w", err)
		}
		logger.Info("registry migrations applied")
		return seed.Run(ctx, db, logger)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool) error {
	redisClient, err := platform.NewRedisClientUnchecked(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("configuring redis client: %w", err)
	}

	counters := counterstore.Select(ctx, redisClient, cfg.CounterProbeTimeout, logger)
	defer func() {
		if err := counters.Close(); err != nil {
			logger.Error("closing counter store", "error", err)
		}
	}()

	metricsReg := telemetry.NewRegistry()

	store := registry.NewPGStore(db)
	resolver := gatewayauth.NewResolver(store)
	limiter := ratelimit.NewLimiter(counters, logger)
	proxy := reverseproxy.NewProxy(cfg.UpstreamTimeout, cfg.UpstreamMaxIdleConn)
	recorder := usagerecorder.NewRecorder(counters, logger, cfg.UsageWorkers, cfg.UsageQueueSize)
	defer recorder.Close()

	// Redis is only carried on Deps when the counter store actually selected
	// it; Select closes the client itself when it falls back to the local
	// in-process store, so a *RedisStore is the only case it's still live.
	var liveRedis *redis.Client
	if _, ok := counters.(*counterstore.RedisStore); ok {
		liveRedis = redisClient
		telemetry.CounterStoreFallbackActive.Set(0)
	} else {
		telemetry.CounterStoreFallbackActive.Set(1)
	}

	srv := httpserver.NewServer(logger, httpserver.Deps{
		DB:       db,
		Redis:    liveRedis,
		Counters: counters,
		Metrics:  metricsReg,
		Resolver: resolver,
		Limiter:  limiter,
		Proxy:    proxy,
		Recorder: recorder,
	})

	// WriteTimeout must exceed UpstreamTimeout with headroom: otherwise a
	// valid upstream response arriving right at the proxy's own deadline
	// would still get cut off by the server's write deadline.
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
