package counterstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Select probes the given Redis client and returns a RedisStore if it
// responds within timeout, otherwise falls back to an in-process LocalStore
// for the remainder of the process lifetime. This mirrors the prior
// implementation's fallback to an in-memory Redis stand-in when the real
// instance could not be reached at startup.
func Select(ctx context.Context, client *redis.Client, timeout time.Duration, logger *slog.Logger) Store {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn("counter store unreachable, falling back to local in-process counters",
			"error", err)
		_ = client.Close()
		return NewLocalStore()
	}

	return NewRedisStore(client)
}
