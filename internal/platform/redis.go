package platform

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from the given URL and verifies
// connectivity with a ping against the given context's deadline.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	client, err := NewRedisClientUnchecked(redisURL)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// NewRedisClientUnchecked builds a Redis client without verifying
// connectivity. The counter store selects between this client and an
// in-process fallback based on its own bounded health probe, so startup
// must not hard-fail here when Redis is unreachable.
func NewRedisClientUnchecked(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
