// Package ratelimit enforces per-minute and per-month request quotas using
// fixed, non-sliding windows backed by a counterstore.Store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/northwind/apigateway/internal/counterstore"
	"github.com/northwind/apigateway/internal/registry"
)

const (
	minuteWindow = 60 * time.Second
	// monthTTL intentionally overestimates 31 days so the counter outlives
	// the calendar month it was seeded in.
	monthTTL = 32 * 24 * time.Hour
)

// Reason identifies which window rejected the request.
type Reason int

const (
	_ Reason = iota
	ReasonMinuteExceeded
	ReasonMonthExceeded
)

// Error is returned when a request exceeds its plan's quota.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

// Limiter enforces per-minute and, when configured on the plan, per-month
// quotas against a rate-limit identity tag.
type Limiter struct {
	store  counterstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter creates a Limiter backed by the given counter store. Counter
// store failures mid-request are fail-open: they are logged and the
// request is allowed through, since denying service over an infrastructure
// hiccup is worse than an uncounted request.
func NewLimiter(store counterstore.Store, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger, now: time.Now}
}

// Check increments and evaluates both windows for the given rate-limit key
// base (see gatewayauth.Identity.RateLimitKeyBase) and plan. Per spec, a
// rejected request still consumed its increment, and the per-minute check
// is evaluated before the per-month check. A nil return means the request
// may proceed, including when it proceeds because the counter store itself
// failed.
func (l *Limiter) Check(ctx context.Context, keyBase string, plan registry.Plan) error {
	now := l.now().UTC()

	minuteKey := fmt.Sprintf("%s:%d", keyBase, now.Unix()/60)
	minuteCount, err := l.incrAndMaybeExpire(ctx, minuteKey, minuteWindow)
	if err != nil {
		l.logger.Warn("counter store failure, failing open", "key", minuteKey, "error", err)
		return nil
	}
	if minuteCount > int64(plan.RequestsPerMinute) {
		return &Error{Reason: ReasonMinuteExceeded, Message: "rate limit exceeded"}
	}

	if plan.RequestsPerMonth != nil {
		monthKey := fmt.Sprintf("%s:month:%d-%d", keyBase, now.Year(), int(now.Month()))
		monthCount, err := l.incrAndMaybeExpire(ctx, monthKey, monthTTL)
		if err != nil {
			l.logger.Warn("counter store failure, failing open", "key", monthKey, "error", err)
			return nil
		}
		if monthCount > int64(*plan.RequestsPerMonth) {
			return &Error{Reason: ReasonMonthExceeded, Message: "monthly rate limit exceeded"}
		}
	}

	return nil
}

// incrAndMaybeExpire increments key and, only on the first increment, sets
// its TTL. A race where two callers both observe count==1 is harmless:
// Expire is idempotent.
func (l *Limiter) incrAndMaybeExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %q: %w", key, err)
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, ttl); err != nil {
			return 0, fmt.Errorf("setting expiry on counter %q: %w", key, err)
		}
	}
	return count, nil
}
