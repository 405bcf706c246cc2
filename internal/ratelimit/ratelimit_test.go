package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/northwind/apigateway/internal/counterstore"
	"github.com/northwind/apigateway/internal/registry"
)

func intPtr(v int) *int { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckAllowsUnderMinuteLimit(t *testing.T) {
	store := counterstore.NewLocalStore()
	defer store.Close()
	l := NewLimiter(store, testLogger())
	plan := registry.Plan{RequestsPerMinute: 3}

	for i := 0; i < 3; i++ {
		if err := l.Check(context.Background(), "rate_limit:1", plan); err != nil {
			t.Fatalf("Check() request %d error: %v", i, err)
		}
	}
}

func TestCheckRejectsOverMinuteLimit(t *testing.T) {
	store := counterstore.NewLocalStore()
	defer store.Close()
	l := NewLimiter(store, testLogger())
	plan := registry.Plan{RequestsPerMinute: 2}

	for i := 0; i < 2; i++ {
		if err := l.Check(context.Background(), "rate_limit:1", plan); err != nil {
			t.Fatalf("Check() request %d error: %v", i, err)
		}
	}

	err := l.Check(context.Background(), "rate_limit:1", plan)
	var rlErr *Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("Check() error = %v, want *Error", err)
	}
	if rlErr.Reason != ReasonMinuteExceeded {
		t.Errorf("Reason = %v, want ReasonMinuteExceeded", rlErr.Reason)
	}
}

func TestCheckSeparatesIdentities(t *testing.T) {
	store := counterstore.NewLocalStore()
	defer store.Close()
	l := NewLimiter(store, testLogger())
	plan := registry.Plan{RequestsPerMinute: 1}

	if err := l.Check(context.Background(), "rate_limit:1", plan); err != nil {
		t.Fatalf("Check() key identity error: %v", err)
	}
	// A separate identity (e.g. a client override) must have its own bucket.
	if err := l.Check(context.Background(), "rate_limit_client:1", plan); err != nil {
		t.Fatalf("Check() client identity error: %v", err)
	}
}

func TestCheckMonthlyLimit(t *testing.T) {
	store := counterstore.NewLocalStore()
	defer store.Close()
	l := NewLimiter(store, testLogger())
	plan := registry.Plan{RequestsPerMinute: 1000, RequestsPerMonth: intPtr(1)}

	if err := l.Check(context.Background(), "rate_limit:1", plan); err != nil {
		t.Fatalf("Check() first request error: %v", err)
	}

	err := l.Check(context.Background(), "rate_limit:1", plan)
	var rlErr *Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("Check() error = %v, want *Error", err)
	}
	if rlErr.Reason != ReasonMonthExceeded {
		t.Errorf("Reason = %v, want ReasonMonthExceeded", rlErr.Reason)
	}
}

func TestCheckMinuteCheckedBeforeMonth(t *testing.T) {
	store := counterstore.NewLocalStore()
	defer store.Close()
	l := NewLimiter(store, testLogger())
	plan := registry.Plan{RequestsPerMinute: 1, RequestsPerMonth: intPtr(1)}

	if err := l.Check(context.Background(), "rate_limit:1", plan); err != nil {
		t.Fatalf("Check() first request error: %v", err)
	}

	// Both windows are now exhausted; the minute error must surface first.
	err := l.Check(context.Background(), "rate_limit:1", plan)
	var rlErr *Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("Check() error = %v, want *Error", err)
	}
	if rlErr.Reason != ReasonMinuteExceeded {
		t.Errorf("Reason = %v, want ReasonMinuteExceeded (tie-break)", rlErr.Reason)
	}
}
