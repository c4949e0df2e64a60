//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"horse.fit/parrot/internal/config"
)

// Run with a real Postgres:
//
//	DATABASE_URL=postgres://... go test -tags integration ./internal/db/
func newIntegrationPool(t *testing.T) *Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, &config.Config{
		Environment: "test",
		LogLevel:    "error",
		DatabaseURL: dsn,
		DBMinConns:  1,
		DBMaxConns:  4,
	})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// Two consumers racing for the last unit of headroom must settle one-and-one:
// exactly one UPDATE wins, the loser sees ErrQuotaExceeded, and the stored
// usage never passes the limit.
func TestTryConsumeQuota_ConcurrentConsumersCannotOverdraw(t *testing.T) {
	pool := newIntegrationPool(t)
	ctx := context.Background()

	email := fmt.Sprintf("quota-race-%d@example.com", time.Now().UnixNano())
	user, err := pool.CreateUser(ctx, email, "Quota Race", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := pool.EnsureQuota(ctx, user.UserID, 1); err != nil {
		t.Fatalf("ensure quota: %v", err)
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = pool.TryConsumeQuota(ctx, user.UserID, 1)
		}(i)
	}
	wg.Wait()

	var wins, exceeded int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrQuotaExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if wins != 1 || exceeded != 1 {
		t.Fatalf("expected one winner and one quota rejection, got wins=%d exceeded=%d", wins, exceeded)
	}

	quota, err := pool.GetQuota(ctx, user.UserID)
	if err != nil {
		t.Fatalf("get quota: %v", err)
	}
	if quota.QuotaUsed != 1 || quota.QuotaLimit != 1 {
		t.Fatalf("unexpected quota state: used=%d limit=%d", quota.QuotaUsed, quota.QuotaLimit)
	}
}
