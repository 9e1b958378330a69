package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromCmdable(raw), srv
}

func TestSetNXFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	ok, err := client.SetNX(ctx, client.IdempotencyKey("scope", "key-1"), "first", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first write to win")
	}

	ok, err = client.SetNX(ctx, client.IdempotencyKey("scope", "key-1"), "second", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second write to lose")
	}

	stored, err := client.Get(ctx, client.IdempotencyKey("scope", "key-1"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored != "first" {
		t.Fatalf("expected first value retained, got %q", stored)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	_, err := client.Get(ctx, client.IdempotencyKey("scope", "absent"))
	if !IsNil(err) {
		t.Fatalf("expected nil sentinel, got %v", err)
	}
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	for i := 0; i < 2; i++ {
		allowed, _, err := client.FixedWindowAllow(ctx, "quote:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	allowed, retryAfter, err := client.FixedWindowAllow(ctx, "quote:1.2.3.4", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retry-after %s", retryAfter)
	}

	// A fresh window starts once the counter expires.
	srv.FastForward(time.Minute + time.Second)
	allowed, _, err = client.FixedWindowAllow(ctx, "quote:1.2.3.4", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected new window after expiry")
	}
}

func TestFixedWindowSeparatesScopes(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	if allowed, _, _ := client.FixedWindowAllow(ctx, "quote:a", 1, time.Minute); !allowed {
		t.Fatalf("first scope should be allowed")
	}
	if allowed, _, _ := client.FixedWindowAllow(ctx, "quote:b", 1, time.Minute); !allowed {
		t.Fatalf("scopes must not share a window")
	}
}

func TestDelRemovesKeys(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	key := client.QuoteCacheKey("abc")
	if err := client.Set(ctx, key, "cached", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNil(err) {
		t.Fatalf("expected key gone, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "mk:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "mk:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.QuoteCacheKey("fp"); got != "mk:quote:fp" {
		t.Fatalf("unexpected quote cache key %s", got)
	}
	if got := client.IdempotencyKey("", "id"); got != "mk:idempotency:id" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}
