package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/leafsii/appconfig/pkg/kv"
	"github.com/leafsii/appconfig/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(kv.Config{RedisURL: redisURL})
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestOptions(t *testing.T) {
	opt, err := Options(kv.Config{Host: "cache.internal", Password: "secret", DB: 2})
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opt.Addr != "cache.internal:6379" {
		t.Fatalf("Expected default port, got %q", opt.Addr)
	}
	if opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("Unexpected options: %+v", opt)
	}

	opt, err = Options(kv.Config{RedisURL: "redis://:pw@localhost:6380/3", Host: "ignored"})
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opt.Addr != "localhost:6380" || opt.DB != 3 || opt.Password != "pw" {
		t.Fatalf("Unexpected options from URL: %+v", opt)
	}

	if _, err := Options(kv.Config{}); err == nil {
		t.Fatalf("Expected error without host or URL")
	}
}

func TestWrap(t *testing.T) {
	if got := wrap(nil); got != nil {
		t.Fatalf("Expected nil, got %v", got)
	}
	if got := wrap(fmt.Errorf("dial tcp: connection refused")); !errors.Is(got, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", got)
	}
	if got := wrap(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")); !errors.Is(got, kv.ErrWrongType) {
		t.Fatalf("Expected ErrWrongType, got %v", got)
	}
	if IsConnectionError(context.Canceled) {
		t.Fatalf("context.Canceled is not a connection error")
	}
}

func TestNewUnreachable(t *testing.T) {
	_, err := New(kv.Config{Host: "127.0.0.1", Port: 1})
	if !errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
}
