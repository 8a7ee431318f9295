// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leafsii/appconfig/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

type storeTest struct {
	name string
	keys []string
	test func(t *testing.T, store kv.Store)
}

// RunConformanceTests runs all conformance tests against a Store implementation.
// Every test deletes the keys it touches before and after running, so the
// suite can share a live server with other data.
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	groups := []struct {
		name  string
		tests []storeTest
	}{
		{"StringOperations", []storeTest{
			{"GetNonExistent", []string{"test:nonexistent"}, testGetNonExistent},
			{"SetStringGetString", []string{"test:setstring"}, testSetString},
			{"Overwrite", []string{"test:overwrite"}, testOverwrite},
		}},
		{"KeyOperations", []storeTest{
			{"Del", []string{"test:del1", "test:del2"}, testDel},
			{"Exists", []string{"test:exists"}, testExists},
			{"Type", []string{"test:type:str", "test:type:none"}, testType},
		}},
		{"TTLOperations", []storeTest{
			{"SetWithTTL", []string{"test:ttl"}, testSetWithTTL},
			{"Expire", []string{"test:expire", "test:expire:missing"}, testExpire},
			{"TTL", []string{"test:ttl-check"}, testTTL},
		}},
	}

	for _, g := range groups {
		t.Run(g.name, func(t *testing.T) {
			for _, tt := range g.tests {
				t.Run(tt.name, func(t *testing.T) {
					store := factory(t)
					defer store.Close()

					ctx := context.Background()
					store.Del(ctx, tt.keys...)
					defer store.Del(ctx, tt.keys...)

					tt.test(t, store)
				})
			}
		})
	}

	t.Run("HealthCheck", func(t *testing.T) {
		store := factory(t)
		defer store.Close()
		if err := store.Ping(context.Background()); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
	})
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if _, err := store.GetString(ctx, "test:nonexistent"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testSetString(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if err := store.SetString(ctx, "test:setstring", "hello string"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	result, err := store.GetString(ctx, "test:setstring")
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if result != "hello string" {
		t.Fatalf("Expected %q, got %q", "hello string", result)
	}
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()

	store.SetString(ctx, "test:overwrite", "first", time.Minute)
	if err := store.SetString(ctx, "test:overwrite", "second"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	result, _ := store.GetString(ctx, "test:overwrite")
	if result != "second" {
		t.Fatalf("Expected %q, got %q", "second", result)
	}

	// A plain SET clears any previous expiry.
	ttl, err := store.TTL(ctx, "test:overwrite")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 after overwrite, got %v", ttl)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.SetString(ctx, "test:del1", "test")
	store.SetString(ctx, "test:del2", "test")

	deleted, err := store.Del(ctx, "test:del1")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	if _, err := store.GetString(ctx, "test:del1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}
	if _, err := store.GetString(ctx, "test:del2"); err != nil {
		t.Fatalf("Expected test:del2 to still exist, got %v", err)
	}

	deleted, err = store.Del(ctx, "test:del1")
	if err != nil {
		t.Fatalf("Del of missing key failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("Expected 0 deleted for missing key, got %d", deleted)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()

	count, err := store.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 for non-existent key, got %d", count)
	}

	store.SetString(ctx, "test:exists", "test")

	count, err = store.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 for existing key, got %d", count)
	}
}

func testType(t *testing.T, store kv.Store) {
	ctx := context.Background()

	store.SetString(ctx, "test:type:str", "v")

	cases := map[string]string{
		"test:type:str":  kv.TypeString,
		"test:type:none": kv.TypeNone,
	}
	for key, want := range cases {
		got, err := store.Type(ctx, key)
		if err != nil {
			t.Fatalf("Type(%s) failed: %v", key, err)
		}
		if got != want {
			t.Fatalf("Type(%s): expected %q, got %q", key, want, got)
		}
	}
}

func testSetWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if err := store.SetString(ctx, "test:ttl", "expires", 100*time.Millisecond); err != nil {
		t.Fatalf("Set with TTL failed: %v", err)
	}
	if _, err := store.GetString(ctx, "test:ttl"); err != nil {
		t.Fatalf("Expected key to exist initially, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.GetString(ctx, "test:ttl"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()

	store.SetString(ctx, "test:expire", "test")

	ok, err := store.Expire(ctx, "test:expire", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected Expire to return true for existing key")
	}

	ok, err = store.Expire(ctx, "test:expire:missing", time.Second)
	if err != nil {
		t.Fatalf("Expire on missing key failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected Expire to return false for missing key")
	}

	time.Sleep(150 * time.Millisecond)

	if n, _ := store.Exists(ctx, "test:expire"); n != 0 {
		t.Fatalf("Expected key to be expired, Exists returned %d", n)
	}
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if _, err := store.TTL(ctx, "test:ttl-check"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	store.SetString(ctx, "test:ttl-check", "test")
	ttl, err := store.TTL(ctx, "test:ttl-check")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 for key without TTL, got %v", ttl)
	}

	store.Expire(ctx, "test:ttl-check", 10*time.Second)
	ttl, err = store.TTL(ctx, "test:ttl-check")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("Expected TTL in (0, 10s], got %v", ttl)
	}
}
