// Package kv provides the key-value collaborator used as the remote backing
// store of package appconfig, with in-memory and Redis-backed implementations.
//
// Store covers string values with TTLs plus enough of the hash and list
// commands for Type to report non-string keys the way Redis does.
//
// Example usage:
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend: kv.BackendRedis,
//		Host:    "localhost",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	if err := store.SetString(ctx, "greeting", "hello", 10*time.Second); err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := store.GetString(ctx, "greeting")
//	if errors.Is(err, kv.ErrNotFound) {
//		log.Println("Key not found")
//	}
//
// Backends register themselves from their package init, so callers import
// them for side effects:
//
//	import _ "github.com/leafsii/appconfig/pkg/kv/redis"
package kv
