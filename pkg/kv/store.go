package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or field is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrWrongType is returned when an operation is applied to a key holding a
// value of another kind (mirrors Redis WRONGTYPE).
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Value kinds reported by Store.Type. They match the names returned by the
// Redis TYPE command.
const (
	TypeNone   = "none"
	TypeString = "string"
	TypeHash   = "hash"
	TypeList   = "list"
)

// Store is the subset of Redis the item store relies on: string values,
// key expiry and TYPE.
type Store interface {
	// String operations
	SetString(ctx context.Context, key string, value string, ttl ...time.Duration) error
	GetString(ctx context.Context, key string) (string, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Type(ctx context.Context, key string) (string, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
