package kv

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// DefaultRedisPort is used when Config.Port is left at zero.
const DefaultRedisPort = 6379

// ConnectionTestKey is the key probed with EXISTS when a store is opened.
const ConnectionTestKey = "__connection_test__"

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendMemory, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("unsupported backend: %q (supported: %s, %s)", s, BackendMemory, BackendRedis)
	}
}

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// Config holds configuration for creating a Store instance
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// RedisURL is a full connection string, e.g. redis://:password@localhost:6379/1.
	// When set it takes precedence over Host, Port, Password and DB.
	RedisURL string

	// Host, Port, Password and DB describe a Redis server when RedisURL is empty.
	Host     string
	Port     int
	Password string
	DB       int

	// JanitorInterval controls how often the in-memory store cleans up expired keys.
	// Default: 30 seconds
	JanitorInterval time.Duration

	// StartupProbeTimeout bounds the connection probe run when the store is opened.
	// Default: 5 seconds
	StartupProbeTimeout time.Duration

	// Logger receives connection events. If nil, no logging occurs.
	Logger LogFunc
}

// Address returns host:port for the configured Redis server.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultRedisPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

// factories holds registered store factories
var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided
// configuration and probes it once. A store that fails the probe is closed
// and the error returned; there is no fallback to another backend.
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = 5 * time.Second
	}

	factory, ok := factories[cfg.Backend]
	if !ok {
		if _, err := ParseBackend(string(cfg.Backend)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s backend not registered", cfg.Backend)
	}

	store, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()

	if _, err := store.Exists(ctx, ConnectionTestKey); err != nil {
		store.Close()
		if cfg.Logger != nil {
			cfg.Logger("kv store connection probe failed", "backend", string(cfg.Backend), "error", err.Error())
		}
		return nil, fmt.Errorf("probe %s backend: %w", cfg.Backend, err)
	}

	if cfg.Logger != nil {
		cfg.Logger("kv store connected", "backend", string(cfg.Backend))
	}
	return store, nil
}
