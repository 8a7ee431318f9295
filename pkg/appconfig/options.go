package appconfig

import (
	"context"

	"go.uber.org/zap"

	"github.com/leafsii/appconfig/pkg/kv"
)

// Recorder receives operation outcomes, e.g. for metrics.
type Recorder interface {
	RecordOperation(ctx context.Context, op string, backing BackingStore, err error)
	RecordReaped(ctx context.Context, backing BackingStore, count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(context.Context, string, BackingStore, error) {}
func (nopRecorder) RecordReaped(context.Context, BackingStore, int)              {}

// Option configures a Config at construction.
type Option func(*Config)

// WithClock replaces the system clock used for expiry deadlines.
func WithClock(clock Clock) Option {
	return func(c *Config) { c.clock = clock }
}

// WithRemote installs an already connected remote store.
func WithRemote(store kv.Store) Option {
	return func(c *Config) { c.remote.store = store }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) { c.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(c *Config) { c.recorder = r }
}

// WithEnvironment replaces the process environment behind the env namespace.
func WithEnvironment(env Environment) Option {
	return func(c *Config) { c.env = env }
}

type registerOptions struct {
	meta      Metadata
	overwrite bool
	err       error
}

// RegisterOption adjusts the metadata written by Register.
type RegisterOption func(*registerOptions)

// Copied makes the local store copy the value on write and on read.
func Copied() RegisterOption {
	return WithOwnership(ByValue)
}

func WithOwnership(o Ownership) RegisterOption {
	return func(r *registerOptions) { r.meta.Ownership = o }
}

// Overwrite allows Register to replace an existing, non-constant item.
func Overwrite() RegisterOption {
	return func(r *registerOptions) { r.overwrite = true }
}

// Constant rejects later calls to Set for the item.
func Constant() RegisterOption {
	return func(r *registerOptions) { r.meta.Constant = true }
}

// WithTimeout expires the item the given number of seconds after each write.
// Negative values are treated as zero.
func WithTimeout(seconds int64) RegisterOption {
	return func(r *registerOptions) {
		if seconds < 0 {
			seconds = 0
		}
		r.meta.Timeout = seconds
	}
}

func WithBackingStore(b BackingStore) RegisterOption {
	return func(r *registerOptions) { r.meta.BackingStore = b }
}

// WithBackingStoreName parses name with ParseBackingStore; an invalid name
// makes Register fail with ErrInvalidBackingStore.
func WithBackingStoreName(name string) RegisterOption {
	return func(r *registerOptions) {
		b, err := ParseBackingStore(name)
		if err != nil {
			r.err = err
			return
		}
		r.meta.BackingStore = b
	}
}
