package appconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/appconfig/pkg/kv"
)

// Config is a thread-safe item store. Each item lives either in process
// memory or in a remote kv.Store, as recorded in its Metadata. Every method
// starts with a maintenance pass that reaps items whose deadline has passed.
//
// The zero value is not usable; construct with New.
type Config struct {
	// state guards local, registry and expiry together.
	state    sync.Mutex
	local    *localStore
	registry *registry
	expiry   *scheduler

	remote remoteStore

	envMu sync.Mutex
	env   Environment

	clock    Clock
	logger   *zap.SugaredLogger
	recorder Recorder
}

// New returns an empty Config. Without WithRemote or ConnectRemote every
// remote operation fails with ErrRemoteNotConfigured.
func New(opts ...Option) *Config {
	c := &Config{
		local:    newLocalStore(),
		registry: newRegistry(),
		expiry:   newScheduler(),
		env:      OSEnvironment{},
		clock:    SystemClock{},
		logger:   zap.NewNop().Sugar(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnectRemote opens the remote store described by cfg and installs it,
// closing any previously installed store.
func (c *Config) ConnectRemote(ctx context.Context, cfg kv.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); cfg.StartupProbeTimeout == 0 || d < cfg.StartupProbeTimeout {
			cfg.StartupProbeTimeout = d
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger.Infow
	}
	store, err := kv.NewStoreFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("connect remote store: %w", err)
	}
	if prev := c.remote.swap(store); prev != nil {
		prev.Close()
	}
	return nil
}

// RemoteConfigured reports whether a remote store is installed.
func (c *Config) RemoteConfigured() bool {
	return c.remote.configured()
}

// Ping checks the remote store, if one is installed.
func (c *Config) Ping(ctx context.Context) error {
	s, err := c.remote.handle()
	if err != nil {
		return nil
	}
	return s.Ping(ctx)
}

// Close releases the remote store.
func (c *Config) Close() error {
	if prev := c.remote.swap(nil); prev != nil {
		return prev.Close()
	}
	return nil
}

// maintain reaps every expiry entry that is due.
func (c *Config) maintain(ctx context.Context) {
	now := c.clock.Now()

	c.state.Lock()
	due := c.expiry.popDue(now)
	for _, e := range due {
		if e.backing == Local {
			c.local.delete(e.name)
		}
		c.registry.remove(e.name)
	}
	c.state.Unlock()

	if len(due) == 0 {
		return
	}

	counts := make(map[BackingStore]int, 2)
	names := make([]string, 0, len(due))
	for _, e := range due {
		counts[e.backing]++
		names = append(names, e.name)
	}
	for backing, n := range counts {
		c.recorder.RecordReaped(ctx, backing, n)
	}
	c.logger.Debugw("Reaped expired items", "count", len(due), "names", names)
}

// armLocked schedules or cancels the expiry entry for name. Caller holds state.
func (c *Config) armLocked(name string, backing BackingStore, timeout int64) {
	if timeout > 0 {
		c.expiry.schedule(name, backing, c.clock.Now()+timeout)
		return
	}
	c.expiry.cancel(name)
}

// writeLocalLocked stores value and re-arms its deadline. Caller holds state.
func (c *Config) writeLocalLocked(name string, value any, meta Metadata) error {
	if err := c.local.set(name, value, meta.Ownership); err != nil {
		return err
	}
	c.armLocked(name, Local, meta.Timeout)
	return nil
}

func (c *Config) restoreLocked(name string, prev Metadata, hadPrev bool) {
	if hadPrev {
		c.registry.put(name, prev)
		return
	}
	c.registry.remove(name)
}

// dropRemote removes a value left behind when an item moves to local storage.
func (c *Config) dropRemote(ctx context.Context, name string) {
	s, err := c.remote.handle()
	if err != nil {
		return
	}
	if _, err := s.Del(ctx, name); err != nil {
		c.logger.Warnw("Failed to remove remote value after re-registering locally", "name", name, "error", err)
	}
}

// remoteError wraps errors raised by this package and passes errors from the
// remote store through unchanged.
func remoteError(op, name string, err error) error {
	if err == nil || KindOf(err) == KindUnknown {
		return err
	}
	return opError(op, name, err)
}

// Register records metadata for name and writes its value. By default the
// item is local, held by reference, mutable and never expires.
//
// Register fails with ErrConstant when the existing item is constant (even
// with Overwrite), with ErrExists when the name is taken and Overwrite was
// not given, and with ErrInvalidBackingStore for an unknown backing store.
// Remote items are always held by value.
func (c *Config) Register(ctx context.Context, name string, value any, opts ...RegisterOption) (err error) {
	const op = "register"
	c.maintain(ctx)

	if name == "" {
		return opError(op, name, ErrMissingName)
	}

	ro := registerOptions{meta: defaultMetadata}
	for _, opt := range opts {
		opt(&ro)
	}
	meta := ro.meta
	defer func() { c.recorder.RecordOperation(ctx, op, meta.BackingStore, err) }()

	if ro.err != nil {
		return opError(op, name, ro.err)
	}
	if !meta.BackingStore.Valid() {
		return opError(op, name, fmt.Errorf("%w: %s", ErrInvalidBackingStore, meta.BackingStore))
	}
	if meta.BackingStore == Remote {
		meta.Ownership = ByValue
		if !c.remote.configured() {
			return opError(op, name, ErrRemoteNotConfigured)
		}
	}

	c.state.Lock()
	prev, hadPrev := c.registry.get(name)
	if hadPrev && prev.Constant {
		c.state.Unlock()
		return opError(op, name, ErrConstant)
	}
	if (hadPrev || c.local.has(name)) && !ro.overwrite {
		c.state.Unlock()
		return opError(op, name, ErrExists)
	}
	c.registry.put(name, meta)

	if meta.BackingStore == Local {
		if err := c.writeLocalLocked(name, value, meta); err != nil {
			c.restoreLocked(name, prev, hadPrev)
			c.state.Unlock()
			return opError(op, name, err)
		}
		c.state.Unlock()
		if hadPrev && prev.BackingStore == Remote {
			c.dropRemote(ctx, name)
		}
		return nil
	}
	c.state.Unlock()

	// The metadata is visible before the remote write lands; a concurrent Get
	// in that window sees the item as absent.
	if err := c.remote.set(ctx, name, value, meta.Timeout); err != nil {
		c.state.Lock()
		if cur, ok := c.registry.get(name); ok && cur == meta {
			c.restoreLocked(name, prev, hadPrev)
		}
		c.state.Unlock()
		return remoteError(op, name, err)
	}

	c.state.Lock()
	if cur, ok := c.registry.get(name); ok && cur.BackingStore == Remote {
		c.armLocked(name, Remote, meta.Timeout)
		c.local.delete(name)
	}
	c.state.Unlock()
	return nil
}

// GetRegistration returns the metadata recorded for name.
func (c *Config) GetRegistration(ctx context.Context, name string) (Metadata, bool, error) {
	c.maintain(ctx)

	if name == "" {
		return Metadata{}, false, opError("get_registration", name, ErrMissingName)
	}

	c.state.Lock()
	defer c.state.Unlock()
	m, ok := c.registry.get(name)
	return m, ok, nil
}

// Set writes value using the item's registered policy, or the default
// policy for unregistered names. A registered timeout is re-armed from now.
func (c *Config) Set(ctx context.Context, name string, value any) (err error) {
	const op = "set"
	c.maintain(ctx)

	if name == "" {
		return opError(op, name, ErrMissingName)
	}

	c.state.Lock()
	meta := c.registry.resolve(name)
	defer func() { c.recorder.RecordOperation(ctx, op, meta.BackingStore, err) }()

	if meta.Constant {
		c.state.Unlock()
		return opError(op, name, ErrConstant)
	}
	if meta.BackingStore == Local {
		err := c.writeLocalLocked(name, value, meta)
		c.state.Unlock()
		if err != nil {
			return opError(op, name, err)
		}
		return nil
	}
	c.state.Unlock()

	if err := c.remote.set(ctx, name, value, meta.Timeout); err != nil {
		return remoteError(op, name, err)
	}

	c.state.Lock()
	if cur, ok := c.registry.get(name); ok && cur.BackingStore == Remote {
		c.armLocked(name, Remote, meta.Timeout)
	}
	c.state.Unlock()
	return nil
}

// Get returns the value of name, or nil when it is absent or falsy.
func (c *Config) Get(ctx context.Context, name string) (any, error) {
	return c.GetOr(ctx, name, nil)
}

// GetOr returns the value of name, or def when the item is absent.
//
// A stored value that is falsy (nil, false, zero, "", or an empty slice, map
// or array) is also replaced by def. Use Has to tell the two apart.
func (c *Config) GetOr(ctx context.Context, name string, def any) (value any, err error) {
	const op = "get"
	c.maintain(ctx)

	if name == "" {
		return nil, opError(op, name, ErrMissingName)
	}

	c.state.Lock()
	meta := c.registry.resolve(name)
	defer func() { c.recorder.RecordOperation(ctx, op, meta.BackingStore, err) }()

	if meta.BackingStore == Local {
		v, ok, err := c.local.get(name, meta.Ownership)
		c.state.Unlock()
		if err != nil {
			return nil, opError(op, name, err)
		}
		if !ok || isFalsy(v) {
			return def, nil
		}
		return v, nil
	}
	c.state.Unlock()

	v, ok, err := c.remote.get(ctx, name)
	if err != nil {
		return nil, remoteError(op, name, err)
	}
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}

// Lookup is GetOr with a typed result. def is returned when the item is
// absent, falsy, or not a T.
func Lookup[T any](ctx context.Context, c *Config, name string, def T) (T, error) {
	v, err := c.GetOr(ctx, name, nil)
	if err != nil || v == nil {
		return def, err
	}
	t, ok := v.(T)
	if !ok {
		return def, nil
	}
	return t, nil
}

// Delete removes name and its metadata. Deleting an absent local item is a
// no-op; deleting an absent remote item fails with ErrNotFound.
func (c *Config) Delete(ctx context.Context, name string) (err error) {
	const op = "delete"
	c.maintain(ctx)

	if name == "" {
		return opError(op, name, ErrMissingName)
	}

	c.state.Lock()
	meta := c.registry.resolve(name)
	defer func() { c.recorder.RecordOperation(ctx, op, meta.BackingStore, err) }()

	if meta.BackingStore == Local {
		c.local.delete(name)
		c.registry.remove(name)
		c.expiry.cancel(name)
		c.state.Unlock()
		return nil
	}
	c.state.Unlock()

	err = c.remote.delete(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// The value may still be there; keep the metadata that describes it.
		return remoteError(op, name, err)
	}

	c.state.Lock()
	if cur, ok := c.registry.get(name); ok && cur.BackingStore == Remote {
		c.registry.remove(name)
		c.expiry.cancel(name)
	}
	c.state.Unlock()
	return remoteError(op, name, err)
}

// Has reports whether name holds a value in the backing store its metadata
// selects (local for unregistered names).
func (c *Config) Has(ctx context.Context, name string) (ok bool, err error) {
	const op = "has"
	c.maintain(ctx)

	if name == "" {
		return false, opError(op, name, ErrMissingName)
	}

	c.state.Lock()
	meta := c.registry.resolve(name)
	if meta.BackingStore == Local {
		ok := c.local.has(name)
		c.state.Unlock()
		return ok, nil
	}
	c.state.Unlock()

	ok, err = c.remote.has(ctx, name)
	return ok, remoteError(op, name, err)
}

// TypeOf reports the remote value type of a remote item ("string", "hash",
// "none", ...). Local items report "local".
func (c *Config) TypeOf(ctx context.Context, name string) (string, error) {
	const op = "type"
	c.maintain(ctx)

	if name == "" {
		return "", opError(op, name, ErrMissingName)
	}

	c.state.Lock()
	meta := c.registry.resolve(name)
	c.state.Unlock()

	if meta.BackingStore == Local {
		return Local.String(), nil
	}
	t, err := c.remote.typeOf(ctx, name)
	return t, remoteError(op, name, err)
}

// Stats is a point-in-time view of the store's bookkeeping.
type Stats struct {
	LocalItems    int  `json:"local_items"`
	Registered    int  `json:"registered"`
	PendingExpiry int  `json:"pending_expiry"`
	Remote        bool `json:"remote"`
}

func (c *Config) Stats(ctx context.Context) Stats {
	c.maintain(ctx)

	c.state.Lock()
	defer c.state.Unlock()
	return Stats{
		LocalItems:    c.local.len(),
		Registered:    c.registry.len(),
		PendingExpiry: c.expiry.len(),
		Remote:        c.remote.configured(),
	}
}
