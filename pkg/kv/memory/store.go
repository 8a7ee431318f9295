package memory

import (
	"context"
	"sync"
	"time"

	"github.com/leafsii/appconfig/pkg/kv"
)

// entry holds one key. str is used by strings, hash by hashes.
type entry struct {
	kind    string
	str     string
	hash    map[string]string
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a new in-memory store with optional janitor for TTL cleanup
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		data:            make(map[string]*entry),
		now:             time.Now,
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// janitor runs background expiration cleanup
func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// evictExpired removes all expired keys
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
		}
	}
}

// lookup returns the live entry for key, dropping it first if it has
// expired. Caller must hold the write lock.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// peek is lookup for readers; expired entries are reported missing but left
// for the janitor. Caller must hold at least the read lock.
func (s *Store) peek(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok || e.expired(s.now()) {
		return nil, false
	}
	return e, true
}

func (s *Store) deadline(ttl []time.Duration) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return s.now().Add(ttl[0])
	}
	return time.Time{}
}

// String operations

func (s *Store) SetString(ctx context.Context, key string, value string, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{kind: kv.TypeString, str: value, expires: s.deadline(ttl)}
	return nil
}

func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.peek(key)
	if !ok {
		return "", kv.ErrNotFound
	}
	if e.kind != kv.TypeString {
		return "", kv.ErrWrongType
	}
	return e.str, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if _, ok := s.lookup(key); ok {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, key := range keys {
		if _, ok := s.peek(key); ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.data, key)
		return true, nil
	}
	e.expires = s.now().Add(ttl)
	return true, nil
}

// TTL returns -1 for a key without expiry and kv.ErrNotFound for a missing key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.peek(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	if e.expires.IsZero() {
		return -1, nil
	}
	return e.expires.Sub(s.now()), nil
}

func (s *Store) Type(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.peek(key)
	if !ok {
		return kv.TypeNone, nil
	}
	return e.kind, nil
}

// HSet stores a hash field. It is not part of kv.Store; it lets callers
// place non-string keys, as another Redis client would.
func (s *Store) HSet(ctx context.Context, key string, field string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		e = &entry{kind: kv.TypeHash, hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.kind != kv.TypeHash {
		return kv.ErrWrongType
	}
	e.hash[field] = value
	return nil
}

// Health check

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
		}
		<-s.janitorDone
	})
	return nil
}

var _ kv.Store = (*Store)(nil)
