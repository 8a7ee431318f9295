package appconfig

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leafsii/appconfig/pkg/kv"
)

// remoteStore adapts a kv.Store to string-only item storage. The lock guards
// the store handle only; it is released before any network call.
type remoteStore struct {
	mu    sync.RWMutex
	store kv.Store

	// Concurrent reads of a name share one round trip, but only with reads
	// that started after the last completed write of that name: writes bump
	// the name's generation, which is part of the singleflight key.
	reads  singleflight.Group
	genMu  sync.Mutex
	writes map[string]uint64
}

func (r *remoteStore) readKey(name string) string {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return name + "\x00" + strconv.FormatUint(r.writes[name], 10)
}

func (r *remoteStore) wrote(name string) {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.writes == nil {
		r.writes = make(map[string]uint64)
	}
	r.writes[name]++
}

func (r *remoteStore) handle() (kv.Store, error) {
	r.mu.RLock()
	s := r.store
	r.mu.RUnlock()
	if s == nil {
		return nil, ErrRemoteNotConfigured
	}
	return s, nil
}

// swap installs s and returns the previous handle.
func (r *remoteStore) swap(s kv.Store) kv.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.store
	r.store = s
	return prev
}

func (r *remoteStore) configured() bool {
	_, err := r.handle()
	return err == nil
}

// set writes value, which must be a string. A nonzero timeout gives the
// remote key a native expiry one second longer than the local entry that
// reaps its metadata.
func (r *remoteStore) set(ctx context.Context, name string, value any, timeout int64) error {
	s, err := r.handle()
	if err != nil {
		return err
	}
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedType, value)
	}
	defer r.wrote(name)
	if err := s.SetString(ctx, name, str); err != nil {
		return err
	}
	if timeout > 0 {
		if _, err := s.Expire(ctx, name, time.Duration(timeout+1)*time.Second); err != nil {
			return err
		}
	}
	return nil
}

type remoteRead struct {
	value string
	found bool
}

// get returns the string stored at name. A caller whose ctx ends stops
// waiting without failing the other callers sharing the read.
func (r *remoteStore) get(ctx context.Context, name string) (string, bool, error) {
	s, err := r.handle()
	if err != nil {
		return "", false, err
	}

	shared := context.WithoutCancel(ctx)
	ch := r.reads.DoChan(r.readKey(name), func() (any, error) {
		return readString(shared, s, name)
	})

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		v := res.Val.(remoteRead)
		return v.value, v.found, nil
	}
}

func readString(ctx context.Context, s kv.Store, name string) (remoteRead, error) {
	typ, err := s.Type(ctx, name)
	if err != nil {
		return remoteRead{}, err
	}
	switch typ {
	case kv.TypeNone:
		return remoteRead{}, nil
	case kv.TypeString:
	default:
		return remoteRead{}, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}

	value, err := s.GetString(ctx, name)
	if errors.Is(err, kv.ErrNotFound) {
		// expired between TYPE and GET
		return remoteRead{}, nil
	}
	if err != nil {
		return remoteRead{}, err
	}
	return remoteRead{value: value, found: true}, nil
}

func (r *remoteStore) typeOf(ctx context.Context, name string) (string, error) {
	s, err := r.handle()
	if err != nil {
		return "", err
	}
	return s.Type(ctx, name)
}

// delete fails with ErrNotFound when name is absent.
func (r *remoteStore) delete(ctx context.Context, name string) error {
	s, err := r.handle()
	if err != nil {
		return err
	}
	defer r.wrote(name)
	n, err := s.Del(ctx, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *remoteStore) has(ctx context.Context, name string) (bool, error) {
	s, err := r.handle()
	if err != nil {
		return false, err
	}
	n, err := s.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
