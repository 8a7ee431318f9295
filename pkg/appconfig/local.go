package appconfig

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

// Cloner lets a value supply its own deep copy for ByValue items instead of
// the reflection-based copy.
type Cloner interface {
	CloneValue() any
}

func deepCopy(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Cloner:
		return t.CloneValue(), nil
	}
	out, err := copystructure.Copy(v)
	if err != nil {
		return nil, fmt.Errorf("copy %T: %w", v, err)
	}
	return out, nil
}

// localStore holds the values of Local items. Not safe for concurrent use;
// Config guards it with its state lock, so copies made here happen inside the
// critical section.
type localStore struct {
	items map[string]any
}

func newLocalStore() *localStore {
	return &localStore{items: make(map[string]any)}
}

func (s *localStore) set(name string, value any, own Ownership) error {
	if own == ByValue {
		c, err := deepCopy(value)
		if err != nil {
			return err
		}
		value = c
	}
	s.items[name] = value
	return nil
}

func (s *localStore) get(name string, own Ownership) (any, bool, error) {
	v, ok := s.items[name]
	if !ok {
		return nil, false, nil
	}
	if own == ByValue {
		c, err := deepCopy(v)
		if err != nil {
			return nil, false, err
		}
		v = c
	}
	return v, true, nil
}

// delete is a no-op for a missing name.
func (s *localStore) delete(name string) {
	delete(s.items, name)
}

func (s *localStore) has(name string) bool {
	_, ok := s.items[name]
	return ok
}

func (s *localStore) len() int {
	return len(s.items)
}
