package appconfig

import (
	"fmt"
	"strings"
)

// BackingStore selects where an item's value lives.
type BackingStore int

const (
	Local BackingStore = iota
	Remote
)

func (b BackingStore) String() string {
	switch b {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("BackingStore(%d)", int(b))
	}
}

// Valid reports whether b is Local or Remote.
func (b BackingStore) Valid() bool {
	return b == Local || b == Remote
}

// MarshalText renders the backing store as "local" or "remote".
func (b BackingStore) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, ErrInvalidBackingStore
	}
	return []byte(b.String()), nil
}

func (b *BackingStore) UnmarshalText(text []byte) error {
	parsed, err := ParseBackingStore(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBackingStore accepts "local", "remote" and "redis" (an alias for remote).
func ParseBackingStore(s string) (BackingStore, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return Local, nil
	case "remote", "redis":
		return Remote, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBackingStore, s)
	}
}

// Ownership decides whether the local store aliases values or copies them.
type Ownership int

const (
	ByReference Ownership = iota
	ByValue
)

func (o Ownership) String() string {
	if o == ByValue {
		return "by_value"
	}
	return "by_reference"
}

func (o Ownership) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts "by_reference" and "by_value".
func (o *Ownership) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "by_reference":
		*o = ByReference
	case "by_value":
		*o = ByValue
	default:
		return fmt.Errorf("invalid ownership %q", text)
	}
	return nil
}

// Metadata is the per-item policy record.
type Metadata struct {
	BackingStore BackingStore `json:"backing_store"`
	Ownership    Ownership    `json:"ownership"`
	Constant     bool         `json:"constant"`
	// Timeout is in whole seconds; zero means the item never expires.
	Timeout int64 `json:"timeout"`
}

// ByReference reports whether local reads and writes alias the caller's value.
func (m Metadata) ByReference() bool {
	return m.Ownership == ByReference
}

// defaultMetadata applies to names written by Set without a registration.
var defaultMetadata = Metadata{BackingStore: Local, Ownership: ByReference}

// registry maps item names to metadata. Not safe for concurrent use; Config
// guards it with its state lock.
type registry struct {
	items map[string]Metadata
}

func newRegistry() *registry {
	return &registry{items: make(map[string]Metadata)}
}

func (r *registry) put(name string, m Metadata) {
	r.items[name] = m
}

func (r *registry) get(name string) (Metadata, bool) {
	m, ok := r.items[name]
	return m, ok
}

// resolve returns the registered metadata or the default policy.
func (r *registry) resolve(name string) Metadata {
	if m, ok := r.items[name]; ok {
		return m
	}
	return defaultMetadata
}

func (r *registry) remove(name string) {
	delete(r.items, name)
}

func (r *registry) len() int {
	return len(r.items)
}
