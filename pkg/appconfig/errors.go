package appconfig

import (
	"errors"
	"fmt"
)

// Kind classifies errors returned by Config.
type Kind int

const (
	// KindUnknown is reported for errors this package did not produce,
	// such as failures raised by the remote store itself.
	KindUnknown Kind = iota
	// KindUsage is a missing name or value argument.
	KindUsage
	// KindConflict is a write that collides with an existing or constant item.
	KindConflict
	// KindNotFound is a delete of something that is not there.
	KindNotFound
	// KindType is a value the remote store cannot hold, or returned.
	KindType
	// KindValue is an argument outside its allowed set.
	KindValue
	// KindConfig is a remote operation with no remote store configured.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindType:
		return "type"
	case KindValue:
		return "value"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

var (
	ErrMissingName         = errors.New("name is required")
	ErrMissingValue        = errors.New("value is required")
	ErrExists              = errors.New("item already exists")
	ErrConstant            = errors.New("item is defined as a constant")
	ErrNotFound            = errors.New("item does not exist in remote store")
	ErrEnvNotFound         = errors.New("environment variable does not exist")
	ErrUnsupportedType     = errors.New("unsupported value type for remote store")
	ErrInvalidBackingStore = errors.New("invalid backing store")
	ErrRemoteNotConfigured = errors.New("remote store connection has not been configured")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMissingName, KindUsage},
	{ErrMissingValue, KindUsage},
	{ErrExists, KindConflict},
	{ErrConstant, KindConflict},
	{ErrNotFound, KindNotFound},
	{ErrEnvNotFound, KindNotFound},
	{ErrUnsupportedType, KindType},
	{ErrInvalidBackingStore, KindValue},
	{ErrRemoteNotConfigured, KindConfig},
}

// Error records the operation and item name that failed.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind reports the classification of the wrapped error.
func (e *Error) Kind() Kind {
	return KindOf(e.Err)
}

// KindOf classifies err. Errors not produced by this package are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

func opError(op, name string, err error) error {
	return &Error{Op: op, Name: name, Err: err}
}
