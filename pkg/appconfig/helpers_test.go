package appconfig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leafsii/appconfig/pkg/kv/memory"
)

const epoch = 1_700_000_000

type testEnv struct {
	cfg    *Config
	clock  *ManualClock
	remote *memory.Store
}

func newTestConfig(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	clock := NewManualClock(epoch)
	remote := memory.New(0)
	t.Cleanup(func() { remote.Close() })

	all := append([]Option{WithClock(clock), WithRemote(remote), WithEnvironment(NewMapEnvironment(nil))}, opts...)
	return &testEnv{cfg: New(all...), clock: clock, remote: remote}
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, KindOf(err), "error: %v", err)
}
