package appconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Name  string
	Tags  []string
	Attrs map[string]any
}

func TestDeepCopy(t *testing.T) {
	orig := &nested{Name: "n", Tags: []string{"a"}, Attrs: map[string]any{"k": []int{1}}}

	out, err := deepCopy(orig)
	require.NoError(t, err)

	cp := out.(*nested)
	assert.Equal(t, orig, cp)
	assert.NotSame(t, orig, cp)

	cp.Tags[0] = "changed"
	cp.Attrs["k"].([]int)[0] = 9
	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, 1, orig.Attrs["k"].([]int)[0])

	out, err = deepCopy(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestLocalStore(t *testing.T) {
	s := newLocalStore()

	_, ok, err := s.get("x", ByReference)
	require.NoError(t, err)
	assert.False(t, ok)

	value := []int{1, 2}
	require.NoError(t, s.set("ref", value, ByReference))
	require.NoError(t, s.set("val", value, ByValue))
	value[0] = 100

	got, ok, _ := s.get("ref", ByReference)
	require.True(t, ok)
	assert.Equal(t, []int{100, 2}, got)

	got, ok, _ = s.get("val", ByValue)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got)

	assert.True(t, s.has("ref"))
	s.delete("ref")
	s.delete("ref")
	assert.False(t, s.has("ref"))
	assert.Equal(t, 1, s.len())
}
