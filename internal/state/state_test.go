package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/control"
	"github.com/dokzlo13/stripd/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewStore(d.DB)
}

func TestStore_Versions(t *testing.T) {
	s := newStore(t)

	payload, version, err := s.Get("k", "a")
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, int64(0), version)

	require.NoError(t, s.Set("k", "a", []byte(`1`)))
	require.NoError(t, s.Set("k", "a", []byte(`2`)))
	require.NoError(t, s.Set("k", "b", []byte(`3`)))
	require.NoError(t, s.Set("other", "a", []byte(`4`)))

	payload, version, err = s.Get("k", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`2`), payload)
	assert.Equal(t, int64(2), version)

	_, version, err = s.Get("k", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, s.Delete("k", "b"))
	require.NoError(t, s.Delete("k", "missing"))
	payload, version, err = s.Get("k", "b")
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, int64(0), version)

	payload, _, err = s.Get("other", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`4`), payload)
}

func TestTypedStore(t *testing.T) {
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	store := newStore(t)
	ts := NewTypedStore[doc](store, "doc")

	require.NoError(t, ts.Set("x", doc{Name: "x", Count: 1}))
	require.NoError(t, ts.Set("x", doc{Name: "x", Count: 2}))

	got, version, err := ts.Get("x")
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "x", Count: 2}, got)
	assert.Equal(t, int64(2), version)

	require.NoError(t, store.Set("doc", "broken", []byte(`"not an object"`)))
	_, _, err = ts.Get("broken")
	assert.ErrorContains(t, err, "decode doc/broken")

	require.NoError(t, ts.Delete("x"))
	got, version, err = ts.Get("x")
	require.NoError(t, err)
	assert.Equal(t, doc{}, got)
	assert.Equal(t, int64(0), version)
}

func TestPlaylistStore(t *testing.T) {
	ps := NewPlaylistStore(newStore(t), "")

	_, ok, err := ps.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	want := control.State{Routine: "sparkle", Cursor: 2, Powered: true, Brightness: 0.6}
	require.NoError(t, ps.Save(want))

	got, ok, err := ps.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, ps.Clear())
	_, ok, err = ps.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
