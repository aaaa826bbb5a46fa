package index_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database/index"
)

func TestPutLookupRemove(t *testing.T) {
	dir := t.TempDir()
	idx, err := index.Open(filepath.Join(dir, "indexes.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Put("entries", "content_type", "image/png", []byte("k1")))
	require.NoError(t, idx.Put("entries", "content_type", "image/png", []byte("k2")))

	keys, err := idx.Lookup("entries", "content_type", "image/png")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, idx.Remove("entries", "content_type", "image/png", []byte("k1")))
	keys, err = idx.Lookup("entries", "content_type", "image/png")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("k2")}, keys)
}

func TestLookupMissingTupleReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, err := index.Open(filepath.Join(dir, "indexes.db"))
	require.NoError(t, err)
	defer idx.Close()

	keys, err := idx.Lookup("entries", "content_type", "absent")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestObserverSyncWiresOpsThrough(t *testing.T) {
	dir := t.TempDir()
	idx, err := index.Open(filepath.Join(dir, "indexes.db"))
	require.NoError(t, err)
	defer idx.Close()

	var obs index.Observer = index.Sync{Idx: idx}
	obs.Observe(index.OpInsert, "entries", "tier", "T0", []byte("k1"))

	keys, err := idx.Lookup("entries", "tier", "T0")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("k1")}, keys)

	obs.Observe(index.OpRemove, "entries", "tier", "T0", []byte("k1"))
	keys, err = idx.Lookup("entries", "tier", "T0")
	require.NoError(t, err)
	require.Empty(t, keys)
}
