package blobstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database/blobstore"
)

func TestPutGetRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := blobstore.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)

	store.Put("a", []byte("hello"))
	store.Put("b", []byte("world"))

	v, ok := store.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)

	require.True(t, store.Remove("a"))
	_, ok = store.Get("a")
	require.False(t, ok)

	v, ok = store.Get("b")
	require.True(t, ok)
	require.Equal(t, []byte("world"), v)
}

func TestFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	store, err := blobstore.Open(path)
	require.NoError(t, err)
	store.Put("key", []byte("value"))
	store.Put("empty", []byte{})

	sum, err := store.Flush(nil)
	require.NoError(t, err)
	require.Empty(t, sum)

	reloaded, err := blobstore.Open(path)
	require.NoError(t, err)

	v, ok := reloaded.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("value"), v)

	v, ok = reloaded.Get("empty")
	require.True(t, ok)
	require.Empty(t, v)
}

func TestSizeOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := blobstore.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)

	store.Put("a", []byte("12345"))
	store.Put("b", []byte("1234567890"))
	require.Equal(t, uint64(15), store.SizeOnDisk())
}
