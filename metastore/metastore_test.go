package metastore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/metastore"
)

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := metastore.Open(filepath.Join(dir, "metadata.db"), false)
	require.NoError(t, err)

	store.Put("a", digestive.Descriptor{
		AccessCount:  1,
		Tier:         digestive.TierT4,
		Algorithm:    digestive.AlgorithmNone,
		OriginalSize: 5,
		EncodedSize:  5,
	})

	d, ok := store.Get("a")
	require.True(t, ok)
	require.Equal(t, uint64(1), d.AccessCount)

	require.True(t, store.Delete("a"))
	_, ok = store.Get("a")
	require.False(t, ok)
}

func TestFlushAndReloadWithoutHeat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	store, err := metastore.Open(path, false)
	require.NoError(t, err)
	store.Put("key", digestive.Descriptor{
		AccessCount:  42,
		LastAccess:   1000,
		Tier:         digestive.TierT1,
		Algorithm:    digestive.AlgorithmZstdFast,
		OriginalSize: 100,
		EncodedSize:  40,
	})
	store.RecordOp()
	store.ResetReorgCounters(12345)

	require.NoError(t, store.Flush())

	reloaded, err := metastore.Open(path, false)
	require.NoError(t, err)

	d, ok := reloaded.Get("key")
	require.True(t, ok)
	require.Equal(t, uint64(42), d.AccessCount)
	require.Equal(t, digestive.TierT1, d.Tier)
	require.Equal(t, digestive.AlgorithmZstdFast, d.Algorithm)
	require.False(t, d.HeatTracked)

	_, ops, lastReorg, _ := reloaded.Counters()
	require.Equal(t, uint64(0), ops)
	require.Equal(t, int64(12345), lastReorg)
}

func TestFlushAndReloadWithHeat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	store, err := metastore.Open(path, true)
	require.NoError(t, err)
	store.Put("hot", digestive.Descriptor{
		Tier:        digestive.TierT0,
		Algorithm:   digestive.AlgorithmNone,
		Heat:        0.85,
		HeatTracked: true,
	})
	store.SetLastDecayTS(999)

	require.NoError(t, store.Flush())

	reloaded, err := metastore.Open(path, true)
	require.NoError(t, err)

	d, ok := reloaded.Get("hot")
	require.True(t, ok)
	require.True(t, d.HeatTracked)
	require.InDelta(t, 0.85, d.Heat, 0.0001)

	_, _, _, lastDecay := reloaded.Counters()
	require.Equal(t, int64(999), lastDecay)
}

func TestRecordAccessUpdatesCountersAndDescriptor(t *testing.T) {
	dir := t.TempDir()
	store, err := metastore.Open(filepath.Join(dir, "metadata.db"), false)
	require.NoError(t, err)

	store.Put("k", digestive.Descriptor{})
	require.True(t, store.RecordAccess("k", 500))

	d, ok := store.Get("k")
	require.True(t, ok)
	require.Equal(t, uint64(1), d.AccessCount)
	require.Equal(t, int64(500), d.LastAccess)

	total, ops, _, _ := store.Counters()
	require.Equal(t, uint64(1), total)
	require.Equal(t, uint64(1), ops)

	require.False(t, store.RecordAccess("missing", 500))
}
