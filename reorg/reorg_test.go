package reorg_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/blobstore"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
	"github.com/Barthelemy-Drabczuk/digestive-database/metastore"
	"github.com/Barthelemy-Drabczuk/digestive-database/reorg"
)

func TestReorganizeRecodesColdEntryAndPreservesBytes(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	meta, err := metastore.Open(filepath.Join(dir, "metadata.db"), false)
	require.NoError(t, err)
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	cfg := digestive.DefaultConfig()
	cfg.Tiers[digestive.TierT4].Algorithm = digestive.AlgorithmZstdMax

	original := []byte(strings.Repeat("A", 10*1024))
	encoded, usedAlgo, err := registry.Encode(digestive.AlgorithmNone, nil, original)
	require.NoError(t, err)

	blobs.Put("cold", encoded)
	meta.Put("cold", digestive.Descriptor{
		AccessCount:  0,
		Tier:         digestive.TierT0,
		Algorithm:    usedAlgo,
		OriginalSize: uint64(len(original)),
		EncodedSize:  uint64(len(encoded)),
	})

	r := reorg.New(meta, blobs, registry, nil, nil)
	result := r.Run(context.Background(), cfg, 0) // totalAccesses==0 -> T4 for everyone

	require.Equal(t, 1, result.Recoded)
	require.Equal(t, 0, result.Skipped)

	d, ok := meta.Get("cold")
	require.True(t, ok)
	require.Equal(t, digestive.TierT4, d.Tier)
	require.Equal(t, digestive.AlgorithmZstdMax, d.Algorithm)
	require.Less(t, d.EncodedSize, uint64(100))

	stored, ok := blobs.Get("cold")
	require.True(t, ok)
	decoded, err := registry.Decode(d.Algorithm, nil, stored, int(d.OriginalSize))
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestReorganizeSkipsUnchangedEntries(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	meta, err := metastore.Open(filepath.Join(dir, "metadata.db"), false)
	require.NoError(t, err)
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	cfg := digestive.DefaultConfig()
	cfg.Tiers[digestive.TierT4].Algorithm = digestive.AlgorithmNone // matches the stored entry's algorithm

	blobs.Put("k", []byte("hello"))
	meta.Put("k", digestive.Descriptor{
		AccessCount:  0,
		Tier:         digestive.TierT4, // already cold, matches totalAccesses==0 classification
		Algorithm:    digestive.AlgorithmNone,
		OriginalSize: 5,
		EncodedSize:  5,
	})

	r := reorg.New(meta, blobs, registry, nil, nil)
	result := r.Run(context.Background(), cfg, 0)

	require.Equal(t, 0, result.Recoded)
	require.Equal(t, 1, result.Skipped)
}
