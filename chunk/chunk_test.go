package chunk_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/chunk"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
)

func TestInsertChunkedSplitsIntoExpectedCount(t *testing.T) {
	dir := t.TempDir()
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	e, err := chunk.Open(filepath.Join(dir, "chunks"), registry)
	require.NoError(t, err)

	payload := make([]byte, 1024*1024) // 1 MiB
	for i := range payload {
		payload[i] = byte(i)
	}

	t4 := digestive.TierConfig{Algorithm: digestive.AlgorithmNone}
	require.NoError(t, e.InsertChunked("big", payload, 256*1024, t4, 0))

	m, ok := e.GetMetadata("big")
	require.True(t, ok)
	require.EqualValues(t, 4, m.NumChunks)
	require.Len(t, m.Chunks, 4)

	full, err := e.GetFullFile("big", 1)
	require.NoError(t, err)
	require.Equal(t, payload, full)
}

func TestGetChunkRangeInclusiveAndRejectsBadRange(t *testing.T) {
	dir := t.TempDir()
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	e, err := chunk.Open(filepath.Join(dir, "chunks"), registry)
	require.NoError(t, err)

	payload := []byte(strings.Repeat("x", 1000))
	t4 := digestive.TierConfig{Algorithm: digestive.AlgorithmNone}
	require.NoError(t, e.InsertChunked("k", payload, 300, t4, 0))

	m, ok := e.GetMetadata("k")
	require.True(t, ok)
	require.EqualValues(t, 4, m.NumChunks)

	partial, err := e.GetChunkRange("k", 1, 2, 0)
	require.NoError(t, err)
	require.Equal(t, payload[300:900], partial)

	_, err = e.GetChunkRange("k", 2, 1, 0)
	require.Error(t, err)

	_, err = e.GetChunkRange("k", 0, 99, 0)
	require.Error(t, err)

	_, err = e.GetChunkRange("missing", 0, 0, 0)
	require.Error(t, err)
}

func TestRemoveChunkedDeletesManifestAndFiles(t *testing.T) {
	dir := t.TempDir()
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	e, err := chunk.Open(filepath.Join(dir, "chunks"), registry)
	require.NoError(t, err)

	t4 := digestive.TierConfig{Algorithm: digestive.AlgorithmNone}
	require.NoError(t, e.InsertChunked("k", []byte(strings.Repeat("y", 600)), 300, t4, 0))

	removed, err := e.RemoveChunked("k")
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, e.IsChunked("k"))

	removed, err = e.RemoveChunked("k")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestManifestSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	chunksDir := filepath.Join(dir, "chunks")
	registry, err := codec.NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	e, err := chunk.Open(chunksDir, registry)
	require.NoError(t, err)

	t4 := digestive.TierConfig{Algorithm: digestive.AlgorithmNone}
	require.NoError(t, e.InsertChunked("k", []byte(strings.Repeat("z", 600)), 300, t4, 42))

	reloaded, err := chunk.Open(chunksDir, registry)
	require.NoError(t, err)
	m, ok := reloaded.GetMetadata("k")
	require.True(t, ok)
	require.EqualValues(t, 600, m.TotalSize)
	require.EqualValues(t, 300, m.ChunkSize)
	require.Len(t, m.Chunks, 2)
	require.Equal(t, int64(42), m.Chunks[0].LastAccess)
}
