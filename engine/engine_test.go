package engine_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/engine"
)

// Scenario 1: basic insert/get/remove round-trip.
func TestScenarioBasicRoundTrip(t *testing.T) {
	e, err := engine.Open(t.TempDir(), digestive.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, e.Insert("a", []byte("hello")))
	require.NoError(t, e.Insert("b", []byte("world")))

	v, err := e.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	v, err = e.Get("b")
	require.NoError(t, err)
	require.Equal(t, []byte("world"), v)

	removed, err := e.Remove("a")
	require.NoError(t, err)
	require.True(t, removed)

	_, err = e.Get("a")
	require.True(t, digestive.IsNotFound(err))

	v, err = e.Get("b")
	require.NoError(t, err)
	require.Equal(t, []byte("world"), v)
}

// A fresh key has no access history, so both classification modes
// place it in the coldest tier (T4) immediately on insert (§4.4) —
// it should not sit hot and uncompressed until the next reorganize.
func TestInsertStartsColdAtTierT4(t *testing.T) {
	e, err := engine.Open(t.TempDir(), digestive.DefaultConfig())
	require.NoError(t, err)

	original := []byte(strings.Repeat("A", 4096))
	require.NoError(t, e.Insert("k", original))

	d, ok := e.GetMetadata("k")
	require.True(t, ok)
	require.Equal(t, digestive.TierT4, d.Tier)
	require.Equal(t, digestive.AlgorithmZstdMax, d.Algorithm)
	require.Less(t, d.EncodedSize, d.OriginalSize)

	v, err := e.Get("k")
	require.NoError(t, err)
	require.Equal(t, original, v)
}

// With compression_enabled=false, a fresh insert still lands on T4
// but is stored uncompressed (§6 "compression_enabled").
func TestInsertWithCompressionDisabledStoresUncompressed(t *testing.T) {
	cfg := digestive.DefaultConfig()
	cfg.CompressionEnabled = false

	e, err := engine.Open(t.TempDir(), cfg)
	require.NoError(t, err)

	original := []byte(strings.Repeat("A", 4096))
	require.NoError(t, e.Insert("k", original))

	d, ok := e.GetMetadata("k")
	require.True(t, ok)
	require.Equal(t, digestive.TierT4, d.Tier)
	require.Equal(t, digestive.AlgorithmNone, d.Algorithm)
	require.EqualValues(t, len(original), d.EncodedSize)
}

// Scenario 2: a 1 MiB payload under chunking_threshold=512KiB,
// chunk_size=256KiB splits into 4 chunks, and a partial range read
// returns the corresponding byte window.
func TestScenarioChunkingSplitsAndRangeReads(t *testing.T) {
	cfg := digestive.DefaultConfig()
	cfg.EnableChunking = true
	cfg.ChunkingThreshold = 512 * 1024
	cfg.ChunkSize = 256 * 1024

	e, err := engine.Open(t.TempDir(), cfg)
	require.NoError(t, err)

	payload := make([]byte, 1024*1024)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	require.NoError(t, e.Insert("k", payload))

	require.True(t, e.IsChunked("k"))
	_, ok := e.GetMetadata("k") // non-chunked metadata store has nothing for a chunked key
	require.False(t, ok)

	partial, err := e.GetChunkRange("k", 1, 2)
	require.NoError(t, err)
	require.Equal(t, payload[256*1024:768*1024], partial)
}

// Scenario 3: EVERY_N_OPS with threshold=20; after 25 inserts,
// ops_since_reorg is 0 right after the 20th and 5 after the 25th.
func TestScenarioEveryNOpsCounterResets(t *testing.T) {
	cfg := digestive.DefaultConfig()
	cfg.ReorgStrategy = digestive.ReorgEveryNOps
	cfg.ReorgThresholdOps = 20

	e, err := engine.Open(t.TempDir(), cfg)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		require.NoError(t, e.Insert(keyFor(i), []byte("v")))
		if i == 19 { // 20th op, 0-indexed
			require.EqualValues(t, 0, e.GetStats().OpsSinceReorg)
		}
	}
	require.EqualValues(t, 5, e.GetStats().OpsSinceReorg)
}

func keyFor(i int) string {
	return "k" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

// Scenario 4: EXPONENTIAL decay, factor=0.9, interval=1s. After
// advancing the logical clock by 2s and running an explicit decay
// pass, both a hot and a cold entry's heat have been multiplied down
// by the same factor.
func TestScenarioExponentialHeatDecay(t *testing.T) {
	cfg := digestive.DefaultConfig()
	cfg.EnableHeatDecay = true
	cfg.HeatDecayStrategy = digestive.DecayExponential
	cfg.HeatDecayFactor = 0.9
	cfg.HeatDecayInterval = time.Second

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	e, err := engine.Open(t.TempDir(), cfg, engine.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, e.Insert("hot", []byte("x")))
	require.NoError(t, e.Insert("cold", []byte("y")))

	for i := 0; i < 10; i++ {
		_, err := e.Get("hot")
		require.NoError(t, err)
	}

	hotBefore, _ := e.GetMetadata("hot")
	coldBefore, _ := e.GetMetadata("cold")

	now = now.Add(2 * time.Second)
	e.ApplyHeatDecay()

	hotAfter, _ := e.GetMetadata("hot")
	coldAfter, _ := e.GetMetadata("cold")

	require.Less(t, hotAfter.Heat, hotBefore.Heat)
	require.Less(t, coldAfter.Heat, coldBefore.Heat)
	require.InDelta(t, hotBefore.Heat*0.9, hotAfter.Heat, 0.0001)
	require.InDelta(t, coldBefore.Heat*0.9, coldAfter.Heat, 0.0001)
}

// Scenario 5: a 10 KiB repeated-'A' value reorganized into tier 4
// ZSTD_MAX compresses to under 100 bytes and decodes back exactly.
func TestScenarioReorganizeIntoMaxCompression(t *testing.T) {
	cfg := digestive.DefaultConfig()
	cfg.Tiers[digestive.TierT4].Algorithm = digestive.AlgorithmZstdMax

	e, err := engine.Open(t.TempDir(), cfg)
	require.NoError(t, err)

	original := []byte(strings.Repeat("A", 10*1024))
	require.NoError(t, e.Insert("cold", original))

	e.Reorganize()

	d, ok := e.GetMetadata("cold")
	require.True(t, ok)
	require.Equal(t, digestive.TierT4, d.Tier)
	require.Equal(t, digestive.AlgorithmZstdMax, d.Algorithm)
	require.Less(t, d.EncodedSize, uint64(100))

	v, err := e.Get("cold")
	require.NoError(t, err)
	require.Equal(t, original, v)
}

// Scenario 6: with allow_deletion=true and max_size_bytes set just
// under current usage, inserting a new entry triggers the size check,
// the coldest 10% are evicted, and the new entry remains present.
func TestScenarioSizeLimitEvictsColdestTenPercent(t *testing.T) {
	dir := t.TempDir()

	cfg := digestive.DefaultConfig()
	cfg.AllowDeletion = true
	cfg.ReorgStrategy = digestive.ReorgManual // isolate eviction from reorg side-effects

	e, err := engine.Open(dir, cfg)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, e.Insert(keyFor(i), []byte(strings.Repeat("v", 100))))
	}
	usage := e.GetStats().TotalEncodedSize
	require.NoError(t, e.Flush())
	require.NoError(t, e.Close())

	cfg.MaxSizeBytes = usage - 1
	e2, err := engine.Open(dir, cfg)
	require.NoError(t, err)
	require.NoError(t, e2.Insert("new", []byte(strings.Repeat("n", 100))))

	stats := e2.GetStats()
	require.Less(t, stats.EntryCount, uint64(21))

	v, err := e2.Get("new")
	require.NoError(t, err)
	require.Equal(t, []byte(strings.Repeat("n", 100)), v)
}
