// Package engine composes the blob store, metadata store, codec
// registry, tier controller, reorganizer, chunking engine, and write
// buffer into the single public façade a caller opens and drives.
package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/blobstore"
	"github.com/Barthelemy-Drabczuk/digestive-database/chunk"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
	"github.com/Barthelemy-Drabczuk/digestive-database/index"
	"github.com/Barthelemy-Drabczuk/digestive-database/metastore"
	"github.com/Barthelemy-Drabczuk/digestive-database/reorg"
	"github.com/Barthelemy-Drabczuk/digestive-database/telemetry"
	"github.com/Barthelemy-Drabczuk/digestive-database/tierctrl"
	"github.com/Barthelemy-Drabczuk/digestive-database/writebuffer"
)

// Engine is the single-threaded, cooperative store façade (§5): every
// public method takes the same mutex, so no two operations are ever
// in flight concurrently and no operation re-enters the engine.
type Engine struct {
	mu sync.Mutex

	dir    string
	cfg    digestive.Config
	logger *slog.Logger

	blobs  *blobstore.Store
	meta   *metastore.Store
	codecs *codec.Registry
	chunks *chunk.Engine
	wbuf   *writebuffer.Buffer

	reorganizer *reorg.Reorganizer
	telemetry   *telemetry.Recorder
	observer    index.Observer

	clock        func() time.Time
	lastChecksum string
}

// Option customizes Open.
type Option func(*Engine)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTelemetry attaches a metrics recorder.
func WithTelemetry(rec *telemetry.Recorder) Option {
	return func(e *Engine) { e.telemetry = rec }
}

// WithClock overrides the logical clock used for heat/reorg timers,
// for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIndexObserver attaches a secondary-index observer, notified of
// every non-chunked insert, remove, cold eviction and reorganization
// tier change so derived lookups (e.g. by tier) stay current. Chunked
// keys are not reported to the observer. The core packages never
// depend on index; this is purely an engine-level enrichment.
func WithIndexObserver(obs index.Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// Open opens (or creates) a store rooted at dir, using cfg.
func Open(dir string, cfg digestive.Config, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: creating %s: %w", dir, err)
	}

	blobs, err := blobstore.Open(filepath.Join(dir, "data.db"))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	meta, err := metastore.Open(filepath.Join(dir, "metadata.db"), cfg.EnableHeatDecay)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	codecs, err := codec.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	var chunks *chunk.Engine
	if cfg.EnableChunking {
		chunks, err = chunk.Open(filepath.Join(dir, "chunks"), codecs)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	var wbuf *writebuffer.Buffer
	if cfg.LazyPersistence {
		wbuf = writebuffer.New(cfg.WriteBufferSize)
	}

	e := &Engine{
		dir:    dir,
		cfg:    cfg,
		logger: slog.Default(),
		blobs:  blobs,
		meta:   meta,
		codecs: codecs,
		chunks: chunks,
		wbuf:   wbuf,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	var reorgMetrics *reorg.Metrics
	if m := e.telemetry.Meter(); m != nil {
		reorgMetrics, err = reorg.NewMetrics(m)
		if err != nil {
			return nil, fmt.Errorf("engine: reorg metrics: %w", err)
		}
	}
	e.reorganizer = reorg.New(meta, blobs, codecs, e.logger, reorgMetrics)

	return e, nil
}

// Close releases codec resources. It does not flush — call Flush
// first if durability is required.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.codecs.Close()
}

func (e *Engine) now() int64 { return e.clock().Unix() }

// Insert stores value under key, starting cold (tier T4) per §4.4:
// total_accesses is zero for a never-read store, and a fresh key has
// no access history of its own, so both classification modes place it
// in the coldest tier until reads or a reorganization pass move it.
func (e *Engine) Insert(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertLocked(key, value)
}

func (e *Engine) insertLocked(key string, value []byte) error {
	now := e.now()

	// A key switches shape (chunked <-> flat) across re-inserts by
	// clearing whichever representation it previously had.
	if e.chunks != nil {
		if _, err := e.chunks.RemoveChunked(key); err != nil {
			return digestive.IOFailed("insert", err)
		}
	}
	e.blobs.Remove(key)
	if prior, ok := e.meta.Get(key); ok && e.observer != nil {
		e.observer.Observe(index.OpRemove, "entries", "tier", prior.Tier.String(), []byte(key))
	}
	e.meta.Delete(key)

	if e.chunks != nil && uint64(len(value)) >= e.cfg.ChunkingThreshold {
		t4 := e.cfg.Tiers[digestive.TierT4]
		if err := e.chunks.InsertChunked(key, value, e.cfg.ChunkSize, t4, now); err != nil {
			return digestive.EncodeFailed("insert", err)
		}
	} else {
		t4 := e.cfg.Tiers[digestive.TierT4]
		algo, encodeOverride := e.compressionAlgo(t4)
		encoded, usedAlgo, err := e.codecs.Encode(algo, encodeOverride, value)
		if err != nil {
			return digestive.EncodeFailed("insert", err)
		}
		e.putOrStage(key, encoded)
		e.meta.Put(key, digestive.Descriptor{
			AccessCount:  0,
			LastAccess:   now,
			Tier:         digestive.TierT4,
			Algorithm:    usedAlgo,
			OriginalSize: uint64(len(value)),
			EncodedSize:  uint64(len(encoded)),
			Heat:         0.1,
			HeatTracked:  e.cfg.EnableHeatDecay,
		})
		if e.telemetry != nil {
			e.telemetry.RecordEncode(context.Background(), algo, usedAlgo)
		}
		if e.observer != nil {
			e.observer.Observe(index.OpInsert, "entries", "tier", digestive.TierT4.String(), []byte(key))
		}
	}

	e.meta.RecordOp()
	e.runPostOpHooks(now)
	return nil
}

// compressionAlgo returns the algorithm/override pair to encode with
// for tierCfg, forcing NONE when compression is disabled for this
// store (§6 "compression_enabled").
func (e *Engine) compressionAlgo(tierCfg digestive.TierConfig) (digestive.Algorithm, func([]byte) ([]byte, error)) {
	if !e.cfg.CompressionEnabled {
		return digestive.AlgorithmNone, nil
	}
	return tierCfg.Algorithm, tierCfg.Encode
}

func (e *Engine) putOrStage(key string, encoded []byte) {
	if e.wbuf != nil {
		if e.wbuf.Stage(key, encoded) {
			_ = e.flushWriteBufferLocked()
		}
		return
	}
	e.blobs.Put(key, encoded)
}

func (e *Engine) flushWriteBufferLocked() error {
	if e.wbuf == nil {
		return nil
	}
	return e.wbuf.Flush(func(key string, value []byte) error {
		e.blobs.Put(key, value)
		return nil
	})
}

// InsertFromFile reads path and inserts its contents under key.
func (e *Engine) InsertFromFile(key string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return digestive.IOFailed("insert_from_file", err)
	}
	return e.Insert(key, data)
}

// Get returns the decoded value stored under key, recording a read
// (bumping access_count/heat) on success.
func (e *Engine) Get(key string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getLocked(key)
}

func (e *Engine) getLocked(key string) ([]byte, error) {
	now := e.now()

	if e.chunks != nil && e.chunks.IsChunked(key) {
		data, err := e.chunks.GetFullFile(key, now)
		if err != nil {
			return nil, err
		}
		if e.telemetry != nil {
			m, _ := e.chunks.GetMetadata(key)
			e.telemetry.RecordChunkRangeRead(context.Background(), len(m.Chunks))
		}
		e.meta.RecordOp()
		e.runPostOpHooks(now)
		return data, nil
	}

	d, ok := e.meta.Get(key)
	if !ok {
		return nil, digestive.NotFound("get")
	}

	var stored []byte
	if e.wbuf != nil {
		if staged, ok := e.wbuf.Peek(key); ok {
			stored = staged
		}
	}
	if stored == nil {
		stored, ok = e.blobs.Get(key)
		if !ok {
			return nil, digestive.IOFailed("get", fmt.Errorf("descriptor present but blob missing for %q", key))
		}
	}

	tierCfg := e.cfg.Tiers[d.Tier]
	decoded, err := e.codecs.Decode(d.Algorithm, tierCfg.Decode, stored, int(d.OriginalSize))
	if err != nil {
		return nil, digestive.DecodeFailed("get", err)
	}

	e.meta.RecordAccess(key, now)
	if e.cfg.EnableHeatDecay {
		e.meta.Mutate(key, func(desc *digestive.Descriptor) {
			desc.Heat = tierctrl.HeatOnRead(desc.Heat)
		})
	}
	e.runPostOpHooks(now)
	return decoded, nil
}

// GetToFile writes the decoded value for key to path.
func (e *Engine) GetToFile(key string, path string) error {
	data, err := e.Get(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return digestive.IOFailed("get_to_file", err)
	}
	return nil
}

// GetChunkRange reads chunks [start, end] (inclusive) of a chunked
// key.
func (e *Engine) GetChunkRange(key string, start, end uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chunks == nil {
		return nil, digestive.NotFound("get_chunk_range")
	}
	now := e.now()
	data, err := e.chunks.GetChunkRange(key, start, end, now)
	if err != nil {
		return nil, err
	}
	if e.telemetry != nil {
		e.telemetry.RecordChunkRangeRead(context.Background(), int(end-start+1))
	}
	e.meta.RecordOp()
	e.runPostOpHooks(now)
	return data, nil
}

// IsChunked reports whether key is stored as a chunked blob.
func (e *Engine) IsChunked(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks != nil && e.chunks.IsChunked(key)
}

// Remove deletes key, reporting whether it was present.
func (e *Engine) Remove(key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := false
	priorTier, hadDescriptor := e.meta.Get(key)

	if e.chunks != nil {
		r, err := e.chunks.RemoveChunked(key)
		if err != nil {
			return false, digestive.IOFailed("remove", err)
		}
		removed = removed || r
	}
	if e.wbuf != nil {
		e.wbuf.Discard(key)
	}
	if e.blobs.Remove(key) {
		removed = true
	}
	if e.meta.Delete(key) {
		removed = true
	}

	if hadDescriptor && e.observer != nil {
		e.observer.Observe(index.OpRemove, "entries", "tier", priorTier.Tier.String(), []byte(key))
	}

	e.meta.RecordOp()
	e.runPostOpHooks(e.now())
	return removed, nil
}

// GetMetadata returns the descriptor for a non-chunked key.
func (e *Engine) GetMetadata(key string) (digestive.Descriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.Get(key)
}

// Reorganize runs one reorganization pass immediately, regardless of
// the configured trigger, and resets the reorganization counters.
func (e *Engine) Reorganize() reorg.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reorganizeLocked(e.now())
}

func (e *Engine) reorganizeLocked(now int64) reorg.Result {
	totalAccesses, _, _, _ := e.meta.Counters()
	before := e.meta.Snapshot()
	result := e.reorganizer.Run(context.Background(), e.cfg, totalAccesses)
	e.meta.ResetReorgCounters(now)

	if e.telemetry != nil || e.observer != nil {
		after := e.meta.Snapshot()
		for key, prev := range before {
			cur, ok := after[key]
			if !ok || cur.Tier == prev.Tier {
				continue
			}
			if e.telemetry != nil {
				e.telemetry.RecordTierTransition(context.Background(), prev.Tier, cur.Tier)
			}
			if e.observer != nil {
				e.observer.Observe(index.OpRemove, "entries", "tier", prev.Tier.String(), []byte(key))
				e.observer.Observe(index.OpInsert, "entries", "tier", cur.Tier.String(), []byte(key))
			}
		}
	}
	return result
}

// ApplyHeatDecay runs one heat-decay pass over every tracked entry
// and every tracked chunk, regardless of the configured interval.
func (e *Engine) ApplyHeatDecay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyHeatDecayLocked(e.now())
}

func (e *Engine) applyHeatDecayLocked(now int64) {
	if !e.cfg.EnableHeatDecay {
		return
	}
	interval := e.cfg.HeatDecayInterval.Seconds()

	for _, key := range e.meta.Keys() {
		e.meta.Mutate(key, func(d *digestive.Descriptor) {
			elapsed := float64(now - d.LastAccess)
			d.Heat = tierctrl.Decay(e.cfg.HeatDecayStrategy, d.Heat, e.cfg.HeatDecayFactor, e.cfg.HeatDecayAmount, elapsed, interval)
		})
	}

	if e.chunks != nil {
		e.chunks.DecayAllChunks(
			func(current float64, lastAccess int64) float64 {
				elapsed := float64(now - lastAccess)
				return tierctrl.Decay(e.cfg.HeatDecayStrategy, current, e.cfg.HeatDecayFactor, e.cfg.HeatDecayAmount, elapsed, interval)
			},
			tierctrl.ClassifyHeat,
		)
	}

	e.meta.SetLastDecayTS(now)
}

// runPostOpHooks implements §9's "auto-triggers fire as a post-op
// hook": every public mutating/reading operation checks, in this
// order, whether a reorganization pass, a heat-decay pass, or cold
// eviction should fire now.
func (e *Engine) runPostOpHooks(now int64) {
	_, opsSinceReorg, lastReorgTS, lastDecayTS := e.meta.Counters()

	if tierctrl.ShouldReorganize(e.cfg, opsSinceReorg, lastReorgTS, now, uint64(e.meta.Count())) {
		e.reorganizeLocked(now)
	}

	intervalSecs := int64(e.cfg.HeatDecayInterval.Seconds())
	if tierctrl.ShouldApplyHeatDecay(e.cfg.EnableHeatDecay, lastDecayTS, now, intervalSecs) {
		e.applyHeatDecayLocked(now)
	}

	if e.cfg.MaxSizeBytes > 0 {
		e.enforceSizeLimitLocked()
	}
}

// enforceSizeLimitLocked implements §4.8: when the configured size
// cap is exceeded and deletion is allowed, the coldest 10% of
// non-chunked entries (by ascending access_count, ties broken by
// ascending last_access) are evicted.
func (e *Engine) enforceSizeLimitLocked() {
	total := e.blobs.SizeOnDisk()
	if e.chunks != nil {
		total += e.chunks.GetStorageSize()
	}
	if total <= e.cfg.MaxSizeBytes {
		return
	}
	if !e.cfg.AllowDeletion {
		e.logger.Warn("engine: size limit exceeded but deletion is disallowed",
			"total_bytes", total, "max_size_bytes", e.cfg.MaxSizeBytes)
		return
	}

	snapshot := e.meta.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := snapshot[keys[i]], snapshot[keys[j]]
		if di.AccessCount != dj.AccessCount {
			return di.AccessCount < dj.AccessCount
		}
		return di.LastAccess < dj.LastAccess
	})

	evictCount := len(keys) / 10
	if evictCount == 0 {
		evictCount = 1
	}
	for _, key := range keys[:evictCount] {
		e.blobs.Remove(key)
		e.meta.Delete(key)
		if e.observer != nil {
			e.observer.Observe(index.OpRemove, "entries", "tier", snapshot[key].Tier.String(), []byte(key))
		}
		if e.telemetry != nil {
			e.telemetry.RecordColdEviction(context.Background())
		}
	}
	e.logger.Info("engine: cold eviction", "evicted", evictCount, "total_bytes_before", total)
}

// Flush persists every in-memory store to disk: the write buffer (if
// any), data.db, metadata.db, and the chunk manifest.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if err := e.flushWriteBufferLocked(); err != nil {
		return digestive.IOFailed("flush", err)
	}

	checksum, err := e.blobs.Flush(blake3Checksum)
	if err != nil {
		return digestive.IOFailed("flush", err)
	}
	e.lastChecksum = checksum

	if err := e.meta.Flush(); err != nil {
		return digestive.IOFailed("flush", err)
	}
	if e.chunks != nil {
		if err := e.chunks.Save(); err != nil {
			return digestive.IOFailed("flush", err)
		}
	}
	return nil
}

func blake3Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetStats summarizes the engine's current state.
func (e *Engine) GetStats() digestive.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := digestive.Stats{}
	totalAccesses, opsSinceReorg, lastReorgTS, _ := e.meta.Counters()
	stats.TotalAccesses = totalAccesses
	stats.OpsSinceReorg = opsSinceReorg
	stats.LastReorgUnix = lastReorgTS
	stats.DataFileChecksum = e.lastChecksum

	for _, d := range e.meta.Snapshot() {
		stats.EntryCount++
		stats.TotalOriginalSize += d.OriginalSize
		stats.TotalEncodedSize += d.EncodedSize
		if d.Tier.Valid() {
			stats.EntriesPerTier[d.Tier]++
		}
	}

	if e.chunks != nil {
		stats.TotalEncodedSize += e.chunks.GetStorageSize()
		stats.ChunkedEntryCount = uint64(e.chunks.Count())
	}

	return stats
}
