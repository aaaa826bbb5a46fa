// Package chunk implements the chunking engine (§4.6): splits large
// blobs into fixed-size, independently-encoded, independently-heated
// chunks stored as separate files, with a sidecar manifest and
// support for inclusive-range partial reads.
package chunk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/backend"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
)

const maxManifestKeyLen = 1 << 20

// ChunkDescriptor is one chunk's entry in a blob's manifest (§3).
type ChunkDescriptor struct {
	OriginalSize uint64
	EncodedSize  uint64
	Tier         digestive.Tier
	Algorithm    digestive.Algorithm
	Heat         float64
	LastAccess   int64
}

// Manifest is the chunked-blob manifest for one key (§3).
type Manifest struct {
	Key       string
	TotalSize uint64
	ChunkSize uint64
	NumChunks uint32
	Chunks    []ChunkDescriptor
}

// Engine owns the chunks/ directory: one subdirectory per chunked
// key, each holding zero-padded chunk_NNN.bin files, plus the
// manifest sidecar chunk_metadata.db.
type Engine struct {
	mu sync.RWMutex

	dir       string // <name>.db/chunks
	manifests map[string]*Manifest

	codecs *codec.Registry
	fs     *backend.Filesystem // atomic per-chunk reads/writes, keyed by "<key>/chunk_NNN.bin"
}

// Open loads chunks/chunk_metadata.db under root if present, or
// starts empty. root is the chunks/ directory itself.
func Open(root string, codecs *codec.Registry) (*Engine, error) {
	fs, err := backend.NewFilesystem(root)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	e := &Engine{dir: root, manifests: make(map[string]*Manifest), codecs: codecs, fs: fs}

	manifestPath := e.manifestPath()
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		return e, nil
	}
	if err := e.load(); err != nil {
		return nil, fmt.Errorf("chunk: open %s: %w", manifestPath, err)
	}
	return e, nil
}

func (e *Engine) manifestPath() string {
	return filepath.Join(e.dir, "chunk_metadata.db")
}

// Count returns the number of chunked keys currently tracked.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.manifests)
}

// IsChunked reports whether key is tracked by the chunking engine.
func (e *Engine) IsChunked(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.manifests[key]
	return ok
}

// GetMetadata returns a copy of the manifest for key.
func (e *Engine) GetMetadata(key string) (Manifest, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.manifests[key]
	if !ok {
		return Manifest{}, false
	}
	cp := *m
	cp.Chunks = append([]ChunkDescriptor(nil), m.Chunks...)
	return cp, true
}

// chunkKey returns the backend.Filesystem key for one chunk:
// "<key>/chunk_NNN.bin" with NNN zero-padded to 3 digits, per §4.6's
// layout. A key with more than 999 chunks (any chunkIndex >= 999) is
// rejected by InsertChunked before this is ever called — see
// ErrChunkCountOverflow.
func (e *Engine) chunkKey(key string, chunkIndex uint32) string {
	return fmt.Sprintf("%s/chunk_%03d.bin", key, chunkIndex)
}

// ErrChunkCountOverflow is returned by InsertChunked when the payload
// would require more than 999 chunks: the on-disk filename format
// zero-pads to exactly 3 digits and this implementation declines to
// widen it silently (§9 open question).
var ErrChunkCountOverflow = fmt.Errorf("chunk: payload requires more than 999 chunks")

// InsertChunked splits data into fixed-size chunks, encodes each
// independently at the starting tier (T4) using t4 (the configured
// T4 tier config), writes each chunk to its own file, and persists
// the manifest.
func (e *Engine) InsertChunked(key string, data []byte, chunkSize uint64, t4 digestive.TierConfig, now int64) error {
	if chunkSize == 0 {
		return fmt.Errorf("chunk: chunk size must be positive")
	}
	totalSize := uint64(len(data))
	numChunks := uint32((totalSize + chunkSize - 1) / chunkSize)
	if numChunks == 0 {
		numChunks = 1 // an empty or tiny value still occupies one (empty) chunk
	}
	if numChunks > 999 {
		return ErrChunkCountOverflow
	}

	chunks := make([]ChunkDescriptor, numChunks)
	for i := uint32(0); i < numChunks; i++ {
		start := uint64(i) * chunkSize
		end := start + chunkSize
		if end > totalSize {
			end = totalSize
		}
		window := data[start:end]

		encoded, usedAlgo, err := e.codecs.Encode(t4.Algorithm, t4.Encode, window)
		if err != nil {
			return fmt.Errorf("chunk: encoding chunk %d: %w", i, err)
		}

		if err := e.fs.Write(context.Background(), e.chunkKey(key, i), bytes.NewReader(encoded)); err != nil {
			return fmt.Errorf("chunk: writing chunk %d: %w", i, err)
		}

		chunks[i] = ChunkDescriptor{
			OriginalSize: uint64(len(window)),
			EncodedSize:  uint64(len(encoded)),
			Tier:         digestive.TierT4,
			Algorithm:    usedAlgo,
			Heat:         0.1,
			LastAccess:   now,
		}
	}

	e.mu.Lock()
	e.manifests[key] = &Manifest{
		Key:       key,
		TotalSize: totalSize,
		ChunkSize: chunkSize,
		NumChunks: numChunks,
		Chunks:    chunks,
	}
	e.mu.Unlock()

	return e.Save()
}

// GetChunkRange reads chunks [start, end] (inclusive), decodes each
// under its recorded algorithm, concatenates the result, and bumps
// each read chunk's heat and last_access.
func (e *Engine) GetChunkRange(key string, start, end uint32, now int64) ([]byte, error) {
	e.mu.Lock()
	m, ok := e.manifests[key]
	if !ok {
		e.mu.Unlock()
		return nil, digestive.NotFound("get_chunk_range")
	}
	if start > end || end >= m.NumChunks {
		e.mu.Unlock()
		return nil, digestive.RangeInvalid("get_chunk_range", fmt.Errorf("start=%d end=%d num_chunks=%d", start, end, m.NumChunks))
	}

	// Snapshot descriptors under lock; bump heat/last_access on the
	// live manifest before releasing.
	descriptors := make([]ChunkDescriptor, end-start+1)
	for i := start; i <= end; i++ {
		descriptors[i-start] = m.Chunks[i]
		m.Chunks[i].Heat = heatOnRead(m.Chunks[i].Heat)
		m.Chunks[i].LastAccess = now
	}
	e.mu.Unlock()

	var buf bytes.Buffer
	for i := start; i <= end; i++ {
		d := descriptors[i-start]
		raw, err := e.readChunk(key, i)
		if err != nil {
			return nil, digestive.IOFailed("get_chunk_range", fmt.Errorf("reading chunk %d: %w", i, err))
		}
		decoded, err := e.codecs.Decode(d.Algorithm, nil, raw, int(d.OriginalSize))
		if err != nil {
			return nil, digestive.DecodeFailed("get_chunk_range", fmt.Errorf("chunk %d: %w", i, err))
		}
		buf.Write(decoded)
	}

	if err := e.Save(); err != nil {
		return nil, digestive.IOFailed("get_chunk_range", err)
	}
	return buf.Bytes(), nil
}

// GetFullFile is get_chunk_range(key, 0, num_chunks-1).
func (e *Engine) GetFullFile(key string, now int64) ([]byte, error) {
	e.mu.RLock()
	m, ok := e.manifests[key]
	e.mu.RUnlock()
	if !ok {
		return nil, digestive.NotFound("get_full_file")
	}
	if m.NumChunks == 0 {
		return []byte{}, nil
	}
	return e.GetChunkRange(key, 0, m.NumChunks-1, now)
}

// RemoveChunked deletes a chunked key's directory and manifest entry.
func (e *Engine) RemoveChunked(key string) (bool, error) {
	e.mu.Lock()
	_, ok := e.manifests[key]
	if ok {
		delete(e.manifests, key)
	}
	e.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := os.RemoveAll(filepath.Join(e.dir, key)); err != nil {
		return true, fmt.Errorf("chunk: removing directory for %q: %w", key, err)
	}
	return true, e.Save()
}

// DecayAllChunks applies one decay step to every tracked chunk's
// heat, and updates its tier if the new heat crosses a tier boundary
// (§4.6 "per-chunk retiering"). decay is handed each chunk's own
// last_access so TIME_BASED decay can compute elapsed time per chunk,
// not just once for the whole pass. It does not re-encode chunks —
// that is an optional, separate operation left to a caller via
// Retier.
func (e *Engine) DecayAllChunks(decay func(current float64, lastAccess int64) float64, classify func(heat float64) digestive.Tier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.manifests {
		for i := range m.Chunks {
			m.Chunks[i].Heat = decay(m.Chunks[i].Heat, m.Chunks[i].LastAccess)
			m.Chunks[i].Tier = classify(m.Chunks[i].Heat)
		}
	}
}

// Retier re-encodes chunk i of key under newTierCfg if its tier
// changed, using the same decode/encode pipeline as the reorganizer
// and updating encoded_size in the manifest (§4.6).
func (e *Engine) Retier(key string, chunkIndex uint32, newTier digestive.Tier, oldTierCfg, newTierCfg digestive.TierConfig) error {
	e.mu.Lock()
	m, ok := e.manifests[key]
	if !ok || chunkIndex >= m.NumChunks {
		e.mu.Unlock()
		return digestive.NotFound("retier")
	}
	d := m.Chunks[chunkIndex]
	e.mu.Unlock()

	if d.Tier == newTier && d.Algorithm == newTierCfg.Algorithm {
		return nil
	}

	raw, err := e.readChunk(key, chunkIndex)
	if err != nil {
		return digestive.IOFailed("retier", err)
	}
	decoded, err := e.codecs.Decode(d.Algorithm, oldTierCfg.Decode, raw, int(d.OriginalSize))
	if err != nil {
		return digestive.DecodeFailed("retier", err)
	}
	encoded, usedAlgo, err := e.codecs.Encode(newTierCfg.Algorithm, newTierCfg.Encode, decoded)
	if err != nil {
		return digestive.EncodeFailed("retier", err)
	}
	if err := e.fs.Write(context.Background(), e.chunkKey(key, chunkIndex), bytes.NewReader(encoded)); err != nil {
		return digestive.IOFailed("retier", err)
	}

	e.mu.Lock()
	m.Chunks[chunkIndex].Tier = newTier
	m.Chunks[chunkIndex].Algorithm = usedAlgo
	m.Chunks[chunkIndex].EncodedSize = uint64(len(encoded))
	e.mu.Unlock()

	return e.Save()
}

// GetStorageSize returns the sum of every tracked chunk's
// encoded_size.
func (e *Engine) GetStorageSize() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var total uint64
	for _, m := range e.manifests {
		for _, c := range m.Chunks {
			total += c.EncodedSize
		}
	}
	return total
}

func heatOnRead(current float64) float64 {
	if current+0.1 > 1 {
		return 1
	}
	return current + 0.1
}

// readChunk reads and returns the full contents of one chunk file via
// the backend.Filesystem rooted at e.dir.
func (e *Engine) readChunk(key string, chunkIndex uint32) ([]byte, error) {
	rc, err := e.fs.Read(context.Background(), e.chunkKey(key, chunkIndex))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Save persists chunk_metadata.db in full (§4.6).
func (e *Engine) Save() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.manifests))
	for k := range e.manifests {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	if err := backend.WriteUint32(&buf, uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		m := e.manifests[k]
		if err := backend.WriteLenPrefixed(&buf, []byte(m.Key)); err != nil {
			return err
		}
		if err := backend.WriteUint64(&buf, m.TotalSize); err != nil {
			return err
		}
		if err := backend.WriteUint64(&buf, m.ChunkSize); err != nil {
			return err
		}
		if err := backend.WriteUint32(&buf, m.NumChunks); err != nil {
			return err
		}
		if err := backend.WriteUint32(&buf, uint32(len(m.Chunks))); err != nil {
			return err
		}
		for _, c := range m.Chunks {
			if err := backend.WriteUint64(&buf, c.OriginalSize); err != nil {
				return err
			}
			if err := backend.WriteUint64(&buf, c.EncodedSize); err != nil {
				return err
			}
			if err := backend.WriteUint8(&buf, uint8(c.Tier)); err != nil {
				return err
			}
			if err := backend.WriteUint8(&buf, uint8(c.Algorithm)); err != nil {
				return err
			}
			if err := backend.WriteFloat64(&buf, c.Heat); err != nil {
				return err
			}
			if err := backend.WriteInt64(&buf, c.LastAccess); err != nil {
				return err
			}
		}
	}

	tmp := e.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("chunk: write temp manifest: %w", err)
	}
	return os.Rename(tmp, e.manifestPath())
}

func (e *Engine) load() error {
	data, err := os.ReadFile(e.manifestPath())
	if err != nil {
		return err
	}
	r := bytes.NewReader(data)

	numBlobs, err := backend.ReadUint32(r)
	if err != nil {
		return err
	}

	manifests := make(map[string]*Manifest, numBlobs)
	for b := uint32(0); b < numBlobs; b++ {
		keyBytes, err := backend.ReadLenPrefixed(r, maxManifestKeyLen)
		if err != nil {
			return fmt.Errorf("blob %d: key: %w", b, err)
		}
		m := &Manifest{Key: string(keyBytes)}
		if m.TotalSize, err = backend.ReadUint64(r); err != nil {
			return err
		}
		if m.ChunkSize, err = backend.ReadUint64(r); err != nil {
			return err
		}
		if m.NumChunks, err = backend.ReadUint32(r); err != nil {
			return err
		}
		count, err := backend.ReadUint32(r)
		if err != nil {
			return err
		}
		m.Chunks = make([]ChunkDescriptor, count)
		for i := uint32(0); i < count; i++ {
			c := &m.Chunks[i]
			if c.OriginalSize, err = backend.ReadUint64(r); err != nil {
				return err
			}
			if c.EncodedSize, err = backend.ReadUint64(r); err != nil {
				return err
			}
			tierByte, err := backend.ReadUint8(r)
			if err != nil {
				return err
			}
			c.Tier = digestive.Tier(tierByte)
			algoByte, err := backend.ReadUint8(r)
			if err != nil {
				return err
			}
			c.Algorithm = digestive.Algorithm(algoByte)
			if c.Heat, err = backend.ReadFloat64(r); err != nil {
				return err
			}
			if c.LastAccess, err = backend.ReadInt64(r); err != nil {
				return err
			}
		}
		manifests[m.Key] = m
	}

	e.manifests = manifests
	return nil
}
