// Package metastore implements the metadata store: a mapping from key
// to entry descriptor, persisted as metadata.db (§4.3).
package metastore

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/backend"
)

// maxKeyLen guards against corrupt length prefixes causing unbounded
// allocation while reading metadata.db.
const maxKeyLen = 1 << 20

// Store is the in-memory metadata table, flushed in full to
// metadata.db on demand (§4.2's "rewritten in full on flush" applies
// identically here).
type Store struct {
	mu sync.RWMutex

	path        string
	heatEnabled bool

	descriptors map[string]*digestive.Descriptor

	totalAccesses uint64
	opsSinceReorg uint64
	lastReorgTS   int64
	lastDecayTS   int64
}

// Open loads metadata.db at path if present, or starts empty.
// heatEnabled must match the engine configuration's EnableHeatDecay —
// it determines whether the heat field is present in the on-disk
// layout (§3's "present only when heat decay is enabled").
func Open(path string, heatEnabled bool) (*Store, error) {
	s := &Store{
		path:        path,
		heatEnabled: heatEnabled,
		descriptors: make(map[string]*digestive.Descriptor),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("metastore: open %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the descriptor for key, or ok=false.
func (s *Store) Get(key string) (digestive.Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[key]
	if !ok {
		return digestive.Descriptor{}, false
	}
	return *d, true
}

// Put installs or replaces the descriptor for key.
func (s *Store) Put(key string, d digestive.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.descriptors[key] = &cp
}

// Delete removes the descriptor for key, reporting whether it was
// present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.descriptors[key]
	delete(s.descriptors, key)
	return ok
}

// Keys returns every key currently tracked, in no particular order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.descriptors))
	for k := range s.descriptors {
		keys = append(keys, k)
	}
	return keys
}

// Count returns the number of tracked descriptors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptors)
}

// RecordAccess bumps the descriptor's access counter and the global
// total_accesses / ops_since_reorg counters. Returns false if key is
// not tracked.
func (s *Store) RecordAccess(key string, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descriptors[key]
	if !ok {
		return false
	}
	d.AccessCount++
	d.LastAccess = now
	s.totalAccesses++
	s.opsSinceReorg++
	return true
}

// RecordOp bumps only the global ops_since_reorg counter (not
// total_accesses), for operations that do not touch a specific
// descriptor's access_count (insert, remove).
func (s *Store) RecordOp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opsSinceReorg++
}

// Counters returns the global header counters.
func (s *Store) Counters() (totalAccesses, opsSinceReorg uint64, lastReorgTS, lastDecayTS int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalAccesses, s.opsSinceReorg, s.lastReorgTS, s.lastDecayTS
}

// ResetReorgCounters clears ops_since_reorg and stamps last_reorg_ts,
// per §4.4 "on firing, ops_since_reorg and last_reorg_ts are reset".
func (s *Store) ResetReorgCounters(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opsSinceReorg = 0
	s.lastReorgTS = now
}

// SetLastDecayTS stamps the last heat-decay timestamp.
func (s *Store) SetLastDecayTS(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDecayTS = now
}

// Snapshot returns a consistent copy of every descriptor, keyed by
// key, for use by the reorganizer and heat-decay passes.
func (s *Store) Snapshot() map[string]digestive.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]digestive.Descriptor, len(s.descriptors))
	for k, d := range s.descriptors {
		out[k] = *d
	}
	return out
}

// Mutate applies fn to the live descriptor for key under the store's
// write lock, matching the "update descriptor atomically" requirement
// in §4.5. Returns false if key is not tracked.
func (s *Store) Mutate(key string, fn func(*digestive.Descriptor)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descriptors[key]
	if !ok {
		return false
	}
	fn(d)
	return true
}

// Flush rewrites metadata.db in full, per §4.3.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	if err := backend.WriteUint64(&buf, s.totalAccesses); err != nil {
		return err
	}
	if err := backend.WriteUint64(&buf, s.opsSinceReorg); err != nil {
		return err
	}
	if err := backend.WriteInt64(&buf, s.lastReorgTS); err != nil {
		return err
	}
	if s.heatEnabled {
		if err := backend.WriteInt64(&buf, s.lastDecayTS); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(s.descriptors))
	for k := range s.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic output, easier to diff/test

	if err := backend.WriteUint32(&buf, uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.writeRecord(&buf, k, s.descriptors[k]); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("metastore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("metastore: rename temp file: %w", err)
	}
	return nil
}

func (s *Store) writeRecord(buf *bytes.Buffer, key string, d *digestive.Descriptor) error {
	if err := backend.WriteLenPrefixed(buf, []byte(key)); err != nil {
		return err
	}
	if err := backend.WriteUint64(buf, d.AccessCount); err != nil {
		return err
	}
	if err := backend.WriteInt64(buf, d.LastAccess); err != nil {
		return err
	}
	if err := backend.WriteUint8(buf, uint8(d.Tier)); err != nil {
		return err
	}
	if err := backend.WriteUint8(buf, uint8(d.Algorithm)); err != nil {
		return err
	}
	if err := backend.WriteUint64(buf, d.OriginalSize); err != nil {
		return err
	}
	if err := backend.WriteUint64(buf, d.EncodedSize); err != nil {
		return err
	}
	if s.heatEnabled {
		if err := backend.WriteFloat64(buf, d.Heat); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	r := bytes.NewReader(data)

	if s.totalAccesses, err = backend.ReadUint64(r); err != nil {
		return err
	}
	if s.opsSinceReorg, err = backend.ReadUint64(r); err != nil {
		return err
	}
	if s.lastReorgTS, err = backend.ReadInt64(r); err != nil {
		return err
	}
	if s.heatEnabled {
		if s.lastDecayTS, err = backend.ReadInt64(r); err != nil {
			return err
		}
	}

	count, err := backend.ReadUint32(r)
	if err != nil {
		return err
	}

	descriptors := make(map[string]*digestive.Descriptor, count)
	for i := uint32(0); i < count; i++ {
		keyBytes, err := backend.ReadLenPrefixed(r, maxKeyLen)
		if err != nil {
			return fmt.Errorf("record %d: key: %w", i, err)
		}

		var d digestive.Descriptor
		if d.AccessCount, err = backend.ReadUint64(r); err != nil {
			return fmt.Errorf("record %d: access_count: %w", i, err)
		}
		if d.LastAccess, err = backend.ReadInt64(r); err != nil {
			return fmt.Errorf("record %d: last_access: %w", i, err)
		}
		tierByte, err := backend.ReadUint8(r)
		if err != nil {
			return fmt.Errorf("record %d: tier: %w", i, err)
		}
		d.Tier = digestive.Tier(tierByte)
		algoByte, err := backend.ReadUint8(r)
		if err != nil {
			return fmt.Errorf("record %d: algorithm: %w", i, err)
		}
		d.Algorithm = digestive.Algorithm(algoByte)
		if d.OriginalSize, err = backend.ReadUint64(r); err != nil {
			return fmt.Errorf("record %d: original_size: %w", i, err)
		}
		if d.EncodedSize, err = backend.ReadUint64(r); err != nil {
			return fmt.Errorf("record %d: encoded_size: %w", i, err)
		}
		if s.heatEnabled {
			if d.Heat, err = backend.ReadFloat64(r); err != nil {
				return fmt.Errorf("record %d: heat: %w", i, err)
			}
			d.HeatTracked = true
		}
		descriptors[string(keyBytes)] = &d
	}

	s.descriptors = descriptors
	return nil
}
