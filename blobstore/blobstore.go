// Package blobstore implements the blob store: a mapping from key to
// an already-encoded byte sequence, persisted as data.db (§4.2).
package blobstore

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Barthelemy-Drabczuk/digestive-database/backend"
)

// maxValueLen is the length bound passed to ReadLenPrefixed for keys
// and values while reading data.db: the largest length a uint32
// prefix can carry, so every record the writer produced is accepted.
const maxValueLen = 1<<32 - 1

// Store holds encoded blob bytes in memory, flushed in full to
// data.db on demand (no log-structured appends — §4.2).
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string][]byte
}

// Open loads data.db at path if present, or starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string][]byte)}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("blobstore: open %s: %w", path, err)
	}
	return s, nil
}

// Put stores the already-encoded bytes for key, replacing any
// previous value.
func (s *Store) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.values[key] = cp
}

// Get returns the encoded bytes for key, or ok=false.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

// Remove deletes key, reporting whether it was present.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// SizeOnDisk returns the total length of every stored value — the
// size data.db will occupy the next time it is flushed, ignoring the
// keys and the record framing overhead.
func (s *Store) SizeOnDisk() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, v := range s.values {
		total += uint64(len(v))
	}
	return total
}

// Flush rewrites data.db in full and returns checksum applied to the
// file contents (the engine passes a BLAKE3 digest for the
// Stats.DataFileChecksum diagnostic), or "" when checksum is nil.
func (s *Store) Flush(checksum func([]byte) string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic output, easier to diff/test

	var buf bytes.Buffer
	for _, k := range keys {
		if err := backend.WriteLenPrefixed(&buf, []byte(k)); err != nil {
			return "", err
		}
		if err := backend.WriteLenPrefixed(&buf, s.values[k]); err != nil {
			return "", err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return "", fmt.Errorf("blobstore: rename temp file: %w", err)
	}

	var sum string
	if checksum != nil {
		sum = checksum(buf.Bytes())
	}
	return sum, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	r := bytes.NewReader(data)

	values := make(map[string][]byte)
	for r.Len() > 0 {
		keyBytes, err := backend.ReadLenPrefixed(r, maxValueLen)
		if err != nil {
			return fmt.Errorf("reading key: %w", err)
		}
		valueBytes, err := backend.ReadLenPrefixed(r, maxValueLen)
		if err != nil {
			return fmt.Errorf("reading value for key %q: %w", keyBytes, err)
		}
		values[string(keyBytes)] = valueBytes
	}

	s.values = values
	return nil
}
