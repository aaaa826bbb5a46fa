// Package index implements an optional secondary-index companion
// backed by bbolt: a (table, column, value) -> []key multimap,
// persisted to its own indexes.db, external to the core key-value
// store. Nothing in the core packages imports this one; an engine
// wires it in only when a caller asks for secondary lookups.
package index

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"
)

const bucketName = "index"

// composite keys are "table\x00column\x00value", each component
// length-prefixed to keep '\x00' inside a component from colliding
// with the separator.
func compositeKey(table, column, value string) []byte {
	var buf bytes.Buffer
	for _, part := range []string{table, column, value} {
		fmt.Fprintf(&buf, "%08d%s", len(part), part)
	}
	return buf.Bytes()
}

// Index is a durable (table, column, value) -> set-of-keys multimap.
type Index struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("index: init bucket: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying bbolt database.
func (i *Index) Close() error { return i.db.Close() }

// Put records that key belongs to the (table, column, value) tuple.
// Idempotent: re-adding an already-present key is a no-op.
func (i *Index) Put(table, column, value string, key []byte) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		ck := compositeKey(table, column, value)
		keys := decodeKeySet(b.Get(ck))
		for _, k := range keys {
			if bytes.Equal(k, key) {
				return nil
			}
		}
		keys = append(keys, key)
		return b.Put(ck, encodeKeySet(keys))
	})
}

// Remove drops key from the (table, column, value) tuple, if present.
func (i *Index) Remove(table, column, value string, key []byte) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		ck := compositeKey(table, column, value)
		keys := decodeKeySet(b.Get(ck))
		out := keys[:0]
		for _, k := range keys {
			if !bytes.Equal(k, key) {
				out = append(out, k)
			}
		}
		if len(out) == 0 {
			return b.Delete(ck)
		}
		return b.Put(ck, encodeKeySet(out))
	})
}

// Lookup returns every key recorded under (table, column, value).
func (i *Index) Lookup(table, column, value string) ([][]byte, error) {
	var keys [][]byte
	err := i.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		keys = decodeKeySet(b.Get(compositeKey(table, column, value)))
		return nil
	})
	return keys, err
}

func encodeKeySet(keys [][]byte) []byte {
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%08d", len(k))
		buf.Write(k)
	}
	return buf.Bytes()
}

func decodeKeySet(raw []byte) [][]byte {
	var keys [][]byte
	for len(raw) >= 8 {
		var n int
		fmt.Sscanf(string(raw[:8]), "%08d", &n)
		raw = raw[8:]
		if n > len(raw) {
			break
		}
		k := make([]byte, n)
		copy(k, raw[:n])
		keys = append(keys, k)
		raw = raw[n:]
	}
	return keys
}

// Op identifies the kind of mutation an Observer is told about.
type Op uint8

const (
	OpInsert Op = iota
	OpRemove
)

// Observer is notified of core mutations so it can keep derived
// secondary indexes current. table/column/value are caller-supplied
// (e.g. derived from a key's logical fields); the core never
// implements this interface itself.
type Observer interface {
	Observe(op Op, table, column, value string, key []byte)
}

// Sync is a convenience Observer that applies every notification
// directly to an Index.
type Sync struct {
	Idx *Index
}

func (s Sync) Observe(op Op, table, column, value string, key []byte) {
	switch op {
	case OpInsert:
		_ = s.Idx.Put(table, column, value, key)
	case OpRemove:
		_ = s.Idx.Remove(table, column, value, key)
	}
}
