// Package writebuffer implements lazy persistence staging (§4.7):
// writes accumulate in memory and are flushed to durable storage in
// batches, while reads against a still-buffered key are served
// read-your-writes without forcing a flush of anything else.
package writebuffer

import "sync"

// Flusher receives one staged (key, encoded value) pair at flush
// time. It is expected to be a blob store Put plus whatever metadata
// bookkeeping the caller needs; returning an error aborts the flush,
// leaving the remaining buffered entries in place for the next try.
type Flusher func(key string, value []byte) error

// Buffer stages encoded values in memory until flushed, bounded by a
// byte-size threshold (§4.7: "flush triggers: size threshold,
// explicit flush, shutdown").
type Buffer struct {
	mu sync.Mutex

	maxBytes     uint64
	currentBytes uint64
	staged       map[string][]byte
	order        []string // insertion order, for deterministic flush
}

// New creates a Buffer whose Stage reports true once staged bytes
// reach maxBytes; the caller then calls Flush. A maxBytes of 0
// disables the size trigger; the caller must flush explicitly.
func New(maxBytes uint64) *Buffer {
	return &Buffer{maxBytes: maxBytes, staged: make(map[string][]byte)}
}

// Stage records value for key, ready for Flush. If the key was
// already staged, its old bytes are evicted from the size count
// first. Returns true if staging this entry crossed maxBytes, so the
// caller knows to flush.
func (b *Buffer) Stage(key string, value []byte) (shouldFlush bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.staged[key]; ok {
		b.currentBytes -= uint64(len(old))
	} else {
		b.order = append(b.order, key)
	}
	b.staged[key] = value
	b.currentBytes += uint64(len(value))

	return b.maxBytes > 0 && b.currentBytes >= b.maxBytes
}

// Peek returns a staged value for key without removing it, serving a
// read-your-writes lookup against the buffer before falling through
// to durable storage.
func (b *Buffer) Peek(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.staged[key]
	return v, ok
}

// Discard removes key from the buffer without flushing it, for
// callers that deleted a key that was never yet durably persisted.
func (b *Buffer) Discard(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(key)
}

func (b *Buffer) removeLocked(key string) {
	old, ok := b.staged[key]
	if !ok {
		return
	}
	b.currentBytes -= uint64(len(old))
	delete(b.staged, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of distinct keys currently staged.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Bytes reports the current staged byte total.
func (b *Buffer) Bytes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentBytes
}

// Flush drains every staged entry through flush, in the order they
// were staged. On the first error it stops, leaving the failed entry
// and everything after it staged for a future Flush (§4.7: a failed
// flush must not lose data).
func (b *Buffer) Flush(flush Flusher) error {
	b.mu.Lock()
	order := append([]string(nil), b.order...)
	b.mu.Unlock()

	for _, key := range order {
		b.mu.Lock()
		value, ok := b.staged[key]
		b.mu.Unlock()
		if !ok {
			continue // raced with a concurrent Discard/Stage; nothing to flush
		}

		if err := flush(key, value); err != nil {
			return err
		}

		b.mu.Lock()
		b.removeLocked(key)
		b.mu.Unlock()
	}
	return nil
}
