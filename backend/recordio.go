package backend

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteLenPrefixed writes a uint32 big-endian length prefix followed
// by b. Every on-disk record format this module defines (blob
// records, metadata descriptors, chunk manifests) is built out of
// this primitive, generalized from the length-prefixed framing this
// package originally used for whole-blob headers.
func WriteLenPrefixed(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return fmt.Errorf("writing length prefix: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// ReadLenPrefixed reads a uint32 big-endian length prefix and that
// many bytes. maxLen guards against corrupt length prefixes causing
// unbounded allocation; pass 0 for no limit.
func ReadLenPrefixed(r io.Reader, maxLen uint32) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("reading length prefix: %w", err)
	}
	if maxLen > 0 && n > maxLen {
		return nil, fmt.Errorf("length prefix %d exceeds maximum %d", n, maxLen)
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading payload of length %d: %w", n, err)
	}
	return buf, nil
}

// WriteUint64 and WriteUint8 are small helpers kept alongside the
// length-prefix primitives above so header fields (access counters,
// timestamps, enum bytes) are written with the same big-endian
// convention as record payloads.
func WriteUint64(w io.Writer, v uint64) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("writing uint64: %w", err)
	}
	return nil
}

func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading uint64: %w", err)
	}
	return v, nil
}

func WriteUint32(w io.Writer, v uint32) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("writing uint32: %w", err)
	}
	return nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading uint32: %w", err)
	}
	return v, nil
}

func WriteUint8(w io.Writer, v uint8) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("writing uint8: %w", err)
	}
	return nil
}

func ReadUint8(r io.Reader) (uint8, error) {
	var v uint8
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading uint8: %w", err)
	}
	return v, nil
}

func WriteInt64(w io.Writer, v int64) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("writing int64: %w", err)
	}
	return nil
}

func ReadInt64(r io.Reader) (int64, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading int64: %w", err)
	}
	return v, nil
}

func WriteFloat64(w io.Writer, v float64) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("writing float64: %w", err)
	}
	return nil
}

func ReadFloat64(r io.Reader) (float64, error) {
	var v float64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading float64: %w", err)
	}
	return v, nil
}
