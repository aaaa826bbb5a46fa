// Package digestive implements a self-organizing, tiered-compression
// embedded key-value store: hot entries stay uncompressed for cheap
// reads, cold entries migrate into progressively stronger compression
// as their access frequency or heat decays.
package digestive

import (
	"errors"
	"fmt"
)

// Kind classifies the errors the core distinguishes. Every error the
// public API returns that originates inside the engine can be matched
// against these with errors.Is.
type Kind int

const (
	// KindNotFound means the requested key is absent.
	KindNotFound Kind = iota
	// KindRangeInvalid means a chunk range request was out of bounds
	// or start > end.
	KindRangeInvalid
	// KindDecodeFailed means a codec reported corruption while
	// decoding previously-encoded bytes.
	KindDecodeFailed
	// KindEncodeFailed means a codec failed while encoding; the
	// dispatcher falls back to NONE and continues.
	KindEncodeFailed
	// KindIOFailed means an underlying filesystem operation failed.
	KindIOFailed
	// KindCapacityExceeded means a size limit was breached with
	// deletion disallowed; the triggering operation still succeeds.
	KindCapacityExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRangeInvalid:
		return "range_invalid"
	case KindDecodeFailed:
		return "decode_failed"
	case KindEncodeFailed:
		return "encode_failed"
	case KindIOFailed:
		return "io_failed"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	default:
		return fmt.Sprintf("unknown_kind(%d)", int(k))
	}
}

// Error is the concrete error type returned by core operations. Op
// names the failing operation (e.g. "get", "reorganize") and Err, if
// present, wraps the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("digestive: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("digestive: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes *Error comparable against the sentinel Kind values below
// via errors.Is(err, digestive.ErrNotFound), matching the sentinel
// wrapping idiom used throughout this codebase.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel errors, one per Kind, for errors.Is comparisons.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Op: "sentinel"}
	ErrRangeInvalid     = &Error{Kind: KindRangeInvalid, Op: "sentinel"}
	ErrDecodeFailed     = &Error{Kind: KindDecodeFailed, Op: "sentinel"}
	ErrEncodeFailed     = &Error{Kind: KindEncodeFailed, Op: "sentinel"}
	ErrIOFailed         = &Error{Kind: KindIOFailed, Op: "sentinel"}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded, Op: "sentinel"}
)

func newError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound returns a KindNotFound *Error for op, with no wrapped cause.
func NotFound(op string) error { return newError(op, KindNotFound, nil) }

// RangeInvalid wraps err as a KindRangeInvalid *Error for op.
func RangeInvalid(op string, err error) error { return newError(op, KindRangeInvalid, err) }

// DecodeFailed wraps err as a KindDecodeFailed *Error for op.
func DecodeFailed(op string, err error) error { return newError(op, KindDecodeFailed, err) }

// EncodeFailed wraps err as a KindEncodeFailed *Error for op.
func EncodeFailed(op string, err error) error { return newError(op, KindEncodeFailed, err) }

// IOFailed wraps err as a KindIOFailed *Error for op.
func IOFailed(op string, err error) error { return newError(op, KindIOFailed, err) }

// CapacityExceeded wraps err as a KindCapacityExceeded *Error for op.
func CapacityExceeded(op string, err error) error { return newError(op, KindCapacityExceeded, err) }

// IsNotFound reports whether err is (or wraps) a KindNotFound error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
