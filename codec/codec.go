// Package codec implements the compression dispatcher: a closed set
// of algorithms, each with pure encode/decode functions, selected by
// the digestive.Algorithm tag recorded in an entry's descriptor.
package codec

import (
	"fmt"

	"github.com/Barthelemy-Drabczuk/digestive-database"
)

// Codec is the contract every registry entry satisfies. Decode MUST
// return exactly originalSize bytes or fail.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte, originalSize int) ([]byte, error)
}

// Registry is the closed tagged-variant dispatcher over the six
// recognized algorithms. It is stateless and safe for concurrent use
// (codecs hold no per-call mutable state of their own).
type Registry struct {
	codecs [6]Codec
}

// NewRegistry builds the standard registry: NONE, LZ4_FAST, LZ4_HIGH,
// ZSTD_FAST (level 3), ZSTD_MEDIUM (level 10), ZSTD_MAX (level 19).
func NewRegistry() (*Registry, error) {
	zstdFast, err := newZstdCodec(zstdLevelFast)
	if err != nil {
		return nil, fmt.Errorf("codec: init zstd fast: %w", err)
	}
	zstdMedium, err := newZstdCodec(zstdLevelMedium)
	if err != nil {
		return nil, fmt.Errorf("codec: init zstd medium: %w", err)
	}
	zstdMax, err := newZstdCodec(zstdLevelMax)
	if err != nil {
		return nil, fmt.Errorf("codec: init zstd max: %w", err)
	}

	r := &Registry{}
	r.codecs[digestive.AlgorithmNone] = noneCodec{}
	r.codecs[digestive.AlgorithmLZ4Fast] = lz4FastCodec{}
	r.codecs[digestive.AlgorithmLZ4High] = lz4HighCodec{}
	r.codecs[digestive.AlgorithmZstdFast] = zstdFast
	r.codecs[digestive.AlgorithmZstdMedium] = zstdMedium
	r.codecs[digestive.AlgorithmZstdMax] = zstdMax
	return r, nil
}

// Close releases any resources held by stateful codecs (the zstd
// encoders/decoders).
func (r *Registry) Close() error {
	for _, c := range r.codecs {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	return nil
}

func (r *Registry) lookup(algo digestive.Algorithm) (Codec, error) {
	if !algo.Valid() {
		return nil, fmt.Errorf("codec: unknown algorithm %d", uint8(algo))
	}
	c := r.codecs[algo]
	if c == nil {
		return nil, fmt.Errorf("codec: algorithm %s not initialized", algo)
	}
	return c, nil
}

// Encode dispatches to the codec named by algo, or — if a tier
// override function is supplied — to that function instead. On
// encode failure it falls back to NONE, returning the actually-used
// algorithm alongside the encoded bytes, per §4.1: the dispatcher
// never silently loses data.
func (r *Registry) Encode(algo digestive.Algorithm, override func([]byte) ([]byte, error), data []byte) ([]byte, digestive.Algorithm, error) {
	if override != nil {
		encoded, err := override(data)
		if err == nil {
			return encoded, algo, nil
		}
		// Fall through to the built-in codec for this slot, then to
		// NONE, matching the registry's own fallback discipline.
	}

	c, err := r.lookup(algo)
	if err == nil {
		encoded, encErr := c.Encode(data)
		if encErr == nil {
			return encoded, algo, nil
		}
	}

	none, _ := r.lookup(digestive.AlgorithmNone)
	encoded, err := none.Encode(data)
	if err != nil {
		return nil, digestive.AlgorithmNone, fmt.Errorf("codec: NONE fallback failed: %w", err)
	}
	return encoded, digestive.AlgorithmNone, nil
}

// Decode dispatches to the codec named by algo (or the override, if
// supplied), and verifies the decoded length matches originalSize
// exactly, per I2.
func (r *Registry) Decode(algo digestive.Algorithm, override func([]byte, int) ([]byte, error), data []byte, originalSize int) ([]byte, error) {
	var (
		decoded []byte
		err     error
	)
	if override != nil {
		decoded, err = override(data, originalSize)
	} else {
		var c Codec
		c, err = r.lookup(algo)
		if err == nil {
			decoded, err = c.Decode(data, originalSize)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("codec: decode with %s: %w", algo, err)
	}
	if len(decoded) != originalSize {
		return nil, fmt.Errorf("codec: decode with %s produced %d bytes, expected %d", algo, len(decoded), originalSize)
	}
	return decoded, nil
}
