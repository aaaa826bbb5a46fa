package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdLevel is a nominal compression target; klauspost/compress's
// pure-Go encoder exposes four tuning presets rather than arbitrary
// integer levels the way the reference C library does, so the three
// zstd tiers map onto the closest preset (see DESIGN.md).
type zstdLevel int

const (
	zstdLevelFast   zstdLevel = iota // nominal level 3
	zstdLevelMedium                  // nominal level 10
	zstdLevelMax                     // nominal level 19
)

func (l zstdLevel) encoderLevel() zstd.EncoderLevel {
	switch l {
	case zstdLevelFast:
		return zstd.SpeedDefault
	case zstdLevelMedium:
		return zstd.SpeedBetterCompression
	case zstdLevelMax:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// zstdCodec wraps a reusable encoder/decoder pair at a fixed level.
// zstd.Encoder and zstd.Decoder are safe for concurrent use, so a
// single pair is shared across all Encode/Decode calls for this tier.
type zstdCodec struct {
	level   zstdLevel
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(level zstdLevel) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level.encoderLevel()))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{level: level, encoder: enc, decoder: dec}, nil
}

func (z *zstdCodec) Encode(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (z *zstdCodec) Decode(data []byte, originalSize int) ([]byte, error) {
	decoded, err := z.decoder.DecodeAll(data, make([]byte, 0, originalSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(decoded) != originalSize {
		return nil, errSizeMismatch(originalSize, len(decoded))
	}
	return decoded, nil
}

func (z *zstdCodec) Close() {
	z.encoder.Close()
	z.decoder.Close()
}
