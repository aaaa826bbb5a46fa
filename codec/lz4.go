package codec

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// lz4FastCodec is block-mode LZ4 at the library's default (fastest)
// setting: good throughput, modest ratio.
type lz4FastCodec struct{}

func (lz4FastCodec) Encode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)

	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 fast compress: %w", err)
	}
	if n == 0 {
		// CompressBlock returns 0 when the input is incompressible;
		// the dispatcher's NONE fallback handles this case.
		return nil, fmt.Errorf("lz4 fast compress: incompressible input")
	}
	return dst[:n], nil
}

func (lz4FastCodec) Decode(data []byte, originalSize int) ([]byte, error) {
	return lz4Decode(data, originalSize)
}

// lz4HighCodec uses the library's high-compression mode: slower
// encode, meaningfully better ratio than lz4FastCodec, still fast to
// decode (LZ4 decode cost is independent of the compression level
// used to produce the block).
type lz4HighCodec struct{}

func (lz4HighCodec) Encode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)

	compressor := lz4.CompressorHC{Level: lz4.Level9}
	n, err := compressor.CompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 high compress: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("lz4 high compress: incompressible input")
	}
	return dst[:n], nil
}

func (lz4HighCodec) Decode(data []byte, originalSize int) ([]byte, error) {
	return lz4Decode(data, originalSize)
}

func lz4Decode(data []byte, originalSize int) ([]byte, error) {
	if originalSize == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != originalSize {
		return nil, errSizeMismatch(originalSize, n)
	}
	return dst, nil
}
