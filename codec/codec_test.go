package codec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
)

func TestRegistryRoundTrip(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	defer reg.Close()

	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 200))

	for _, algo := range []digestive.Algorithm{
		digestive.AlgorithmNone,
		digestive.AlgorithmLZ4Fast,
		digestive.AlgorithmLZ4High,
		digestive.AlgorithmZstdFast,
		digestive.AlgorithmZstdMedium,
		digestive.AlgorithmZstdMax,
	} {
		t.Run(algo.String(), func(t *testing.T) {
			encoded, usedAlgo, err := reg.Encode(algo, nil, payload)
			require.NoError(t, err)

			decoded, err := reg.Decode(usedAlgo, nil, encoded, len(payload))
			require.NoError(t, err)
			require.Equal(t, payload, decoded)
		})
	}
}

func TestRegistryEmptyValue(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	defer reg.Close()

	encoded, algo, err := reg.Encode(digestive.AlgorithmZstdMax, nil, []byte{})
	require.NoError(t, err)

	decoded, err := reg.Decode(algo, nil, encoded, 0)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestRegistryDecodeSizeMismatchFails(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	defer reg.Close()

	encoded, algo, err := reg.Encode(digestive.AlgorithmZstdFast, nil, []byte("hello world"))
	require.NoError(t, err)

	_, err = reg.Decode(algo, nil, encoded, 3)
	require.Error(t, err)
}

func TestRegistryOverrideCodec(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	defer reg.Close()

	var encodeCalled, decodeCalled bool
	override := struct {
		enc func([]byte) ([]byte, error)
		dec func([]byte, int) ([]byte, error)
	}{
		enc: func(data []byte) ([]byte, error) {
			encodeCalled = true
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		},
		dec: func(data []byte, originalSize int) ([]byte, error) {
			decodeCalled = true
			return data, nil
		},
	}

	encoded, usedAlgo, err := reg.Encode(digestive.AlgorithmZstdFast, override.enc, []byte("payload"))
	require.NoError(t, err)
	require.True(t, encodeCalled)
	require.Equal(t, digestive.AlgorithmZstdFast, usedAlgo)

	decoded, err := reg.Decode(usedAlgo, override.dec, encoded, len("payload"))
	require.NoError(t, err)
	require.True(t, decodeCalled)
	require.Equal(t, []byte("payload"), decoded)
}

func TestRegistryEncodeRetriesBuiltinOnOverrideFailure(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	defer reg.Close()

	failing := func([]byte) ([]byte, error) { return nil, errors.New("override boom") }

	_, usedAlgo, err := reg.Encode(digestive.AlgorithmZstdFast, failing, []byte(strings.Repeat("payload ", 64)))
	require.NoError(t, err)
	require.Equal(t, digestive.AlgorithmZstdFast, usedAlgo, "override failure should retry the built-in codec for the slot before falling back to NONE")
}
