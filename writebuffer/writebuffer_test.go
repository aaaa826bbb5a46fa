package writebuffer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Barthelemy-Drabczuk/digestive-database/writebuffer"
)

func TestStageAndPeekReadYourWrites(t *testing.T) {
	b := writebuffer.New(0)
	b.Stage("k", []byte("v1"))

	v, ok := b.Peek("k")
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	_, ok = b.Peek("missing")
	require.False(t, ok)
}

func TestStageCrossingThresholdSignalsFlush(t *testing.T) {
	b := writebuffer.New(10)
	require.False(t, b.Stage("a", []byte("12345")))
	require.True(t, b.Stage("b", []byte("67890")))
}

func TestFlushDrainsInOrderAndClearsBuffer(t *testing.T) {
	b := writebuffer.New(0)
	b.Stage("a", []byte("1"))
	b.Stage("b", []byte("2"))

	var flushed []string
	err := b.Flush(func(key string, value []byte) error {
		flushed = append(flushed, key)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, flushed)
	require.Equal(t, 0, b.Len())
	require.Equal(t, uint64(0), b.Bytes())
}

func TestFlushStopsOnFirstErrorAndRetainsRemainder(t *testing.T) {
	b := writebuffer.New(0)
	b.Stage("a", []byte("1"))
	b.Stage("b", []byte("2"))

	boom := errors.New("disk full")
	err := b.Flush(func(key string, value []byte) error {
		if key == "a" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, b.Len()) // nothing was removed, "a" failed before any removal

	_, ok := b.Peek("a")
	require.True(t, ok)
}

func TestDiscardRemovesWithoutFlushing(t *testing.T) {
	b := writebuffer.New(0)
	b.Stage("a", []byte("1"))
	b.Discard("a")

	_, ok := b.Peek("a")
	require.False(t, ok)
	require.Equal(t, 0, b.Len())
}
