package blockhash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStream_FullBlocksOnly(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 16*3)
	records, length, err := Collect(bytes.NewReader(data), 16)
	require.NoError(t, err)
	require.EqualValues(t, 48, length)
	require.Len(t, records, 3)
	for i, rec := range records {
		require.EqualValues(t, i*16, rec.Offset)
	}
	require.Equal(t, records[0].Hash, records[1].Hash) // identical block content hashes identically
}

func TestStream_TrailingPartialBlockIgnored(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x01}, 16*2), []byte{0x02, 0x02, 0x02}...)
	records, length, err := Collect(bytes.NewReader(data), 16)
	require.NoError(t, err)
	require.EqualValues(t, len(data), length)
	require.Len(t, records, 2)
}

func TestStream_EmptyInput(t *testing.T) {
	records, length, err := Collect(bytes.NewReader(nil), 16)
	require.NoError(t, err)
	require.Zero(t, length)
	require.Empty(t, records)
}

func TestStream_RejectsNonPositiveBlockSize(t *testing.T) {
	_, _, err := Collect(bytes.NewReader([]byte("hello")), 0)
	require.Error(t, err)
}

func TestOf_DifferentBlocksDiffer(t *testing.T) {
	a := Of(bytes.Repeat([]byte{0x01}, 16))
	b := Of(bytes.Repeat([]byte{0x02}, 16))
	require.NotEqual(t, a, b)
}
