package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/splicegen/source"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, data []byte) *source.FileSequence {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	s, err := source.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEqual_IdenticalRegions(t *testing.T) {
	image := open(t, []byte("AAAABBBBCCCCDDDD"))
	file := open(t, []byte("xxxxBBBBCCCCyyyy"))

	ok, err := Equal(file, image, 4, 4, 8, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEqual_Mismatch(t *testing.T) {
	image := open(t, []byte("AAAABBBBCCCCDDDD"))
	file := open(t, []byte("AAAAXXXXCCCCDDDD"))

	ok, err := Equal(file, image, 0, 0, 16, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEqual_SmallBufferChunking(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	image := open(t, data)
	file := open(t, data)

	ok, err := Equal(file, image, 0, 0, int64(len(data)), 17)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEqual_OutOfBounds(t *testing.T) {
	image := open(t, []byte("short"))
	file := open(t, []byte("short"))

	_, err := Equal(file, image, 0, 0, 100, 0)
	require.Error(t, err)
}

func TestEqual_ZeroLength(t *testing.T) {
	image := open(t, []byte("AAAA"))
	file := open(t, []byte("BBBB"))

	ok, err := Equal(file, image, 0, 0, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
}
