package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileSequence_ReadAt(t *testing.T) {
	data := []byte("hello splicegen world")
	path := writeTemp(t, data)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.EqualValues(t, len(data), s.Len())

	buf := make([]byte, 5)
	require.NoError(t, s.ReadAt(buf, 6))
	require.Equal(t, "splic", string(buf))
}

func TestFileSequence_ShortReadIsError(t *testing.T) {
	path := writeTemp(t, []byte("short"))
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 100)
	err = s.ReadAt(buf, 0)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestOpen_MissingFileIsNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestFileSequence_Reader(t *testing.T) {
	data := []byte("sequential read contents")
	path := writeTemp(t, data)
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	got := make([]byte, len(data))
	n, err := s.Reader().Read(got)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, got)
}
