package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollect_DigestsAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o640))

	rec, err := Collect(path, DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, path, rec.Path)
	require.NotEmpty(t, rec.MD5)
	require.NotEmpty(t, rec.SHA256)
	require.Contains(t, rec.SHA256.String(), "sha256:")
}

func TestCollect_DigestsOptedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o640))

	rec, err := Collect(path, Options{})
	require.NoError(t, err)
	require.Empty(t, rec.MD5)
	require.Empty(t, rec.SHA256)
}

func TestCollect_MissingFile(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "does-not-exist"), DefaultOptions())
	require.Error(t, err)
}
