package extent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/splicegen/blockhash"
	"github.com/rpcpool/splicegen/blockindex"
	"github.com/rpcpool/splicegen/config"
	"github.com/rpcpool/splicegen/source"
	"github.com/stretchr/testify/require"
)

// pseudoRandom fills n bytes with a reproducible, non-repeating sequence
// (an LCG) so that no block in it accidentally collides with another.
func pseudoRandom(n int) []byte {
	out := make([]byte, n)
	state := uint32(0x2545F491)
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = byte(state >> 24)
	}
	return out
}

func open(t *testing.T, data []byte) *source.FileSequence {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	s, err := source.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildIndex(t *testing.T, image source.ByteSequence, blockSize int) *blockindex.Index {
	t.Helper()
	idx, err := blockindex.Build(func(fn func(blockhash.Record) error) error {
		_, err := blockhash.Stream(image.(*source.FileSequence).Reader(), blockSize, fn)
		return err
	})
	require.NoError(t, err)
	return idx
}

func testCfg(t *testing.T) config.Config {
	t.Helper()
	c, err := config.New(16, 64, 64, 0)
	require.NoError(t, err)
	return c
}

func fileHashes(t *testing.T, file source.ByteSequence, blockSize int) []blockhash.Record {
	t.Helper()
	records, _, err := blockhash.Collect(file.(*source.FileSequence).Reader(), blockSize)
	require.NoError(t, err)
	return records
}

func TestDiscover_ExactOverlay(t *testing.T) {
	cfg := testCfg(t)
	imageData := pseudoRandom(256)
	fileData := append([]byte{}, imageData[64:192]...)

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	require.Equal(t, Extent{FilePath: "F", FileOffset: 0, ImageOffset: 64, Length: 128}, extents[0])
}

func TestDiscover_NoMatch(t *testing.T) {
	cfg := testCfg(t)
	imageData := pseudoRandom(128)
	fileData := make([]byte, 128) // zeros, absent from the pseudo-random image

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Empty(t, extents)
}

func TestDiscover_ExtensionBeyondMinimum(t *testing.T) {
	cfg := testCfg(t)
	imageData := pseudoRandom(512)
	fileData := append([]byte{}, imageData[0:300]...)

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	require.Equal(t, int64(0), extents[0].FileOffset)
	require.Equal(t, int64(0), extents[0].ImageOffset)
	require.EqualValues(t, 300, extents[0].Length)
}

func TestDiscover_MisalignedFileYieldsNoCopy(t *testing.T) {
	cfg := testCfg(t)
	imageData := pseudoRandom(256)
	fileData := append([]byte{}, imageData[5:5+74]...) // M+10 = 74, offset by 5 bytes

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Empty(t, extents)
}

// TestDiscover_CandidateNearImageTailIsSkippedNotFatal covers a candidate
// whose first block hash matches but whose image offset doesn't leave M
// bytes before the image ends (here the image itself is shorter than M).
// Such a candidate can never verify and must be silently skipped rather
// than aborting discovery with an out-of-bounds error.
func TestDiscover_CandidateNearImageTailIsSkippedNotFatal(t *testing.T) {
	cfg := testCfg(t) // B=16, M=64
	imageData := pseudoRandom(50)
	fileData := append([]byte{}, imageData[0:16]...) // matches image's first block
	fileData = append(fileData, pseudoRandom(48)...) // pad to a full M-byte file so Discover's outer loop runs

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Empty(t, extents)
}

func TestDiscover_MultipleExtentsPerFile(t *testing.T) {
	cfg := testCfg(t)
	imageData := pseudoRandom(4 * 64 * 4) // 16*M; the file draws only on the first 4*M
	notInImage := make([]byte, 64)
	for i, b := range pseudoRandom(64) {
		notInImage[i] = ^b // bitwise complement: guaranteed to differ block-wise from its source block
	}

	var fileData []byte
	fileData = append(fileData, imageData[0:64]...)
	fileData = append(fileData, notInImage...)
	fileData = append(fileData, imageData[3*64:4*64]...)

	image := open(t, imageData)
	file := open(t, fileData)
	idx := buildIndex(t, image, int(cfg.BlockSize))

	extents, err := Discover("F", file, image, fileHashes(t, file, int(cfg.BlockSize)), idx, cfg, nil)
	require.NoError(t, err)
	require.Len(t, extents, 2)
	require.Equal(t, int64(0), extents[0].FileOffset)
	require.Equal(t, int64(0), extents[0].ImageOffset)
	require.Equal(t, int64(3*64), extents[1].ImageOffset)
}
