// Package extent implements the candidate matcher, byte-wise extender, and
// per-file discovery loop that together turn a file's block hashes into a
// list of verified, non-overlapping extents against the image.
package extent

import (
	"fmt"

	"github.com/rpcpool/splicegen/blockhash"
	"github.com/rpcpool/splicegen/blockindex"
	"github.com/rpcpool/splicegen/config"
	"github.com/rpcpool/splicegen/source"
	"github.com/rpcpool/splicegen/verify"
)

// Extent is a verified, contiguous byte range equal between an extracted
// file and the image.
type Extent struct {
	FilePath    string
	FileOffset  int64
	ImageOffset int64
	Length      int64
}

// Sink receives discovery progress notifications. Discover accepts a nil
// Sink and then reports nothing (progress reporting is optional).
type Sink interface {
	ExtentFound(path string, fileOffset, imageOffset, length int64)
}

// Candidates returns the image offsets the Image Block Index has on record
// for hash h, in ascending order, or nil on a miss. It exists as a named
// entry point for the matcher step even though it is presently a thin
// wrapper over Index.Lookup (no filtering happens between lookup and
// verification).
func Candidates(idx *blockindex.Index, h blockhash.Hash) []int64 {
	return idx.Lookup(h)
}

// hashBlockAt reads and hashes the block starting at pos. The caller must
// ensure pos+blockSize does not exceed the sequence's length.
func hashBlockAt(seq source.ByteSequence, pos, blockSize int64) (blockhash.Hash, error) {
	buf := make([]byte, blockSize)
	if err := seq.ReadAt(buf, pos); err != nil {
		return blockhash.Hash{}, fmt.Errorf("extent: reading block at %d: %w", pos, err)
	}
	return blockhash.Of(buf), nil
}

// Extend grows a verified match (fileOffset, imageOffset, length) forward as
// far as the two sequences keep agreeing: first a block-wise phase that
// compares whole blocks (cheap hash compare, then byte compare), then a
// byte-wise tail phase that finds the exact mismatch point.
func Extend(file, image source.ByteSequence, fileOffset, imageOffset, length int64, cfg config.Config) (int64, error) {
	Lf := file.Len()
	N := image.Len()
	B := cfg.BlockSize

	for fileOffset+length+B <= Lf && imageOffset+length+B <= N {
		fh, err := hashBlockAt(file, fileOffset+length, B)
		if err != nil {
			return 0, err
		}
		ih, err := hashBlockAt(image, imageOffset+length, B)
		if err != nil {
			return 0, err
		}
		if fh != ih {
			break
		}
		eq, err := verify.Equal(file, image, fileOffset+length, imageOffset+length, B, int(cfg.WriteChunkSize))
		if err != nil {
			return 0, err
		}
		if !eq {
			break
		}
		length += B
	}

	tail, err := matchTail(file, image, fileOffset+length, imageOffset+length, int(cfg.WriteChunkSize))
	if err != nil {
		return 0, err
	}
	return length + tail, nil
}

// matchTail byte-compares file and image starting at the given offsets,
// reading in chunks of at most bufSize bytes, and returns the length of the
// matching run up to the first mismatch or either sequence's end.
func matchTail(file, image source.ByteSequence, fileOffset, imageOffset int64, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = verify.DefaultBufferSize
	}
	remaining := file.Len() - fileOffset
	if r := image.Len() - imageOffset; r < remaining {
		remaining = r
	}
	var matched int64
	bufA := make([]byte, bufSize)
	bufB := make([]byte, bufSize)
	for remaining > 0 {
		chunk := int64(bufSize)
		if chunk > remaining {
			chunk = remaining
		}
		if err := file.ReadAt(bufA[:chunk], fileOffset+matched); err != nil {
			return 0, fmt.Errorf("extent: tail read on file at %d: %w", fileOffset+matched, err)
		}
		if err := image.ReadAt(bufB[:chunk], imageOffset+matched); err != nil {
			return 0, fmt.Errorf("extent: tail read on image at %d: %w", imageOffset+matched, err)
		}
		n := commonPrefixLen(bufA[:chunk], bufB[:chunk])
		matched += int64(n)
		if int64(n) < chunk {
			break
		}
		remaining -= chunk
	}
	return matched, nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Discover runs the per-file extent discovery loop described for the
// discoverer: it walks the file in candidate windows, verifies and extends
// each hit, and advances by the step size past each miss. The returned
// extents are sorted by ascending file offset and never overlap within the
// file.
func Discover(filePath string, file, image source.ByteSequence, hashes []blockhash.Record, idx *blockindex.Index, cfg config.Config, sink Sink) ([]Extent, error) {
	byOffset := make(map[int64]blockhash.Hash, len(hashes))
	for _, rec := range hashes {
		byOffset[rec.Offset] = rec.Hash
	}

	Lf := file.Len()
	var result []Extent
	filePos := int64(0)
	for filePos+cfg.MinExtentSize <= Lf {
		h, ok := byOffset[filePos]
		if !ok {
			var err error
			h, err = hashBlockAt(file, filePos, cfg.BlockSize)
			if err != nil {
				return nil, err
			}
		}

		matched := false
		for _, imageOffset := range Candidates(idx, h) {
			// A candidate only promises that its first block hash matches;
			// the image may not have M bytes left from imageOffset (e.g. a
			// hit near the image's tail). Equal requires the full M-byte
			// window to be in range, so such a candidate can never verify
			// and must be skipped rather than treated as an error.
			if imageOffset+cfg.MinExtentSize > image.Len() {
				continue
			}
			ok, err := verify.Equal(file, image, filePos, imageOffset, cfg.MinExtentSize, int(cfg.WriteChunkSize))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			length, err := Extend(file, image, filePos, imageOffset, cfg.MinExtentSize, cfg)
			if err != nil {
				return nil, err
			}
			result = append(result, Extent{
				FilePath:    filePath,
				FileOffset:  filePos,
				ImageOffset: imageOffset,
				Length:      length,
			})
			if sink != nil {
				sink.ExtentFound(filePath, filePos, imageOffset, length)
			}
			filePos += length
			matched = true
			break
		}
		if !matched {
			filePos += cfg.StepSize
		}
	}
	return result, nil
}
