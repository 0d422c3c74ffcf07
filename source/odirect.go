package source

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

// DirectFileSequence is a ByteSequence backed by a file opened with
// O_DIRECT, bypassing the page cache. The reconstruct command's --direct-io
// flag uses it to read extracted files during the final copy pass; it has
// no Reader, so the hashing pass over the image does not use it. Every
// access pays for handling O_DIRECT's alignment requirements.
type DirectFileSequence struct {
	path      string
	file      *os.File
	size      int64
	blockSize int64
}

// OpenDirect opens path with O_DIRECT. It falls back to an error rather than
// silently reverting to buffered I/O, so callers who asked for O_DIRECT
// learn immediately if the filesystem doesn't support it.
func OpenDirect(path string) (*DirectFileSequence, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_DIRECT, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source: open %s with O_DIRECT: %w: %w", path, ErrNotFound, err)
		}
		return nil, fmt.Errorf("source: open %s with O_DIRECT: %w: %w", path, ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat %s: %w: %w", path, ErrIO, err)
	}
	var stat syscall.Stat_t
	if err := syscall.Fstat(int(f.Fd()), &stat); err != nil {
		f.Close()
		return nil, fmt.Errorf("source: fstat %s: %w: %w", path, ErrIO, err)
	}
	return &DirectFileSequence{path: path, file: f, size: info.Size(), blockSize: int64(stat.Blksize)}, nil
}

func (d *DirectFileSequence) Len() int64 {
	return d.size
}

func (d *DirectFileSequence) Close() error {
	return d.file.Close()
}

// ReadAt reads len(p) bytes starting at off, transparently handling
// O_DIRECT's requirement that reads be filesystem-block aligned by reading
// a slightly larger aligned window and copying out the requested slice.
func (d *DirectFileSequence) ReadAt(p []byte, off int64) error {
	if len(p) == 0 {
		return nil
	}
	b := d.blockSize
	alignedOffset := (off / b) * b
	end := off + int64(len(p))
	alignedEnd := ((end + b - 1) / b) * b

	aligned := make([]byte, alignedEnd-alignedOffset)
	n, err := d.file.ReadAt(aligned, alignedOffset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("source: O_DIRECT read on %s at offset %d: %w: %w", d.path, alignedOffset, ErrIO, err)
	}

	start := off - alignedOffset
	available := int64(n) - start
	if available < int64(len(p)) {
		return fmt.Errorf("source: short O_DIRECT read on %s at offset %d: got %d of %d bytes: %w: %w", d.path, off, available, len(p), ErrShortRead, io.ErrUnexpectedEOF)
	}
	copy(p, aligned[start:start+int64(len(p))])
	return nil
}

var _ ByteSequence = (*DirectFileSequence)(nil)
