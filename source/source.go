// Package source wraps the two byte sequences the core operates over, the
// image and an extracted file, behind one explicit interface.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNotFound marks the input-missing error kind: the image or an
// extracted file could not be opened because it does not exist.
var ErrNotFound = errors.New("not found")

// ErrShortRead marks the short-read error kind: a read returned fewer
// bytes than requested.
var ErrShortRead = errors.New("short read")

// ErrSizeMismatch marks the size-mismatch error kind: a file's length at
// read time differs from the length recorded when it was listed.
var ErrSizeMismatch = errors.New("size mismatch")

// ErrIO marks the I/O-error error kind: an underlying read or stat
// failure that isn't a missing file or a short read.
var ErrIO = errors.New("i/o error")

// IsNotFound reports whether err indicates a missing image or extracted file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSizeMismatch reports whether err indicates a file changed size between
// listing and read.
func IsSizeMismatch(err error) bool {
	return errors.Is(err, ErrSizeMismatch)
}

// ByteSequence is a read-only, randomly-addressable byte sequence of known
// length. Both the image and every extracted file satisfy it.
type ByteSequence interface {
	// ReadAt reads exactly len(p) bytes starting at off, or returns an
	// error (including io.EOF / io.ErrUnexpectedEOF on a short read).
	ReadAt(p []byte, off int64) error
	// Len returns the sequence's total length in bytes.
	Len() int64
	io.Closer
}

// AccessPattern hints how a ByteSequence is about to be read, so the
// implementation can pass the right fadvise hint to the kernel.
type AccessPattern int

const (
	// Sequential indicates an upcoming linear scan (block hashing).
	Sequential AccessPattern = iota
	// Random indicates upcoming scattered reads (verification, extension).
	Random
)

// FileSequence is a ByteSequence backed by an *os.File opened for
// positional reads (pread), the same access pattern the sized compact
// index reader uses against its own backing file.
type FileSequence struct {
	path string
	file *os.File
	size int64
}

// Open opens path for reading and stats its size up front.
func Open(path string) (*FileSequence, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source: open %s: %w: %w", path, ErrNotFound, err)
		}
		return nil, fmt.Errorf("source: open %s: %w: %w", path, ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat %s: %w: %w", path, ErrIO, err)
	}
	return &FileSequence{path: path, file: f, size: info.Size()}, nil
}

// Advise hints the expected access pattern to the kernel. Advice is
// best-effort: failures are not fatal, callers that want to observe them
// should check the returned error themselves.
func (s *FileSequence) Advise(pattern AccessPattern) error {
	var advice int
	switch pattern {
	case Sequential:
		advice = unix.FADV_SEQUENTIAL
	case Random:
		advice = unix.FADV_RANDOM
	default:
		return fmt.Errorf("source: unknown access pattern %d", pattern)
	}
	return unix.Fadvise(int(s.file.Fd()), 0, 0, advice)
}

func (s *FileSequence) ReadAt(p []byte, off int64) error {
	if len(p) == 0 {
		return nil
	}
	n, err := s.file.ReadAt(p, off)
	if n < len(p) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("source: short read on %s at offset %d: got %d of %d bytes: %w: %w", s.path, off, n, len(p), ErrShortRead, err)
	}
	return nil
}

func (s *FileSequence) Len() int64 {
	return s.size
}

func (s *FileSequence) Path() string {
	return s.path
}

func (s *FileSequence) Close() error {
	return s.file.Close()
}

// Reader returns an io.Reader over the full sequence from the start, for
// the one sequential pass the Block Hasher makes.
func (s *FileSequence) Reader() io.Reader {
	return io.NewSectionReader(s.file, 0, s.size)
}

var _ ByteSequence = (*FileSequence)(nil)
