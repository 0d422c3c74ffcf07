// Package blockhash reads a byte sequence in fixed-size, block-aligned
// windows and produces a (offset, hash) record for each full block.
//
// Hashing uses the 128-bit MurmurHash3 x64 variant, keyed with seed 0. The
// digest is wide because blocks are large and collisions must be
// vanishingly rare.
package blockhash

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spaolacci/murmur3"
)

// Hash is a 128-bit MurmurHash3 x64 digest.
type Hash struct {
	Lo uint64
	Hi uint64
}

// Of hashes a single block's bytes with seed 0.
func Of(block []byte) Hash {
	lo, hi := murmur3.Sum128WithSeed(block, 0)
	return Hash{Lo: lo, Hi: hi}
}

// Record is one (offset, hash) pair for a full block at Offset.
type Record struct {
	Offset int64
	Hash   Hash
}

// readerBufferSize is sized generously above one block so bufio rarely
// needs more than one underlying read per block.
const readerBufferSize = 1 << 20

// Stream reads r sequentially in blocks of blockSize bytes and invokes fn
// once per full block, in ascending offset order. A trailing partial block
// (shorter than blockSize) is not hashed, but its bytes are still counted
// toward the returned length.
//
// Stream returns the total number of bytes read from r. Any error from fn
// aborts the scan and is returned as-is; any I/O error reading r is
// wrapped and returned.
func Stream(r io.Reader, blockSize int, fn func(Record) error) (length int64, err error) {
	if blockSize <= 0 {
		return 0, fmt.Errorf("blockhash: block size must be positive, got %d", blockSize)
	}
	br := bufio.NewReaderSize(r, readerBufferSize)
	buf := make([]byte, blockSize)
	var offset int64
	for {
		n, readErr := io.ReadFull(br, buf)
		if n > 0 {
			offset += int64(n)
		}
		if n == blockSize {
			if cbErr := fn(Record{Offset: offset - int64(blockSize), Hash: Of(buf)}); cbErr != nil {
				return offset, cbErr
			}
		}
		switch readErr {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return offset, nil
		default:
			return offset, fmt.Errorf("blockhash: read at offset %d: %w", offset, readErr)
		}
	}
}

// Collect runs Stream and returns every record in ascending offset order
// along with the total sequence length. Suitable for per-file hash vectors,
// where the number of blocks is small enough to keep in memory (see the
// design notes on lazy-vs-materialized hash sequences).
func Collect(r io.Reader, blockSize int) ([]Record, int64, error) {
	var records []Record
	length, err := Stream(r, blockSize, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, length, err
	}
	return records, length, nil
}
