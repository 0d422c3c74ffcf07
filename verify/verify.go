// Package verify confirms candidate block-hash matches bit-for-bit,
// eliminating hash collisions and partial-block differences before a match
// is trusted.
package verify

import (
	"bytes"
	"fmt"

	"github.com/rpcpool/splicegen/source"
)

// DefaultBufferSize is used when no explicit buffer size is configured; it
// matches the write-chunk default documented for the reconstruction script.
const DefaultBufferSize = 16 << 20

// Equal reports whether a[aOff:aOff+length) and b[bOff:bOff+length) are
// byte-for-byte identical. Reads proceed in chunks of at most bufSize
// bytes so a single verification never has to materialize an entire large
// extent in memory at once.
//
// Equal returns an error only for I/O failures or out-of-range offsets; a
// verified mismatch is reported as (false, nil).
func Equal(a, b source.ByteSequence, aOff, bOff, length int64, bufSize int) (bool, error) {
	if length < 0 {
		return false, fmt.Errorf("verify: negative length %d", length)
	}
	if aOff < 0 || aOff+length > a.Len() {
		return false, fmt.Errorf("verify: range [%d,%d) out of bounds for sequence of length %d", aOff, aOff+length, a.Len())
	}
	if bOff < 0 || bOff+length > b.Len() {
		return false, fmt.Errorf("verify: range [%d,%d) out of bounds for sequence of length %d", bOff, bOff+length, b.Len())
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if int64(bufSize) > length {
		bufSize = int(length)
	}
	if bufSize == 0 {
		return true, nil
	}

	bufA := make([]byte, bufSize)
	bufB := make([]byte, bufSize)
	for remaining := length; remaining > 0; {
		chunk := int64(bufSize)
		if chunk > remaining {
			chunk = remaining
		}
		if err := a.ReadAt(bufA[:chunk], aOff); err != nil {
			return false, fmt.Errorf("verify: reading candidate side: %w", err)
		}
		if err := b.ReadAt(bufB[:chunk], bOff); err != nil {
			return false, fmt.Errorf("verify: reading image side: %w", err)
		}
		if !bytes.Equal(bufA[:chunk], bufB[:chunk]) {
			return false, nil
		}
		aOff += chunk
		bOff += chunk
		remaining -= chunk
	}
	return true, nil
}
