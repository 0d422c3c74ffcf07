package plan

import (
	"fmt"
	"os"

	"github.com/rpcpool/splicegen/source"
)

// Execute writes the bytes described by the plan directly to outPath,
// reading Literal ranges from image and Copy ranges from the extracted file
// each segment names (opened through open). It exists so the core's output
// can be exercised end-to-end without going through the generated shell
// script, which is useful for tests and for verifying idempotence (a
// generated plan, executed twice, must reproduce the image both times).
func (p Plan) Execute(outPath string, image source.ByteSequence, open func(path string) (source.ByteSequence, error)) error {
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("plan: create %s: %w", outPath, err)
	}
	defer out.Close()

	opened := make(map[string]source.ByteSequence)
	defer func() {
		for _, s := range opened {
			s.Close()
		}
	}()

	bufSize := 4 << 20
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Literal:
			if err := copyRange(out, seg.ImageOffset, image, seg.ImageOffset, seg.Length, bufSize); err != nil {
				return err
			}
		case Copy:
			f, ok := opened[seg.FilePath]
			if !ok {
				f, err = open(seg.FilePath)
				if err != nil {
					return fmt.Errorf("plan: opening %s: %w", seg.FilePath, err)
				}
				opened[seg.FilePath] = f
			}
			if err := copyRange(out, seg.ImageOffset, f, seg.FileOffset, seg.Length, bufSize); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyRange(out *os.File, outOffset int64, src source.ByteSequence, srcOffset, length int64, bufSize int) error {
	buf := make([]byte, bufSize)
	for length > 0 {
		chunk := int64(bufSize)
		if chunk > length {
			chunk = length
		}
		if err := src.ReadAt(buf[:chunk], srcOffset); err != nil {
			return fmt.Errorf("plan: reading %d bytes at %d: %w", chunk, srcOffset, err)
		}
		if _, err := out.WriteAt(buf[:chunk], outOffset); err != nil {
			return fmt.Errorf("plan: writing %d bytes at %d: %w", chunk, outOffset, err)
		}
		srcOffset += chunk
		outOffset += chunk
		length -= chunk
	}
	return nil
}
