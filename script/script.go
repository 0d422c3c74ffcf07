// Package script renders a Plan into a self-contained POSIX shell script
// that reconstructs the image on a target machine from embedded literals
// and extracted files already present there.
package script

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rpcpool/splicegen/metadata"
	"github.com/rpcpool/splicegen/plan"
	"github.com/rpcpool/splicegen/source"
)

// literalChunkSize bounds how many image bytes go into one base64 here-doc
// block, so a single huge literal run doesn't force the whole thing into
// memory at once.
const literalChunkSize = 4 << 20

// writer buffers script output and, on Close, fsyncs and leaves the
// underlying file in place; WriteTo is responsible for the temp-then-rename
// dance so a failed run never leaves a partial script at the final path.
type writer struct {
	file *os.File
	buf  *bufio.Writer
}

func newWriter(f *os.File) *writer {
	return &writer{file: f, buf: bufio.NewWriterSize(f, 1<<20)}
}

func (w *writer) WriteString(s string) error {
	_, err := w.buf.WriteString(s)
	return err
}

func (w *writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// WriteTo renders p as a shell script and atomically installs it at path:
// the script is built in path+".tmp" and renamed into place only once
// writing succeeds in full.
func WriteTo(path string, image source.ByteSequence, p plan.Plan, metas map[string]metadata.Record) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("script: create %s: %w", tmpPath, err)
	}
	w := newWriter(f)

	if err := render(w, image, p, metas); err != nil {
		w.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("script: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("script: rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

func render(w *writer, image source.ByteSequence, p plan.Plan, metas map[string]metadata.Record) error {
	if err := writeHeader(w, p.ImageSize); err != nil {
		return err
	}

	copyPaths := usedFilePaths(p)
	for _, path := range copyPaths {
		rec, ok := metas[path]
		if !ok {
			continue
		}
		if err := writeChecksumGuard(w, rec); err != nil {
			return err
		}
	}

	for i, seg := range p.Segments {
		switch seg.Kind {
		case plan.Literal:
			if err := writeLiteral(w, image, seg, i); err != nil {
				return err
			}
		case plan.Copy:
			if err := writeCopy(w, seg); err != nil {
				return err
			}
		}
	}

	return writeFooter(w)
}

func usedFilePaths(p plan.Plan) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, seg := range p.Segments {
		if seg.Kind == plan.Copy && !seen[seg.FilePath] {
			seen[seg.FilePath] = true
			paths = append(paths, seg.FilePath)
		}
	}
	return paths
}

func writeHeader(w *writer, imageSize int64) error {
	return w.WriteString(fmt.Sprintf(`#!/bin/sh
set -eu

OUT=${1:-image.bin}
EXTRACTED_DIR=${EXTRACTED_DIR:-.}
TMP="$OUT.partial"

truncate -s %d "$TMP"

`, imageSize))
}

func writeFooter(w *writer) error {
	return w.WriteString(`mv "$TMP" "$OUT"
`)
}

// writeChecksumGuard emits a pre-flight check that an extracted file used by
// a Copy segment still matches the digest recorded when it was listed,
// catching the size-mismatch/content-drift case before any dd reads from it.
func writeChecksumGuard(w *writer, rec metadata.Record) error {
	rel := shellQuote(rec.Path)
	if rec.SHA256 != "" {
		sum := rec.SHA256.Encoded()
		return w.WriteString(fmt.Sprintf("echo '%s  '\"$EXTRACTED_DIR\"/%s | sha256sum -c - >/dev/null\n", sum, rel))
	}
	if rec.MD5 != "" {
		sum := rec.MD5.Encoded()
		return w.WriteString(fmt.Sprintf("echo '%s  '\"$EXTRACTED_DIR\"/%s | md5sum -c - >/dev/null\n", sum, rel))
	}
	return nil
}

// writeLiteral embeds the image bytes [seg.ImageOffset, seg.ImageOffset+seg.Length)
// as one or more base64 here-doc blocks, decoded and seeked into place in the
// partial output file.
func writeLiteral(w *writer, image source.ByteSequence, seg plan.Segment, index int) error {
	remaining := seg.Length
	offset := seg.ImageOffset
	part := 0
	for remaining > 0 {
		chunk := int64(literalChunkSize)
		if chunk > remaining {
			chunk = remaining
		}
		buf := make([]byte, chunk)
		if err := image.ReadAt(buf, offset); err != nil {
			return fmt.Errorf("script: reading literal at image offset %d: %w", offset, err)
		}
		marker := fmt.Sprintf("SPLICEGEN_LIT_%d_%d", index, part)
		if err := w.WriteString(fmt.Sprintf("base64 -d <<'%s' | dd of=\"$TMP\" bs=1 seek=%d conv=notrunc status=none\n", marker, offset)); err != nil {
			return err
		}
		if err := w.WriteString(base64.StdEncoding.EncodeToString(buf)); err != nil {
			return err
		}
		if err := w.WriteString(fmt.Sprintf("\n%s\n", marker)); err != nil {
			return err
		}
		offset += chunk
		remaining -= chunk
		part++
	}
	return nil
}

// writeCopy emits a dd invocation reading length bytes from file_offset in
// the extracted file and seeking them into image_offset of the partial
// output. A tail/head fallback is noted for targets whose dd lacks bs=1
// byte-addressable skip/seek support.
func writeCopy(w *writer, seg plan.Segment) error {
	rel := shellQuote(seg.FilePath)
	// Fallback if dd bs=1 is too slow or unsupported:
	//   tail -c +$((file_offset+1)) "$EXTRACTED_DIR"/path | head -c length | dd of="$TMP" bs=1 seek=image_offset conv=notrunc status=none
	return w.WriteString(fmt.Sprintf(
		"dd if=\"$EXTRACTED_DIR\"/%s bs=1 skip=%d count=%d 2>/dev/null | dd of=\"$TMP\" bs=1 seek=%d conv=notrunc status=none\n",
		rel, seg.FileOffset, seg.Length, seg.ImageOffset,
	))
}

func shellQuote(s string) string {
	return "'" + filepath.ToSlash(s) + "'"
}

var _ io.StringWriter = (*writer)(nil)
