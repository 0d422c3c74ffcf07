// Package plan merges per-file extent lists with gap-fill literal ranges
// into a single totally ordered sequence of segments covering the image
// exactly once.
package plan

import (
	"fmt"
	"sort"

	"github.com/rpcpool/splicegen/continuity"
	"github.com/rpcpool/splicegen/extent"
)

// Kind distinguishes the two segment shapes a plan can contain.
type Kind int

const (
	// Literal embeds image bytes directly into the output script.
	Literal Kind = iota
	// Copy reads bytes from an extracted file present on the target.
	Copy
)

// Segment is one entry of a Plan: either a Literal range of the image or a
// Copy from an extracted file.
type Segment struct {
	Kind        Kind
	ImageOffset int64
	Length      int64
	FilePath    string // set only for Copy
	FileOffset  int64  // set only for Copy
}

// Plan is the ordered list of segments whose ImageOffset values partition
// [0, N) with no gaps and no overlaps.
type Plan struct {
	ImageSize int64
	Segments  []Segment
}

// Build resolves overlaps among all candidate extents in image-offset space
// and fills every remaining gap with a Literal, producing a Plan covering
// [0, imageSize).
//
// Overlap resolution is greedy: extents are considered longest-first, tied
// by ascending image offset, then file path, then file offset, and an extent is accepted
// only if its image-offset range does not intersect any extent already
// accepted. This maximises the bytes served by Copy segments and keeps
// selection deterministic regardless of discovery order.
func Build(imageSize int64, extents []extent.Extent) (Plan, error) {
	if imageSize < 0 {
		return Plan{}, fmt.Errorf("plan: negative image size %d", imageSize)
	}

	pool := append([]extent.Extent(nil), extents...)
	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		if a.ImageOffset != b.ImageOffset {
			return a.ImageOffset < b.ImageOffset
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.FileOffset < b.FileOffset
	})

	accepted := make([]extent.Extent, 0, len(pool))
	for _, e := range pool {
		if e.Length <= 0 {
			continue
		}
		if !overlapsAny(accepted, e) {
			accepted = append(accepted, e)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].ImageOffset < accepted[j].ImageOffset
	})

	var segments []Segment
	cursor := int64(0)
	for _, e := range accepted {
		if e.ImageOffset < cursor {
			return Plan{}, fmt.Errorf("plan: accepted extent at image offset %d overlaps cursor %d", e.ImageOffset, cursor)
		}
		if gap := e.ImageOffset - cursor; gap > 0 {
			segments = append(segments, Segment{Kind: Literal, ImageOffset: cursor, Length: gap})
		}
		segments = append(segments, Segment{
			Kind:        Copy,
			ImageOffset: e.ImageOffset,
			Length:      e.Length,
			FilePath:    e.FilePath,
			FileOffset:  e.FileOffset,
		})
		cursor = e.ImageOffset + e.Length
	}
	err := continuity.New().Thenf("image coverage bound", func() error {
		if cursor > imageSize {
			return fmt.Errorf("plan: accepted extents overrun image size (cursor %d > %d)", cursor, imageSize)
		}
		return nil
	}).Err()
	if err != nil {
		return Plan{}, err
	}
	if cursor < imageSize {
		segments = append(segments, Segment{Kind: Literal, ImageOffset: cursor, Length: imageSize - cursor})
	}

	return Plan{ImageSize: imageSize, Segments: segments}, nil
}

// overlapsAny reports whether e's image-offset range intersects any extent
// already in accepted, which is not assumed sorted (accepted grows in
// longest-first acceptance order, not offset order, until Build re-sorts it
// for emission).
func overlapsAny(accepted []extent.Extent, e extent.Extent) bool {
	start, end := e.ImageOffset, e.ImageOffset+e.Length
	for _, a := range accepted {
		aStart, aEnd := a.ImageOffset, a.ImageOffset+a.Length
		if start < aEnd && aStart < end {
			return true
		}
	}
	return false
}
