package plan

import (
	"testing"

	"github.com/rpcpool/splicegen/extent"
	"github.com/stretchr/testify/require"
)

func TestBuild_ExactOverlay(t *testing.T) {
	extents := []extent.Extent{
		{FilePath: "F", FileOffset: 0, ImageOffset: 64, Length: 128},
	}
	p, err := Build(256, extents)
	require.NoError(t, err)
	require.Equal(t, []Segment{
		{Kind: Literal, ImageOffset: 0, Length: 64},
		{Kind: Copy, ImageOffset: 64, Length: 128, FilePath: "F", FileOffset: 0},
		{Kind: Literal, ImageOffset: 192, Length: 64},
	}, p.Segments)
}

func TestBuild_NoExtents(t *testing.T) {
	p, err := Build(128, nil)
	require.NoError(t, err)
	require.Equal(t, []Segment{{Kind: Literal, ImageOffset: 0, Length: 128}}, p.Segments)
}

func TestBuild_OverlappingExtentsPreferLongestThenLowestOffset(t *testing.T) {
	extents := []extent.Extent{
		{FilePath: "F1", FileOffset: 0, ImageOffset: 0, Length: 128},
		{FilePath: "F2", FileOffset: 0, ImageOffset: 64, Length: 128},
	}
	p, err := Build(256, extents)
	require.NoError(t, err)
	require.Equal(t, []Segment{
		{Kind: Copy, ImageOffset: 0, Length: 128, FilePath: "F1", FileOffset: 0},
		{Kind: Literal, ImageOffset: 128, Length: 128},
	}, p.Segments)
}

func TestBuild_MultipleNonOverlappingExtentsWithGap(t *testing.T) {
	extents := []extent.Extent{
		{FilePath: "F", FileOffset: 0, ImageOffset: 0, Length: 64},
		{FilePath: "F", FileOffset: 128, ImageOffset: 192, Length: 64},
	}
	p, err := Build(256, extents)
	require.NoError(t, err)
	require.Equal(t, []Segment{
		{Kind: Copy, ImageOffset: 0, Length: 64, FilePath: "F", FileOffset: 0},
		{Kind: Literal, ImageOffset: 64, Length: 128},
		{Kind: Copy, ImageOffset: 192, Length: 64, FilePath: "F", FileOffset: 128},
	}, p.Segments)
}

func TestBuild_DeterministicTieBreakByPath(t *testing.T) {
	extents := []extent.Extent{
		{FilePath: "zzz", FileOffset: 0, ImageOffset: 0, Length: 64},
		{FilePath: "aaa", FileOffset: 0, ImageOffset: 0, Length: 64},
	}
	p, err := Build(64, extents)
	require.NoError(t, err)
	require.Len(t, p.Segments, 1)
	require.Equal(t, "aaa", p.Segments[0].FilePath)
}
