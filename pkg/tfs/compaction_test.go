package tfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompact_DropsTombstonesAndMergesSegments(t *testing.T) {
	idx := buildIndex(t, corpus)
	require.NoError(t, idx.Remove(1))
	require.NoError(t, idx.Remove(2))

	before, err := idx.Search("quick fox", 10)
	require.NoError(t, err)

	idx.Compact()

	stats := idx.Stats()
	require.Equal(t, 2, stats.SegmentCount) // one merged immutable + fresh mutable
	require.Equal(t, 0, stats.TombstonedDocs)
	require.Equal(t, len(corpus)-2, stats.LiveDocs)

	after, err := idx.Search("quick fox", 10)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMaybeCompact_RespectsSegmentLimit(t *testing.T) {
	idx := New(Config{CompactionSegmentLimit: 2})
	require.NoError(t, idx.Insert(1, "alpha"))
	require.False(t, idx.MaybeCompact())

	idx.Compact() // segments: [merged, mutable] -> 2 total
	require.NoError(t, idx.Insert(2, "beta"))
	idx.Compact() // segments: [merged2, mutable] -> still 2 total

	require.False(t, idx.shouldCompact())
}

func TestFuseRRF_CombinesAndRanksByScore(t *testing.T) {
	text := []uint64{1, 2, 3}
	vector := []uint64{3, 1, 4}

	ranked := FuseRRF(text, vector, DefaultFusionConfig())
	require.NotEmpty(t, ranked)
	// doc 1 appears near the top of both lists, so it should outrank doc 4
	// which only appears in the vector list.
	rank := make(map[uint64]int, len(ranked))
	for i, r := range ranked {
		rank[r.DocID] = i
	}
	require.Less(t, rank[1], rank[4])
}

func TestFuseRRF_EmptyInputsReturnEmpty(t *testing.T) {
	ranked := FuseRRF(nil, nil, DefaultFusionConfig())
	require.Empty(t, ranked)
}
