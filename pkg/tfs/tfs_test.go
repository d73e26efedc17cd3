package tfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"the quick brown fox jumps over the lazy dog",
	"a fast fox runs through the forest",
	"dogs and foxes rarely interact in the wild",
	"the lazy cat sleeps all day",
	"quick thinking saved the day for everyone",
}

func buildIndex(t *testing.T, docs []string) *Index {
	t.Helper()
	idx := New(Config{})
	for i, text := range docs {
		require.NoError(t, idx.Insert(uint64(i+1), text))
	}
	return idx
}

// TestBM25_DeterministicAcrossReinsertion reinserts the same corpus into
// two fresh indexes and checks the resulting scores for a query are
// identical, both within one run and across a repeat build (spec.md §4.2).
func TestBM25_DeterministicAcrossReinsertion(t *testing.T) {
	idxA := buildIndex(t, corpus)
	idxB := buildIndex(t, corpus)

	resultsA, err := idxA.Search("quick fox", 10)
	require.NoError(t, err)
	resultsB, err := idxB.Search("quick fox", 10)
	require.NoError(t, err)

	require.Equal(t, resultsA, resultsB)
	require.NotEmpty(t, resultsA)
}

func TestBM25_RepeatedSearchIsDeterministic(t *testing.T) {
	idx := buildIndex(t, corpus)

	first, err := idx.Search("lazy day", 10)
	require.NoError(t, err)
	second, err := idx.Search("lazy day", 10)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestBM25_SearchRanksExactTermMatchHighest(t *testing.T) {
	idx := buildIndex(t, corpus)

	results, err := idx.Search("fox", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.True(t, results[0].DocID == 1 || results[0].DocID == 2)
}

func TestBM25_InsertRejectsDuplicateDocID(t *testing.T) {
	idx := New(Config{})
	require.NoError(t, idx.Insert(1, "hello world"))
	err := idx.Insert(1, "hello again")
	require.Error(t, err)
}

func TestBM25_RemoveExcludesFromSearch(t *testing.T) {
	idx := buildIndex(t, corpus)
	require.NoError(t, idx.Remove(1))

	results, err := idx.Search("quick", 10)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, uint64(1), r.DocID)
	}
}

func TestBM25_RemoveUnknownDocFails(t *testing.T) {
	idx := New(Config{})
	err := idx.Remove(42)
	require.Error(t, err)
}

func TestBM25_EmptyQueryReturnsNoResults(t *testing.T) {
	idx := buildIndex(t, corpus)
	results, err := idx.Search("", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

// TestBM25_SnapshotLoadRoundTrip checks a serialized index searches
// identically after reloading (spec.md §4.2/§6 persistence contract).
func TestBM25_SnapshotLoadRoundTrip(t *testing.T) {
	idx := buildIndex(t, corpus)
	require.NoError(t, idx.Remove(3))

	data, err := idx.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	reloaded, err := Load(data, NewDefaultTokenizer(nil))
	require.NoError(t, err)
	require.Equal(t, idx.Stats(), reloaded.Stats())

	for _, q := range []string{"quick fox", "lazy day", "forest"} {
		want, err := idx.Search(q, 10)
		require.NoError(t, err)
		got, err := reloaded.Search(q, 10)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestBM25_LoadRejectsCorruptData(t *testing.T) {
	idx := buildIndex(t, corpus)
	data, err := idx.Snapshot()
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF

	_, err = Load(data, NewDefaultTokenizer(nil))
	require.Error(t, err)
}

func TestBM25_StatsTracksSegmentAndTombstoneCounts(t *testing.T) {
	idx := buildIndex(t, corpus)
	stats := idx.Stats()
	require.Equal(t, len(corpus), stats.LiveDocs)
	require.Equal(t, 0, stats.TombstonedDocs)

	require.NoError(t, idx.Remove(1))
	stats = idx.Stats()
	require.Equal(t, len(corpus)-1, stats.LiveDocs)
	require.Equal(t, 1, stats.TombstonedDocs)
}
