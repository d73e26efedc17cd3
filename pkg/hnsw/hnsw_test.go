package hnsw

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		vecs[i] = v
	}
	return vecs
}

// bruteForceTopK returns the true k nearest neighbors of query under dist,
// used as the ground truth recall is measured against.
func bruteForceTopK(vecs [][]float32, query []float32, k int, dist func(a, b []float32) float32) []uint64 {
	type scored struct {
		id uint64
		d  float32
	}
	all := make([]scored, len(vecs))
	for i, v := range vecs {
		all[i] = scored{id: uint64(i), d: dist(query, v)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].d < all[j].d })
	if k > len(all) {
		k = len(all)
	}
	out := make([]uint64, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].id
	}
	return out
}

func recallAt(got []Result, want []uint64) float64 {
	wantSet := make(map[uint64]bool, len(want))
	for _, id := range want {
		wantSet[id] = true
	}
	hits := 0
	for _, r := range got {
		if wantSet[r.DocID] {
			hits++
		}
	}
	if len(want) == 0 {
		return 1
	}
	return float64(hits) / float64(len(want))
}

// TestHNSW_RecallAgainstBruteForce checks that searching the index returns
// the same neighbors a brute-force linear scan would, at least 90% of the
// time on average across a batch of queries (spec.md §8.2).
func TestHNSW_RecallAgainstBruteForce(t *testing.T) {
	const (
		dim     = 16
		n       = 500
		k       = 10
		queries = 30
	)
	vecs := randomVectors(n, dim, 1)

	idx := New(Config{Dim: dim, Metric: MetricL2, Seed: 42})
	for i, v := range vecs {
		require.NoError(t, idx.Insert(uint64(i), v))
	}

	dist := distanceFunc(MetricL2)
	queryVecs := randomVectors(queries, dim, 2)

	var totalRecall float64
	for _, q := range queryVecs {
		got, err := idx.Search(q, k, 64)
		require.NoError(t, err)
		want := bruteForceTopK(vecs, q, k, dist)
		totalRecall += recallAt(got, want)
	}
	avgRecall := totalRecall / float64(queries)
	require.GreaterOrEqualf(t, avgRecall, 0.9, "average recall %.3f below 0.9 threshold", avgRecall)
}

func TestHNSW_InsertRejectsDimensionMismatch(t *testing.T) {
	idx := New(Config{Dim: 4})
	err := idx.Insert(1, []float32{1, 2, 3})
	require.Error(t, err)
}

func TestHNSW_InsertRejectsDuplicateLiveID(t *testing.T) {
	idx := New(Config{Dim: 2})
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	err := idx.Insert(1, []float32{1, 1})
	require.Error(t, err)
}

func TestHNSW_RemoveTombstonesAndExcludesFromSearch(t *testing.T) {
	idx := New(Config{Dim: 2, Seed: 7})
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	require.NoError(t, idx.Insert(2, []float32{1, 1}))
	require.NoError(t, idx.Insert(3, []float32{2, 2}))
	require.Equal(t, 3, idx.Len())

	require.NoError(t, idx.Remove(2))
	require.Equal(t, 2, idx.Len())

	results, err := idx.Search([]float32{1, 1}, 3, 16)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, uint64(2), r.DocID)
	}
}

func TestHNSW_RemoveUnknownIDFails(t *testing.T) {
	idx := New(Config{Dim: 2})
	err := idx.Remove(99)
	require.Error(t, err)
}

func TestHNSW_CompactReclaimsTombstones(t *testing.T) {
	idx := New(Config{Dim: 2, Seed: 3})
	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, idx.Insert(i, []float32{float32(i), float32(i)}))
	}
	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, idx.Remove(i))
	}
	require.Equal(t, 10, idx.Stats().TombstoneNodes)

	require.NoError(t, idx.Compact())
	require.Equal(t, 10, idx.Len())
	require.Equal(t, 0, idx.Stats().TombstoneNodes)

	results, err := idx.Search([]float32{15, 15}, 5, 32)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.Greater(t, r.DocID, uint64(10))
	}
}

// TestHNSW_SnapshotLoadRoundTrip checks that serializing and reloading a
// graph preserves its search behavior exactly (spec.md §4.1 persistence).
func TestHNSW_SnapshotLoadRoundTrip(t *testing.T) {
	const dim = 8
	vecs := randomVectors(60, dim, 11)

	idx := New(Config{Dim: dim, Metric: MetricCosine, Seed: 5})
	for i, v := range vecs {
		require.NoError(t, idx.Insert(uint64(i), v))
	}
	require.NoError(t, idx.Remove(3))

	data := idx.Snapshot()
	require.NotEmpty(t, data)

	reloaded, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, idx.Dim(), reloaded.Dim())
	require.Equal(t, idx.Metric(), reloaded.Metric())
	require.Equal(t, idx.Len(), reloaded.Len())
	require.Equal(t, idx.Stats(), reloaded.Stats())

	queries := randomVectors(10, dim, 12)
	for _, q := range queries {
		want, err := idx.Search(q, 5, 32)
		require.NoError(t, err)
		got, err := reloaded.Search(q, 5, 32)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestHNSW_SnapshotLoadRoundTripEmptyIndex(t *testing.T) {
	idx := New(Config{Dim: 4})
	data := idx.Snapshot()
	reloaded, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Len())

	results, err := reloaded.Search([]float32{0, 0, 0, 0}, 5, 16)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestHNSW_LoadRejectsCorruptData(t *testing.T) {
	idx := New(Config{Dim: 4})
	require.NoError(t, idx.Insert(1, []float32{1, 2, 3, 4}))
	data := idx.Snapshot()
	data[len(data)-1] ^= 0xFF // flip a byte in the CRC footer

	_, err := Load(data)
	require.Error(t, err)
}

func TestHNSW_TailLogReplay(t *testing.T) {
	idx := New(Config{Dim: 3, Seed: 9})
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))
	require.NoError(t, idx.Insert(2, []float32{0, 1, 0}))

	snapshot := idx.Snapshot()

	var tail TailLog
	tail.Append(TailOp{Kind: TailOpInsert, DocID: 3, Vector: []float32{0, 0, 1}})
	tail.Append(TailOp{Kind: TailOpDelete, DocID: 1})
	require.Equal(t, 2, tail.Len())

	encoded, err := tail.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTailLog(encoded)
	require.NoError(t, err)

	restored, err := Load(snapshot)
	require.NoError(t, err)
	require.NoError(t, decoded.Replay(restored))

	require.Equal(t, 2, restored.Len())
	results, err := restored.Search([]float32{0, 0, 1}, 3, 16)
	require.NoError(t, err)
	found := false
	for _, r := range results {
		require.NotEqual(t, uint64(1), r.DocID)
		if r.DocID == 3 {
			found = true
		}
	}
	require.True(t, found)
}
