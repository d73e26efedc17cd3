package tfs

import "sort"

// FusionConfig configures Reciprocal Rank Fusion, grounded on the
// teacher's pkg/searcher/fusion.go FusionConfig (generalized here from
// string chunk IDs to doc_id, consumed by pkg/collection.query to merge
// BM25 and HNSW result sets per spec.md §4.4's "normalized-rank fusion").
type FusionConfig struct {
	RRFConstant  int
	TextWeight   float64
	VectorWeight float64
}

// DefaultFusionConfig matches the teacher's defaults.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{RRFConstant: 60, TextWeight: 1, VectorWeight: 1}
}

// RankedDoc is one doc_id with its rank-fusion score.
type RankedDoc struct {
	DocID uint64
	Score float64
}

// FuseRRF combines a BM25-ranked list and a vector-ranked list (both
// already sorted best-first) via Reciprocal Rank Fusion:
// score(d) = Σ weight_i / (k + rank_i), rank 1-indexed.
func FuseRRF(textResults []uint64, vectorResults []uint64, cfg FusionConfig) []RankedDoc {
	scores := make(map[uint64]float64)

	for rank, docID := range textResults {
		scores[docID] += cfg.TextWeight / float64(cfg.RRFConstant+rank+1)
	}
	for rank, docID := range vectorResults {
		scores[docID] += cfg.VectorWeight / float64(cfg.RRFConstant+rank+1)
	}

	out := make([]RankedDoc, 0, len(scores))
	for docID, score := range scores {
		out = append(out, RankedDoc{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}
