// Package tfs implements the BM25 full-text index from scratch
// (spec.md §4.2): segmented posting lists, a single mutable segment plus
// immutable compacted segments, tombstone-based deletion, and
// deterministic Okapi BM25 scoring. No Bleve black box — the segment/
// tombstone/compaction architecture is itself the deliverable this
// package exists to build. The default tokenizer is grounded on the
// teacher's internal/store/tokenizer.go identifier splitter; score
// fusion with vector results is grounded on the teacher's
// pkg/searcher/fusion.go Reciprocal Rank Fusion (see fusion.go).
package tfs

import (
	"math"
	"sort"
	"sync"

	"github.com/andalabs/andadb/internal/errors"
)

const (
	DefaultK1                       = 1.2
	DefaultB                        = 0.75
	DefaultCompactionTombstoneRatio = 0.25
	DefaultCompactionSegmentLimit   = 8
)

// Config configures a new Index.
type Config struct {
	Tokenizer                Tokenizer
	K1                       float32
	B                        float32
	CompactionTombstoneRatio float64
	CompactionSegmentLimit   int
}

// Result is one ranked hit from Search.
type Result struct {
	DocID uint64
	Score float32
}

// Index is the BM25 text index. Writers hold the mutable-segment lock
// only during insertion; readers snapshot the current segment list
// (cheap slice copy under a read lock) and then operate lock-free on
// the immutable segments (spec.md §4.2 concurrency).
type Index struct {
	tokenizer Tokenizer
	k1, b     float32

	tombstoneRatioLimit float64
	segmentLimit        int

	mu        sync.RWMutex
	segments  []*segment // immutable, oldest first
	mutable   *segment
	docOwner  map[uint64]*segment // which segment currently owns a live doc_id
	nextSegID uint64
}

// New creates an empty Index.
func New(cfg Config) *Index {
	tok := cfg.Tokenizer
	if tok == nil {
		tok = NewDefaultTokenizer(nil)
	}
	k1 := cfg.K1
	if k1 == 0 {
		k1 = DefaultK1
	}
	b := cfg.B
	if b == 0 {
		b = DefaultB
	}
	ratio := cfg.CompactionTombstoneRatio
	if ratio == 0 {
		ratio = DefaultCompactionTombstoneRatio
	}
	limit := cfg.CompactionSegmentLimit
	if limit == 0 {
		limit = DefaultCompactionSegmentLimit
	}

	idx := &Index{
		tokenizer:           tok,
		k1:                  k1,
		b:                   b,
		tombstoneRatioLimit: ratio,
		segmentLimit:        limit,
		docOwner:            make(map[uint64]*segment),
	}
	idx.mutable = newSegment(0)
	idx.nextSegID = 1
	return idx
}

// Insert tokenizes text and adds it under doc_id.
func (idx *Index) Insert(docID uint64, text string) error {
	tokens := idx.tokenizer.Tokenize(text)
	return idx.InsertTokens(docID, tokens)
}

// InsertTokens adds pre-tokenized content under doc_id, for callers that
// already split the text (spec.md §4.2 `insert(doc_id, text | tokens)`).
func (idx *Index) InsertTokens(docID uint64, tokens []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docOwner[docID]; exists {
		return errors.Duplicatef("doc_id %d is already live", docID)
	}

	idx.mutable.insert(docID, tokens)
	idx.docOwner[docID] = idx.mutable
	return nil
}

// Remove tombstones doc_id in whichever segment owns it.
func (idx *Index) Remove(docID uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seg, ok := idx.docOwner[docID]
	if !ok {
		return errors.NotFoundf("doc_id %d not found", docID)
	}
	seg.tombstones[docID] = true
	delete(idx.docOwner, docID)
	return nil
}

// snapshotSegments returns the current segment list (immutable +
// mutable) under a brief read lock; callers then search lock-free.
func (idx *Index) snapshotSegments() []*segment {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*segment, 0, len(idx.segments)+1)
	out = append(out, idx.segments...)
	out = append(out, idx.mutable)
	return out
}

// Search runs Okapi BM25 (spec.md §4.2) over every segment, merging
// per-term postings and accumulating scores per live doc_id.
func (idx *Index) Search(query string, topK int) ([]Result, error) {
	tokens := idx.tokenizer.Tokenize(query)
	return idx.SearchTokens(tokens, topK)
}

// SearchTokens is Search for pre-tokenized queries.
func (idx *Index) SearchTokens(tokens []string, topK int) ([]Result, error) {
	segs := idx.snapshotSegments()

	terms := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		terms[t] = struct{}{}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var n int
	var totalLen uint64
	for _, s := range segs {
		n += s.liveDocCount()
		totalLen += s.liveTotalLen()
	}
	if n == 0 {
		return nil, nil
	}
	avgDL := float32(totalLen) / float32(n)

	idf := make(map[string]float32, len(terms))
	for term := range terms {
		df := 0
		for _, s := range segs {
			df += s.df(term)
		}
		idf[term] = float32(math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5)))
	}

	scores := make(map[uint64]float32)
	for term := range terms {
		for _, s := range segs {
			for _, p := range s.postings[term] {
				if s.tombstones[p.docID] {
					continue
				}
				dl := float32(s.docLengths[p.docID])
				tf := float32(p.tf)
				denom := tf + idx.k1*(1-idx.b+idx.b*dl/avgDL)
				scores[p.docID] += idf[term] * (tf * (idx.k1 + 1)) / denom
			}
		}
	}

	out := make([]Result, 0, len(scores))
	for docID, score := range scores {
		out = append(out, Result{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Stats summarizes segment/tombstone accounting for compaction
// eligibility (mirrors pkg/hnsw.Stats for the daemon's compaction loop).
type Stats struct {
	SegmentCount   int
	LiveDocs       int
	TombstonedDocs int
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s := Stats{SegmentCount: len(idx.segments) + 1}
	for _, seg := range append(append([]*segment{}, idx.segments...), idx.mutable) {
		s.LiveDocs += seg.liveDocCount()
		s.TombstonedDocs += len(seg.tombstones)
	}
	return s
}

// shouldCompact reports whether aggregate tombstone ratio or segment
// count crosses the configured thresholds (spec.md §4.2 compaction).
func (idx *Index) shouldCompact() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.segments)+1 > idx.segmentLimit {
		return true
	}
	var totalDocs, totalTombstones int
	for _, s := range append(append([]*segment{}, idx.segments...), idx.mutable) {
		totalDocs += s.docCount
		totalTombstones += len(s.tombstones)
	}
	if totalDocs == 0 {
		return false
	}
	return float64(totalTombstones)/float64(totalDocs) > idx.tombstoneRatioLimit
}
