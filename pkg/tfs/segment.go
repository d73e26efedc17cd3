package tfs

import "sort"

// posting is one (doc_id, term_frequency) entry, kept sorted by doc_id
// within a term's posting list (spec.md §4.2 Posting invariant).
type posting struct {
	docID uint64
	tf    uint32
}

// segment is one partition of the text index: either the single mutable
// in-memory segment or one of the immutable segments produced by
// compaction. Posting lists are plain slices in memory and plain
// canonical-CBOR lists on disk (snapshot.go); they are not delta-varint
// encoded. sortPostings orders them by doc_id when compaction builds a
// segment; the mutable segment keeps insertion order.
type segment struct {
	id         uint64
	postings   map[string][]posting
	docLengths map[uint64]uint32
	docCount   int
	totalLen   uint64
	tombstones map[uint64]bool
	immutable  bool
}

func newSegment(id uint64) *segment {
	return &segment{
		id:         id,
		postings:   make(map[string][]posting),
		docLengths: make(map[uint64]uint32),
		tombstones: make(map[uint64]bool),
	}
}

// insert adds a document's tokens to the segment. Accepted even with
// zero tokens (spec.md §4.2 EmptyDocument), contributing no postings.
func (s *segment) insert(docID uint64, tokens []string) {
	s.docLengths[docID] = uint32(len(tokens))
	s.totalLen += uint64(len(tokens))
	s.docCount++

	counts := make(map[string]uint32, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	for term, tf := range counts {
		s.postings[term] = append(s.postings[term], posting{docID: docID, tf: tf})
	}
}

func (s *segment) sortPostings() {
	for term := range s.postings {
		list := s.postings[term]
		sort.Slice(list, func(i, j int) bool { return list[i].docID < list[j].docID })
		s.postings[term] = list
	}
}

// liveDocCount returns docCount minus tombstoned entries.
func (s *segment) liveDocCount() int {
	return s.docCount - len(s.tombstones)
}

// liveTotalLen returns totalLen minus the length contribution of
// tombstoned documents.
func (s *segment) liveTotalLen() uint64 {
	total := s.totalLen
	for docID := range s.tombstones {
		total -= uint64(s.docLengths[docID])
	}
	return total
}

// df returns the document frequency of term among live documents.
func (s *segment) df(term string) int {
	count := 0
	for _, p := range s.postings[term] {
		if !s.tombstones[p.docID] {
			count++
		}
	}
	return count
}

// tombstoneRatio returns the fraction of documents in the segment that
// are tombstoned, used by the compactor (spec.md §4.2 threshold).
func (s *segment) tombstoneRatio() float64 {
	if s.docCount == 0 {
		return 0
	}
	return float64(len(s.tombstones)) / float64(s.docCount)
}
