package tfs

// Compact merges every segment (immutable + mutable) into a single new
// immutable segment, dropping tombstoned postings, and starts a fresh
// mutable segment. The merged segment is built fully in memory; the
// merge is not streamed. It runs under the index's
// write lock so concurrent readers either see the pre- or post-compaction
// segment list, never a partial one.
func (idx *Index) Compact() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	merged := newSegment(idx.nextSegID)
	idx.nextSegID++
	merged.immutable = true

	all := append(append([]*segment{}, idx.segments...), idx.mutable)
	for _, s := range all {
		for docID, length := range s.docLengths {
			if s.tombstones[docID] {
				continue
			}
			merged.docLengths[docID] = length
			merged.totalLen += uint64(length)
			merged.docCount++
		}
	}
	for _, s := range all {
		for term, postings := range s.postings {
			for _, p := range postings {
				if s.tombstones[p.docID] {
					continue
				}
				merged.postings[term] = append(merged.postings[term], p)
			}
		}
	}
	merged.sortPostings()

	idx.segments = []*segment{merged}
	idx.mutable = newSegment(idx.nextSegID)
	idx.nextSegID++

	for docID := range idx.docOwner {
		if _, ok := merged.docLengths[docID]; ok {
			idx.docOwner[docID] = merged
		}
	}
}

// MaybeCompact runs Compact if the tombstone ratio or segment count
// threshold is crossed, and reports whether it did.
func (idx *Index) MaybeCompact() bool {
	if !idx.shouldCompact() {
		return false
	}
	idx.Compact()
	return true
}
