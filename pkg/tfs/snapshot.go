package tfs

import (
	"context"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/osa"
)

// wireSegment is the canonical-CBOR encoding of one segment.
type wireSegment struct {
	ID         uint64                   `cbor:"id"`
	Postings   map[string][]wirePosting `cbor:"postings"`
	DocLengths map[uint64]uint32        `cbor:"doc_lengths"`
	DocCount   int                      `cbor:"doc_count"`
	TotalLen   uint64                   `cbor:"total_len"`
	Tombstones []uint64                 `cbor:"tombstones"`
}

type wirePosting struct {
	DocID uint64 `cbor:"doc_id"`
	TF    uint32 `cbor:"tf"`
}

// wireIndex is the full persisted index state: tokenizer name (so a
// mismatched tokenizer on load is detectable), BM25 constants, and every
// segment.
type wireIndex struct {
	Tokenizer string        `cbor:"tokenizer"`
	K1        float32       `cbor:"k1"`
	B         float32       `cbor:"b"`
	NextSegID uint64        `cbor:"next_seg_id"`
	Segments  []wireSegment `cbor:"segments"`
	MutableAt int           `cbor:"mutable_at"` // index into Segments holding the mutable segment
}

func toWireSegment(s *segment) wireSegment {
	postings := make(map[string][]wirePosting, len(s.postings))
	for term, list := range s.postings {
		wp := make([]wirePosting, len(list))
		for i, p := range list {
			wp[i] = wirePosting{DocID: p.docID, TF: p.tf}
		}
		postings[term] = wp
	}
	tombstones := make([]uint64, 0, len(s.tombstones))
	for id := range s.tombstones {
		tombstones = append(tombstones, id)
	}
	return wireSegment{
		ID:         s.id,
		Postings:   postings,
		DocLengths: s.docLengths,
		DocCount:   s.docCount,
		TotalLen:   s.totalLen,
		Tombstones: tombstones,
	}
}

func fromWireSegment(w wireSegment, immutable bool) *segment {
	s := newSegment(w.ID)
	s.immutable = immutable
	s.docCount = w.DocCount
	s.totalLen = w.TotalLen
	s.docLengths = w.DocLengths
	if s.docLengths == nil {
		s.docLengths = make(map[uint64]uint32)
	}
	for term, list := range w.Postings {
		ps := make([]posting, len(list))
		for i, p := range list {
			ps[i] = posting{docID: p.DocID, tf: p.TF}
		}
		s.postings[term] = ps
	}
	for _, id := range w.Tombstones {
		s.tombstones[id] = true
	}
	return s
}

// Snapshot serializes the full index (every segment, tokenizer name,
// BM25 constants) to the framed canonical-CBOR layout (spec.md §6).
func (idx *Index) Snapshot() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	w := wireIndex{
		Tokenizer: idx.tokenizer.Name(),
		K1:        idx.k1,
		B:         idx.b,
		NextSegID: idx.nextSegID,
	}
	for _, s := range idx.segments {
		w.Segments = append(w.Segments, toWireSegment(s))
	}
	w.MutableAt = len(w.Segments)
	w.Segments = append(w.Segments, toWireSegment(idx.mutable))

	return codec.EncodeFramed(w)
}

// Load deserializes an index produced by Snapshot. tok must match the
// tokenizer the index was persisted with (a nil tok means the default
// tokenizer); a mismatch is a breaking change and Load rejects it with
// a SchemaMismatch error (spec.md §4.2).
func Load(data []byte, tok Tokenizer) (*Index, error) {
	var w wireIndex
	if err := codec.DecodeFramed(data, &w); err != nil {
		return nil, err
	}
	tokName := "default"
	if tok != nil {
		tokName = tok.Name()
	}
	if w.Tokenizer != "" && w.Tokenizer != tokName {
		return nil, errors.New(errors.SchemaMismatch,
			"tfs snapshot: persisted with tokenizer "+w.Tokenizer+", loaded with "+tokName)
	}

	idx := New(Config{Tokenizer: tok, K1: w.K1, B: w.B})
	idx.nextSegID = w.NextSegID
	idx.docOwner = make(map[uint64]*segment)

	for i, ws := range w.Segments {
		immutable := i != w.MutableAt
		s := fromWireSegment(ws, immutable)
		if immutable {
			idx.segments = append(idx.segments, s)
		} else {
			idx.mutable = s
		}
		for docID := range s.docLengths {
			if !s.tombstones[docID] {
				idx.docOwner[docID] = s
			}
		}
	}
	return idx, nil
}

// SaveSnapshot writes idx's snapshot to the object store at path
// (e.g. tfs/seg-<id>.bin's containing manifest entry per spec.md §6).
func SaveSnapshot(ctx context.Context, store osa.Store, path string, idx *Index) error {
	data, err := idx.Snapshot()
	if err != nil {
		return err
	}
	return store.Put(ctx, path, data)
}

// LoadSnapshot reads and parses a snapshot from the object store.
func LoadSnapshot(ctx context.Context, store osa.Store, path string, tok Tokenizer) (*Index, error) {
	data, err := store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return Load(data, tok)
}
