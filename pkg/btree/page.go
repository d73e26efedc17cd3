package btree

import (
	"github.com/andalabs/andadb/pkg/codec"
)

// pageID addresses a fixed-size page within one field's tree; pages are
// persisted as object-store blobs at btree/page-<id>.bin (spec.md §6).
type pageID uint64

const noPage pageID = 0

// page is one B+-tree node. Leaf pages hold one bitmap per key; internal
// pages hold len(keys)+1 children. Leaves are chained via next for
// ordered prefix/range scans without walking back up to the parent.
type page struct {
	id       pageID
	leaf     bool
	keys     [][]byte
	children []pageID
	bitmaps  []*Bitmap64
	next     pageID // leaf only; noPage if last
}

// wirePage is the canonical-CBOR encoding of a page.
type wirePage struct {
	ID       uint64   `cbor:"id"`
	Leaf     bool     `cbor:"leaf"`
	Keys     [][]byte `cbor:"keys"`
	Children []uint64 `cbor:"children,omitempty"`
	Bitmaps  [][]byte `cbor:"bitmaps,omitempty"`
	Next     uint64   `cbor:"next"`
}

func (p *page) encode() ([]byte, error) {
	w := wirePage{ID: uint64(p.id), Leaf: p.leaf, Keys: p.keys, Next: uint64(p.next)}
	if p.leaf {
		w.Bitmaps = make([][]byte, len(p.bitmaps))
		for i, bm := range p.bitmaps {
			data, err := bm.MarshalBinary()
			if err != nil {
				return nil, err
			}
			w.Bitmaps[i] = data
		}
	} else {
		w.Children = make([]uint64, len(p.children))
		for i, c := range p.children {
			w.Children[i] = uint64(c)
		}
	}
	return codec.EncodeFramed(w)
}

func decodePage(data []byte) (*page, error) {
	var w wirePage
	if err := codec.DecodeFramed(data, &w); err != nil {
		return nil, err
	}
	p := &page{id: pageID(w.ID), leaf: w.Leaf, keys: w.Keys, next: pageID(w.Next)}
	if w.Leaf {
		p.bitmaps = make([]*Bitmap64, len(w.Bitmaps))
		for i, raw := range w.Bitmaps {
			bm := NewBitmap64()
			if err := bm.UnmarshalBinary(raw); err != nil {
				return nil, err
			}
			p.bitmaps[i] = bm
		}
	} else {
		p.children = make([]pageID, len(w.Children))
		for i, c := range w.Children {
			p.children[i] = pageID(c)
		}
	}
	return p, nil
}
