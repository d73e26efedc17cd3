package btree

import (
	"context"
	"sync"

	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/osa"
)

// Index is the B-Tree Attribute Index (BTI) for a collection: one Tree
// per indexed field name, lazily opened on first use (spec.md §4.3).
type Index struct {
	mu      sync.RWMutex
	store   osa.Store
	maxKeys int
	trees   map[string]*Tree
}

// NewIndex creates an empty BTI over store.
func NewIndex(store osa.Store, maxKeys int) *Index {
	return &Index{store: store, maxKeys: maxKeys, trees: make(map[string]*Tree)}
}

// OpenIndex loads a BTI whose field trees are named in fields (typically
// the schema's list of btree-indexed field names from the manifest).
func OpenIndex(ctx context.Context, store osa.Store, maxKeys int, fields []string) (*Index, error) {
	idx := NewIndex(store, maxKeys)
	for _, f := range fields {
		t, err := LoadTree(ctx, f, store, maxKeys)
		if err != nil {
			return nil, err
		}
		idx.trees[f] = t
	}
	return idx, nil
}

func (idx *Index) treeFor(field string) *Tree {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	t, ok := idx.trees[field]
	if !ok {
		t = NewTree(field, idx.store, idx.maxKeys)
		idx.trees[field] = t
	}
	return t
}

// Fields returns every field name with an open tree.
func (idx *Index) Fields() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.trees))
	for f := range idx.trees {
		out = append(out, f)
	}
	return out
}

// Insert indexes docID under field's encoded value.
func (idx *Index) Insert(ctx context.Context, field string, value codec.Value, docID uint64) error {
	key, err := EncodeKey(value)
	if err != nil {
		return err
	}
	return idx.treeFor(field).Insert(ctx, key, docID)
}

// Remove removes docID from field's encoded value.
func (idx *Index) Remove(ctx context.Context, field string, value codec.Value, docID uint64) error {
	key, err := EncodeKey(value)
	if err != nil {
		return err
	}
	return idx.treeFor(field).Remove(ctx, key, docID)
}

// Equality returns doc_ids whose field equals value.
func (idx *Index) Equality(ctx context.Context, field string, value codec.Value) (*Bitmap64, error) {
	key, err := EncodeKey(value)
	if err != nil {
		return nil, err
	}
	return idx.treeFor(field).Equality(ctx, key)
}

// Prefix returns doc_ids whose field's encoded value starts with the
// encoding of value (string/bytes fields only).
func (idx *Index) Prefix(ctx context.Context, field string, value codec.Value) (*Bitmap64, error) {
	key, err := EncodeKey(value)
	if err != nil {
		return nil, err
	}
	return idx.treeFor(field).Prefix(ctx, key)
}

// Range returns doc_ids whose field falls within [lo,hi].
func (idx *Index) Range(ctx context.Context, field string, lo, hi codec.Value, loIncl, hiIncl bool) (*Bitmap64, error) {
	var loKey, hiKey []byte
	if lo.Kind != codec.KindNull {
		k, err := EncodeKey(lo)
		if err != nil {
			return nil, err
		}
		loKey = k
	}
	if hi.Kind != codec.KindNull {
		k, err := EncodeKey(hi)
		if err != nil {
			return nil, err
		}
		hiKey = k
	}
	return idx.treeFor(field).Range(ctx, loKey, hiKey, loIncl, hiIncl)
}
