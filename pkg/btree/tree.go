package btree

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/osa"
)

const (
	// DefaultMaxKeys is the fan-out threshold before a page splits.
	DefaultMaxKeys = 128
	// DefaultCacheSize is the page cache's entry capacity.
	DefaultCacheSize = 256
)

// rootPointer is the small persisted file naming the current root page
// and next-page-id counter, the tree's version pointer (spec.md §4.4).
type rootPointer struct {
	Root       uint64 `cbor:"root"`
	NextPageID uint64 `cbor:"next_page_id"`
	HasRoot    bool   `cbor:"has_root"`
}

// Tree is a persistent B+-tree for one indexed field: fixed-size pages
// addressed by page id, roaring-bitmap leaves, split propagation upward,
// page-level WAL, and an LRU page cache (spec.md §4.3). Multiple readers
// may run concurrently; writes are serialized by mu (single-writer, per
// the engine's per-collection writer-lock model in §5).
type Tree struct {
	mu      sync.RWMutex
	field   string
	store   osa.Store
	prefix  string
	cache   *lru.Cache[pageID, *page]
	wal     *WAL
	root    pageID
	hasRoot bool
	nextID  pageID
	maxKeys int
}

// NewTree creates an empty tree for field, rooted at
// btree/<field>/ beneath the collection's storage root.
func NewTree(field string, store osa.Store, maxKeys int) *Tree {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New[pageID, *page](DefaultCacheSize)
	if err != nil {
		panic("btree: failed to construct page cache: " + err.Error())
	}
	return &Tree{
		field:   field,
		store:   store,
		prefix:  fmt.Sprintf("btree/%s/", field),
		cache:   cache,
		wal:     newWAL(),
		nextID:  1,
		maxKeys: maxKeys,
	}
}

// LoadTree opens a previously persisted tree, replaying any WAL tail left
// over from a crash between the last page writes and the root-pointer
// checkpoint.
func LoadTree(ctx context.Context, field string, store osa.Store, maxKeys int) (*Tree, error) {
	t := NewTree(field, store, maxKeys)

	rootData, err := store.Get(ctx, t.prefix+"root.bin")
	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			return t, nil
		}
		return nil, err
	}
	var rp rootPointer
	if err := codec.DecodeFramed(rootData, &rp); err != nil {
		return nil, err
	}
	t.root = pageID(rp.Root)
	t.hasRoot = rp.HasRoot
	t.nextID = pageID(rp.NextPageID)

	exists, err := store.Exists(ctx, t.prefix+"wal.bin")
	if err != nil {
		return nil, err
	}
	if exists {
		walData, err := store.Get(ctx, t.prefix+"wal.bin")
		if err != nil {
			return nil, err
		}
		wal, err := decodeWAL(walData)
		if err != nil {
			return nil, err
		}
		for _, e := range wal.entries {
			if err := store.Put(ctx, t.pagePath(pageID(e.PageID)), e.Data); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Tree) pagePath(id pageID) string {
	return fmt.Sprintf("%spage-%d.bin", t.prefix, id)
}

func (t *Tree) allocPageID() pageID {
	id := t.nextID
	t.nextID++
	return id
}

func (t *Tree) loadPage(ctx context.Context, id pageID) (*page, error) {
	if p, ok := t.cache.Get(id); ok {
		return p, nil
	}
	data, err := t.store.Get(ctx, t.pagePath(id))
	if err != nil {
		return nil, err
	}
	p, err := decodePage(data)
	if err != nil {
		return nil, err
	}
	t.cache.Add(id, p)
	return p, nil
}

func (t *Tree) storePage(ctx context.Context, p *page) error {
	data, err := p.encode()
	if err != nil {
		return err
	}
	t.wal.record(p.id, data)
	if err := t.store.Put(ctx, t.pagePath(p.id), data); err != nil {
		return err
	}
	t.cache.Add(p.id, p)
	return nil
}

// checkpoint flushes the WAL and publishes the root pointer, then
// truncates the log (spec.md §6 "truncated after checkpoint").
func (t *Tree) checkpoint(ctx context.Context) error {
	if t.wal.len() > 0 {
		data, err := t.wal.encode()
		if err != nil {
			return err
		}
		if err := t.store.Put(ctx, t.prefix+"wal.bin", data); err != nil {
			return err
		}
	}

	rp := rootPointer{Root: uint64(t.root), NextPageID: uint64(t.nextID), HasRoot: t.hasRoot}
	data, err := codec.EncodeFramed(rp)
	if err != nil {
		return err
	}
	if err := t.store.Put(ctx, t.prefix+"root.bin", data); err != nil {
		return err
	}
	t.wal.clear()
	return nil
}

func insertBytesAt(s [][]byte, idx int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertBitmapAt(s []*Bitmap64, idx int, v *Bitmap64) []*Bitmap64 {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertPageIDAt(s []pageID, idx int, v pageID) []pageID {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

// Insert adds docID under key, creating the root on first use and
// splitting leaves/internal pages upward as needed.
func (t *Tree) Insert(ctx context.Context, key []byte, docID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasRoot {
		rootID := t.allocPageID()
		leaf := &page{id: rootID, leaf: true}
		if err := t.storePage(ctx, leaf); err != nil {
			return err
		}
		t.root = rootID
		t.hasRoot = true
	}

	promoted, rightID, split, err := t.insertRec(ctx, t.root, key, docID)
	if err != nil {
		return err
	}
	if split {
		newRootID := t.allocPageID()
		newRoot := &page{
			id:       newRootID,
			leaf:     false,
			keys:     [][]byte{promoted},
			children: []pageID{t.root, rightID},
		}
		if err := t.storePage(ctx, newRoot); err != nil {
			return err
		}
		t.root = newRootID
	}
	return t.checkpoint(ctx)
}

func (t *Tree) insertRec(ctx context.Context, id pageID, key []byte, docID uint64) (promoted []byte, rightID pageID, split bool, err error) {
	p, err := t.loadPage(ctx, id)
	if err != nil {
		return nil, 0, false, err
	}

	if p.leaf {
		idx := sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) >= 0 })
		if idx < len(p.keys) && bytes.Equal(p.keys[idx], key) {
			p.bitmaps[idx].Add(docID)
		} else {
			bm := NewBitmap64()
			bm.Add(docID)
			p.keys = insertBytesAt(p.keys, idx, key)
			p.bitmaps = insertBitmapAt(p.bitmaps, idx, bm)
		}

		if len(p.keys) <= t.maxKeys {
			return nil, 0, false, t.storePage(ctx, p)
		}

		mid := len(p.keys) / 2
		right := &page{
			id:      t.allocPageID(),
			leaf:    true,
			keys:    append([][]byte(nil), p.keys[mid:]...),
			bitmaps: append([]*Bitmap64(nil), p.bitmaps[mid:]...),
			next:    p.next,
		}
		p.keys = p.keys[:mid]
		p.bitmaps = p.bitmaps[:mid]
		p.next = right.id

		if err := t.storePage(ctx, right); err != nil {
			return nil, 0, false, err
		}
		if err := t.storePage(ctx, p); err != nil {
			return nil, 0, false, err
		}
		return right.keys[0], right.id, true, nil
	}

	idx := sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) > 0 })
	childID := p.children[idx]

	childPromoted, childRight, childSplit, err := t.insertRec(ctx, childID, key, docID)
	if err != nil || !childSplit {
		return nil, 0, false, err
	}

	p.keys = insertBytesAt(p.keys, idx, childPromoted)
	p.children = insertPageIDAt(p.children, idx+1, childRight)

	if len(p.keys) <= t.maxKeys {
		return nil, 0, false, t.storePage(ctx, p)
	}

	mid := len(p.keys) / 2
	promotedUp := p.keys[mid]
	right := &page{
		id:       t.allocPageID(),
		leaf:     false,
		keys:     append([][]byte(nil), p.keys[mid+1:]...),
		children: append([]pageID(nil), p.children[mid+1:]...),
	}
	p.keys = p.keys[:mid]
	p.children = p.children[:mid+1]

	if err := t.storePage(ctx, right); err != nil {
		return nil, 0, false, err
	}
	if err := t.storePage(ctx, p); err != nil {
		return nil, 0, false, err
	}
	return promotedUp, right.id, true, nil
}

// Remove deletes docID from key's bitmap. No merge/rebalance is
// performed on underflow: an emptied leaf slot is simply dropped, the
// same "logical deletion until compaction" tradeoff pkg/hnsw and
// pkg/tfs make, so a single writer path handles both indexes the same
// way.
func (t *Tree) Remove(ctx context.Context, key []byte, docID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasRoot {
		return errors.NotFoundf("btree: field %q has no entries", t.field)
	}
	found, err := t.removeRec(ctx, t.root, key, docID)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFoundf("btree: key not found for doc_id %d", docID)
	}
	return t.checkpoint(ctx)
}

func (t *Tree) removeRec(ctx context.Context, id pageID, key []byte, docID uint64) (bool, error) {
	p, err := t.loadPage(ctx, id)
	if err != nil {
		return false, err
	}
	if p.leaf {
		idx := sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) >= 0 })
		if idx >= len(p.keys) || !bytes.Equal(p.keys[idx], key) {
			return false, nil
		}
		p.bitmaps[idx].Remove(docID)
		if p.bitmaps[idx].IsEmpty() {
			p.keys = append(p.keys[:idx], p.keys[idx+1:]...)
			p.bitmaps = append(p.bitmaps[:idx], p.bitmaps[idx+1:]...)
		}
		return true, t.storePage(ctx, p)
	}

	idx := sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) > 0 })
	return t.removeRec(ctx, p.children[idx], key, docID)
}

func (t *Tree) descendToLeaf(ctx context.Context, key []byte) (*page, error) {
	if !t.hasRoot {
		return nil, nil
	}
	id := t.root
	for {
		p, err := t.loadPage(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.leaf {
			return p, nil
		}
		idx := sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) > 0 })
		id = p.children[idx]
	}
}

// Equality returns the bitmap of doc_ids whose field value encodes to key.
func (t *Tree) Equality(ctx context.Context, key []byte) (*Bitmap64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, err := t.descendToLeaf(ctx, key)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return NewBitmap64(), nil
	}
	idx := sort.Search(len(leaf.keys), func(i int) bool { return bytes.Compare(leaf.keys[i], key) >= 0 })
	if idx < len(leaf.keys) && bytes.Equal(leaf.keys[idx], key) {
		return leaf.bitmaps[idx].Clone(), nil
	}
	return NewBitmap64(), nil
}

// Prefix returns the union of every bitmap whose key starts with prefix.
func (t *Tree) Prefix(ctx context.Context, prefix []byte) (*Bitmap64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := NewBitmap64()
	leaf, err := t.descendToLeaf(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for leaf != nil {
		advanced := false
		for i, k := range leaf.keys {
			if len(k) < len(prefix) {
				if bytes.Compare(k, prefix) < 0 {
					continue
				}
				return out, nil
			}
			if !bytes.HasPrefix(k, prefix) {
				if bytes.Compare(k, prefix) > 0 {
					return out, nil
				}
				continue
			}
			out = out.Or(leaf.bitmaps[i])
			advanced = true
		}
		if leaf.next == noPage {
			break
		}
		next, err := t.loadPage(ctx, leaf.next)
		if err != nil {
			return nil, err
		}
		if !advanced && len(next.keys) > 0 && bytes.Compare(next.keys[0], prefix) > 0 && !bytes.HasPrefix(next.keys[0], prefix) {
			break
		}
		leaf = next
	}
	return out, nil
}

// Range returns the union of every bitmap whose key falls within [lo,hi]
// (bounds optionally exclusive). A nil lo/hi means unbounded on that side.
func (t *Tree) Range(ctx context.Context, lo, hi []byte, loIncl, hiIncl bool) (*Bitmap64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := NewBitmap64()
	start := lo
	if start == nil {
		start = []byte{}
	}
	leaf, err := t.descendToLeaf(ctx, start)
	if err != nil {
		return nil, err
	}
	for leaf != nil {
		for i, k := range leaf.keys {
			if lo != nil {
				cmp := bytes.Compare(k, lo)
				if cmp < 0 || (cmp == 0 && !loIncl) {
					continue
				}
			}
			if hi != nil {
				cmp := bytes.Compare(k, hi)
				if cmp > 0 || (cmp == 0 && !hiIncl) {
					return out, nil
				}
			}
			out = out.Or(leaf.bitmaps[i])
		}
		if leaf.next == noPage {
			break
		}
		next, err := t.loadPage(ctx, leaf.next)
		if err != nil {
			return nil, err
		}
		leaf = next
	}
	return out, nil
}
