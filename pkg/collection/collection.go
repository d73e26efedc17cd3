// Package collection implements the Collection Manager (COLL, spec.md
// §4.4): per-collection coordination of the B-tree attribute index, the
// HNSW vector index, and the BM25 text index, plus version-pointer MVCC
// and write-ahead-logged commits. Grounded on the teacher's
// pkg/indexer.HybridIndexer (fan-out Index/Delete/Clear/Stats/Close
// across multiple backing indexes, generalized here from two indexers
// to three). No cross-index consistency check runs after compaction.
package collection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/internal/session"
	"github.com/andalabs/andadb/pkg/btree"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/hnsw"
	"github.com/andalabs/andadb/pkg/osa"
	"github.com/andalabs/andadb/pkg/tfs"
)

// VectorFieldConfig configures the HNSW index backing one vector field.
type VectorFieldConfig struct {
	Dim            int
	Metric         hnsw.Metric
	M              int
	EfConstruction int
}

// TextFieldConfig configures the BM25 index backing one text field.
type TextFieldConfig struct {
	Tokenizer tfs.Tokenizer
	K1, B     float32
}

// Config configures a new or reopened Collection.
type Config struct {
	Name        string
	Store       osa.Store
	Schema      codec.Schema
	VectorCfg   map[string]VectorFieldConfig // field name -> HNSW config
	TextCfg     map[string]TextFieldConfig   // field name -> BM25 config
	BTreeMaxKey int                          // B-tree fan-out; 0 = default
	Sessions    *session.Manager
}

// Collection coordinates BTI/HNSW/TFS for one document collection
// (spec.md §4.4). All mutating operations serialize on the in-process
// writer lock plus an OS-level advisory lock (gofrs/flock) for the
// duration of the commit boundary, so a second process that opens the
// same collection root cannot interleave commits with this one.
type Collection struct {
	name   string
	store  osa.Store
	schema codec.Schema

	bti *btree.Index

	vecMu sync.RWMutex
	vec   map[string]*hnsw.Index

	textMu sync.RWMutex
	text   map[string]*tfs.Index

	sessions *session.Manager

	writerMu sync.Mutex
	flock    *flock.Flock

	version   atomic.Uint64
	nextDocID atomic.Uint64

	removedMu sync.RWMutex
	removed   *btree.Bitmap64

	wal *WAL
}

// Open opens (or creates) a collection rooted at coll/<name>/ beneath
// cfg.Store, bootstrapping its indexes from cfg.Schema and replaying any
// WAL tail left by an unclean shutdown.
func Open(ctx context.Context, cfg Config) (*Collection, error) {
	if cfg.Name == "" {
		return nil, errors.Validationf("collection: name is required")
	}
	root := "coll/" + cfg.Name
	maxKeys := cfg.BTreeMaxKey
	if maxKeys <= 0 {
		maxKeys = btree.DefaultMaxKeys
	}

	btreeFields := make([]string, 0)
	for _, f := range cfg.Schema.Fields {
		if f.Index == codec.IndexBTree {
			btreeFields = append(btreeFields, f.Name)
		}
	}
	bti, err := btree.OpenIndex(ctx, cfg.Store, maxKeys, btreeFields)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		name:     cfg.Name,
		store:    cfg.Store,
		schema:   cfg.Schema,
		bti:      bti,
		vec:      make(map[string]*hnsw.Index),
		text:     make(map[string]*tfs.Index),
		sessions: cfg.Sessions,
		removed:  btree.NewBitmap64(),
	}

	for name, vc := range cfg.VectorCfg {
		c.vec[name] = hnsw.New(hnsw.Config{
			Dim: vc.Dim, Metric: vc.Metric, M: vc.M, EfConstruction: vc.EfConstruction,
		})
	}
	for name, tc := range cfg.TextCfg {
		c.text[name] = tfs.New(tfs.Config{Tokenizer: tc.Tokenizer, K1: tc.K1, B: tc.B})
	}

	manifestPath := root + "/manifest.cbor"
	if ok, _ := cfg.Store.Exists(ctx, manifestPath); ok {
		if err := c.loadManifest(ctx, manifestPath); err != nil {
			return nil, err
		}
	}

	wal, err := openWAL(ctx, cfg.Store, root+"/wal")
	if err != nil {
		return nil, err
	}
	c.wal = wal
	// A checkpoint deletes the WAL files it covers, so keep the sequence
	// from restarting below the checkpointed version replayWAL cuts at.
	if v := c.version.Load(); wal.Seq() < v {
		wal.seq.Store(v)
	}
	if err := c.replayWAL(ctx); err != nil {
		return nil, err
	}

	lockPath := root + "/.lock"
	if local, ok := cfg.Store.(localPather); ok {
		c.flock = flock.New(local.LocalPath(lockPath))
	}

	return c, nil
}

// localPather is implemented by object stores backed by a real
// filesystem, letting the commit boundary take an OS-level advisory
// lock in addition to the in-process mutex. Stores that aren't
// filesystem-backed simply rely on the in-process lock.
type localPather interface {
	LocalPath(path string) string
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Version returns the currently committed version pointer.
func (c *Collection) Version() uint64 { return c.version.Load() }

// Schema returns the collection's field schema.
func (c *Collection) Schema() *codec.Schema { return &c.schema }

func (c *Collection) manifestPath() string {
	return "coll/" + c.name + "/manifest.cbor"
}

func (c *Collection) docPath(docID uint64) string {
	return fmt.Sprintf("coll/%s/docs/%d.cbor.zst", c.name, docID)
}

// lockCommit acquires the writer lock for the duration of a commit
// boundary: the in-process mutex always, plus the OS-level advisory
// lock when the backing store is filesystem-resident (spec.md §5: "the
// per-collection writer lock: held only during the commit boundary").
func (c *Collection) lockCommit(ctx context.Context) (func(), error) {
	c.writerMu.Lock()
	if c.flock != nil {
		locked, err := c.flock.TryLockContext(ctx, osLockRetryInterval)
		if err != nil || !locked {
			c.writerMu.Unlock()
			return nil, errors.New(errors.Conflict, "collection: could not acquire cross-process writer lock")
		}
		return func() {
			_ = c.flock.Unlock()
			c.writerMu.Unlock()
		}, nil
	}
	return c.writerMu.Unlock, nil
}

// isRemoved reports whether docID has been tombstoned.
func (c *Collection) isRemoved(docID uint64) bool {
	c.removedMu.RLock()
	defer c.removedMu.RUnlock()
	return c.removed.Contains(docID)
}

func (c *Collection) markRemoved(docID uint64) {
	c.removedMu.Lock()
	defer c.removedMu.Unlock()
	c.removed.Add(docID)
}

// vectorIndex returns the HNSW index backing field, if any.
func (c *Collection) vectorIndex(field string) *hnsw.Index {
	c.vecMu.RLock()
	defer c.vecMu.RUnlock()
	return c.vec[field]
}

// textIndex returns the BM25 index backing field, if any.
func (c *Collection) textIndex(field string) *tfs.Index {
	c.textMu.RLock()
	defer c.textMu.RUnlock()
	return c.text[field]
}

// Get fetches a document blob by id. Returns NotFound if the document
// was never inserted or has been removed.
func (c *Collection) Get(ctx context.Context, docID uint64) (*codec.Document, error) {
	if c.isRemoved(docID) {
		return nil, errors.NotFoundf("doc_id %d not found", docID)
	}
	raw, err := c.store.Get(ctx, c.docPath(docID))
	if err != nil {
		return nil, errors.NotFoundf("doc_id %d not found", docID)
	}
	return codec.DecodeDocument(raw)
}

// Insert assigns a new doc_id, validates fields against the schema,
// routes indexed fields to BTI/HNSW/TFS, and persists the document blob
// (spec.md §4.4 insert). The whole operation is one committed
// transaction.
func (c *Collection) Insert(ctx context.Context, fields map[string]codec.Value) (uint64, error) {
	return c.insertWithID(ctx, 0, fields)
}

// insertWithID inserts fields under a caller-chosen doc_id when id != 0
// (used by Update's insert half to keep the document's identity stable
// across reindexing), or assigns the next monotonic id when id == 0.
func (c *Collection) insertWithID(ctx context.Context, id uint64, fields map[string]codec.Value) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(errors.Cancelled, err)
	}
	doc := &codec.Document{Fields: fields}
	if err := c.schema.CheckDocument(doc); err != nil {
		return 0, err
	}

	unlock, err := c.lockCommit(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if id == 0 {
		id = c.nextDocID.Add(1)
	} else if id > c.nextDocID.Load() {
		c.nextDocID.Store(id)
	}
	doc.DocID = id

	entry := walEntry{Op: walOpInsert, DocID: id, Fields: fields}
	if err := c.wal.Append(ctx, entry); err != nil {
		return 0, err
	}

	if err := c.applyInsert(ctx, doc); err != nil {
		return 0, err
	}

	c.version.Add(1)
	if err := c.checkpoint(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// applyInsert performs the index-routing side effects of an insert
// without taking the commit lock (the caller already holds it); used
// by both Insert and WAL replay.
func (c *Collection) applyInsert(ctx context.Context, doc *codec.Document) error {
	for _, fs := range c.schema.Fields {
		v, ok := doc.Field(fs.Name)
		if !ok {
			continue
		}
		switch fs.Index {
		case codec.IndexBTree:
			if err := c.bti.Insert(ctx, fs.Name, v, doc.DocID); err != nil {
				return err
			}
		case codec.IndexVector:
			vec, ok := v.AsVector()
			if !ok {
				return errors.New(errors.SchemaMismatch, fmt.Sprintf("field %q: expected vector", fs.Name)).WithPath(fs.Name)
			}
			idx := c.vectorIndex(fs.Name)
			if idx == nil {
				return errors.Internalf("collection: no HNSW index configured for field %q", fs.Name)
			}
			if err := idx.Insert(doc.DocID, vec); err != nil {
				return err
			}
		case codec.IndexText:
			text, _ := v.AsString()
			idx := c.textIndex(fs.Name)
			if idx == nil {
				return errors.Internalf("collection: no TFS index configured for field %q", fs.Name)
			}
			if err := idx.Insert(doc.DocID, text); err != nil {
				return err
			}
		}
	}

	raw, err := codec.EncodeDocument(doc)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, c.docPath(doc.DocID), raw)
}

// Update applies patch to docID as a delete-then-insert at the index
// level for every reindexed field, per spec.md §4.4 ("insert-then-delete
// for vector and text fields to keep indexes append-friendly"). The
// document's doc_id is preserved; only its indexed fields are
// re-written.
func (c *Collection) Update(ctx context.Context, docID uint64, patch map[string]codec.Value) error {
	existing, err := c.Get(ctx, docID)
	if err != nil {
		return err
	}

	unlock, err := c.lockCommit(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	merged := make(map[string]codec.Value, len(existing.Fields)+len(patch))
	for k, v := range existing.Fields {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	newDoc := &codec.Document{DocID: docID, Fields: merged}
	if err := c.schema.CheckDocument(newDoc); err != nil {
		return err
	}

	entry := walEntry{Op: walOpUpdate, DocID: docID, Fields: merged}
	if err := c.wal.Append(ctx, entry); err != nil {
		return err
	}

	if err := c.applyRemoveIndexesOnly(docID, existing); err != nil {
		return err
	}
	if err := c.applyInsert(ctx, newDoc); err != nil {
		return err
	}

	c.version.Add(1)
	return c.checkpoint(ctx)
}

// Remove tombstones docID in every index that references it (spec.md
// §4.4 remove).
func (c *Collection) Remove(ctx context.Context, docID uint64) error {
	doc, err := c.Get(ctx, docID)
	if err != nil {
		return err
	}

	unlock, err := c.lockCommit(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entry := walEntry{Op: walOpRemove, DocID: docID}
	if err := c.wal.Append(ctx, entry); err != nil {
		return err
	}

	if err := c.applyRemoveIndexesOnly(docID, doc); err != nil {
		return err
	}
	c.markRemoved(docID)

	c.version.Add(1)
	return c.checkpoint(ctx)
}

// applyRemoveIndexesOnly tombstones docID in BTI/HNSW/TFS but leaves the
// document blob itself in place; Remove additionally marks the id
// removed, Update immediately re-inserts under the same id.
func (c *Collection) applyRemoveIndexesOnly(docID uint64, doc *codec.Document) error {
	for _, fs := range c.schema.Fields {
		v, ok := doc.Field(fs.Name)
		if !ok {
			continue
		}
		switch fs.Index {
		case codec.IndexBTree:
			if err := c.bti.Remove(context.Background(), fs.Name, v, docID); err != nil && !errors.IsKind(err, errors.NotFound) {
				return err
			}
		case codec.IndexVector:
			if idx := c.vectorIndex(fs.Name); idx != nil {
				if err := idx.Remove(docID); err != nil && !errors.IsKind(err, errors.NotFound) {
					return err
				}
			}
		case codec.IndexText:
			if idx := c.textIndex(fs.Name); idx != nil {
				if err := idx.Remove(docID); err != nil && !errors.IsKind(err, errors.NotFound) {
					return err
				}
			}
		}
	}
	return nil
}

// Equality returns doc_ids whose field equals value.
func (c *Collection) Equality(ctx context.Context, field string, value codec.Value) (*btree.Bitmap64, error) {
	return c.bti.Equality(ctx, field, value)
}

// Prefix returns doc_ids whose field's encoded value starts with value.
func (c *Collection) Prefix(ctx context.Context, field string, value codec.Value) (*btree.Bitmap64, error) {
	return c.bti.Prefix(ctx, field, value)
}

// Range returns doc_ids whose field falls within [lo, hi].
func (c *Collection) Range(ctx context.Context, field string, lo, hi codec.Value, loIncl, hiIncl bool) (*btree.Bitmap64, error) {
	return c.bti.Range(ctx, field, lo, hi, loIncl, hiIncl)
}

// VectorSearch runs a top-k ANN search over field, skipping removed docs.
func (c *Collection) VectorSearch(field string, query []float32, k, ef int) ([]hnsw.Result, error) {
	idx := c.vectorIndex(field)
	if idx == nil {
		return nil, errors.NotFoundf("collection: no vector index on field %q", field)
	}
	results, err := idx.Search(query, k, ef)
	if err != nil {
		return nil, err
	}
	return c.filterRemovedHNSW(results), nil
}

func (c *Collection) filterRemovedHNSW(in []hnsw.Result) []hnsw.Result {
	out := in[:0:0]
	for _, r := range in {
		if !c.isRemoved(r.DocID) {
			out = append(out, r)
		}
	}
	return out
}

// TextSearch runs BM25 search over field, skipping removed docs.
func (c *Collection) TextSearch(field, query string, topK int) ([]tfs.Result, error) {
	idx := c.textIndex(field)
	if idx == nil {
		return nil, errors.NotFoundf("collection: no text index on field %q", field)
	}
	results, err := idx.Search(query, topK)
	if err != nil {
		return nil, err
	}
	out := results[:0:0]
	for _, r := range results {
		if !c.isRemoved(r.DocID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Stats summarizes per-index health for `andadb stats` and the
// background compactor's eligibility checks.
type Stats struct {
	Version  uint64
	DocCount int
	HNSW     map[string]hnsw.Stats
	TFS      map[string]tfs.Stats
}

func (c *Collection) Stats() Stats {
	s := Stats{Version: c.Version(), HNSW: make(map[string]hnsw.Stats), TFS: make(map[string]tfs.Stats)}
	c.vecMu.RLock()
	for name, idx := range c.vec {
		s.HNSW[name] = idx.Stats()
	}
	c.vecMu.RUnlock()
	c.textMu.RLock()
	for name, idx := range c.text {
		s.TFS[name] = idx.Stats()
	}
	c.textMu.RUnlock()
	c.removedMu.RLock()
	s.DocCount = int(c.nextDocID.Load()) - int(c.removed.Cardinality())
	c.removedMu.RUnlock()
	return s
}

// Close flushes a final checkpoint. The lock boundary is per-commit
// (lockCommit), not held for the Collection's lifetime, so there is
// nothing else to release here.
func (c *Collection) Close() error {
	return c.checkpoint(context.Background())
}

// Compact sweeps tombstoned entries out of every vector and text
// index backing this collection (spec.md §4.4's background compactor,
// shared by the HNSW tombstone sweep and the TFS segment merge). It
// takes no write lock beyond each index's own: compaction rewrites an
// index's internal structures but never touches doc_ids or the
// B-tree, so concurrent Insert/Update/Remove on other fields are
// unaffected.
func (c *Collection) Compact(ctx context.Context) error {
	c.vecMu.RLock()
	vecIndexes := make([]*hnsw.Index, 0, len(c.vec))
	for _, idx := range c.vec {
		vecIndexes = append(vecIndexes, idx)
	}
	c.vecMu.RUnlock()
	for _, idx := range vecIndexes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := idx.Compact(); err != nil {
			return err
		}
	}

	c.textMu.RLock()
	textIndexes := make([]*tfs.Index, 0, len(c.text))
	for _, idx := range c.text {
		textIndexes = append(textIndexes, idx)
	}
	c.textMu.RUnlock()
	for _, idx := range textIndexes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		idx.MaybeCompact()
	}

	return c.checkpoint(ctx)
}

// sortedUint64 is a small helper used when plan evaluation needs a
// deterministic doc_id order (e.g. insertion-order projections fall
// back to ascending doc_id, which matches assignment order).
func sortedUint64(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
