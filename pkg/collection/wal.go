package collection

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
)

// walOp names the mutating operation a WAL entry replays.
type walOp string

const (
	walOpInsert walOp = "insert"
	walOpUpdate walOp = "update"
	walOpRemove walOp = "remove"
)

// walEntry is one write-ahead log record: enough to replay a single
// Insert/Update/Remove against the indexes without re-deriving it from
// the document blob (spec.md §4.3/§4.4: "a write-ahead log records page
// mutations; recovery replays unflushed tail").
type walEntry struct {
	Seq    uint64                  `cbor:"seq"`
	Op     walOp                   `cbor:"op"`
	DocID  uint64                  `cbor:"doc_id"`
	Fields map[string]codec.Value  `cbor:"fields,omitempty"`
}

// WAL is the append-only log of mutating operations for one collection,
// stored as one framed file per entry under wal/<seq>.log so each
// append is a single atomic object-store Put rather than appending to
// a growing blob (spec.md §6 layout).
type WAL struct {
	mu     sync.Mutex
	store  osaStore
	prefix string
	seq    atomic.Uint64
}

// osaStore is the minimal surface WAL needs, aliased locally so this
// file doesn't import pkg/osa's concrete Store name twice.
type osaStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
}

func openWAL(ctx context.Context, store osaStore, prefix string) (*WAL, error) {
	w := &WAL{store: store, prefix: prefix}
	entries, err := w.list(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		w.seq.Store(entries[len(entries)-1])
	}
	return w, nil
}

func (w *WAL) path(seq uint64) string {
	return fmt.Sprintf("%s/%020d.log", w.prefix, seq)
}

// Seq returns the highest sequence number appended so far.
func (w *WAL) Seq() uint64 { return w.seq.Load() }

// Append assigns the next sequence number to entry and persists it.
func (w *WAL) Append(ctx context.Context, entry walEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.seq.Load() + 1
	entry.Seq = seq
	framed, err := codec.EncodeFramed(entry)
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, w.path(seq), framed); err != nil {
		return errors.Wrap(errors.Io, err)
	}
	w.seq.Store(seq)
	return nil
}

// list returns every recorded sequence number, ascending.
func (w *WAL) list(ctx context.Context) ([]uint64, error) {
	paths, err := w.store.List(ctx, w.prefix+"/")
	if err != nil {
		return nil, errors.Wrap(errors.Io, err)
	}
	out := make([]uint64, 0, len(paths))
	for _, p := range paths {
		base := p
		if i := strings.LastIndex(p, "/"); i >= 0 {
			base = p[i+1:]
		}
		base = strings.TrimSuffix(base, ".log")
		seq, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, seq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// entries returns every recorded WAL entry with seq > after, ascending.
func (w *WAL) entries(ctx context.Context, after uint64) ([]walEntry, error) {
	seqs, err := w.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]walEntry, 0, len(seqs))
	for _, seq := range seqs {
		if seq <= after {
			continue
		}
		raw, err := w.store.Get(ctx, w.path(seq))
		if err != nil {
			return nil, errors.Wrap(errors.Io, err)
		}
		var e walEntry
		if err := codec.DecodeFramed(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Truncate deletes every recorded entry with seq <= uptoSeq, the
// portion already reflected in the last checkpoint.
func (w *WAL) Truncate(ctx context.Context, uptoSeq uint64) error {
	seqs, err := w.list(ctx)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		if seq > uptoSeq {
			continue
		}
		if err := w.store.Delete(ctx, w.path(seq)); err != nil {
			return errors.Wrap(errors.Io, err)
		}
	}
	return nil
}

// replayWAL re-applies every WAL entry left over from an unclean
// shutdown (anything with seq greater than the last checkpoint) against
// the in-memory indexes, then checkpoints once replay completes
// (spec.md §4.1 "load replays the log over the snapshot", generalized
// here across all three indexes via the collection's own apply paths).
func (c *Collection) replayWAL(ctx context.Context) error {
	entries, err := c.wal.entries(ctx, c.version.Load())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		switch e.Op {
		case walOpInsert:
			doc := &codec.Document{DocID: e.DocID, Fields: e.Fields}
			if err := c.applyInsert(ctx, doc); err != nil {
				return err
			}
			if e.DocID > c.nextDocID.Load() {
				c.nextDocID.Store(e.DocID)
			}
		case walOpUpdate:
			existing, err := c.Get(ctx, e.DocID)
			if err == nil {
				if err := c.applyRemoveIndexesOnly(e.DocID, existing); err != nil {
					return err
				}
			}
			doc := &codec.Document{DocID: e.DocID, Fields: e.Fields}
			if err := c.applyInsert(ctx, doc); err != nil {
				return err
			}
		case walOpRemove:
			existing, err := c.Get(ctx, e.DocID)
			if err == nil {
				if err := c.applyRemoveIndexesOnly(e.DocID, existing); err != nil {
					return err
				}
			}
			c.markRemoved(e.DocID)
		}
		c.version.Add(1)
	}
	return c.checkpoint(ctx)
}
