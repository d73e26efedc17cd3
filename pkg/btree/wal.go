package btree

import (
	"github.com/andalabs/andadb/pkg/codec"
)

// walEntry is one logged page write.
type walEntry struct {
	PageID uint64 `cbor:"page_id"`
	Data   []byte `cbor:"data"`
}

// WAL is the write-ahead log for one field's tree. The object store has
// no native append (pkg/osa), so entries accumulate in memory and the
// whole log is rewritten on every Tree.checkpoint call — the same pragmatic
// realization of an append-only log used by pkg/hnsw's tail log. Unlike
// the HNSW tail log this one is truncated after every checkpoint rather
// than replayed indefinitely, matching spec.md §6's
// "wal/<seq>.log... truncated after checkpoint".
type WAL struct {
	entries []walEntry
}

func newWAL() *WAL { return &WAL{} }

// record appends a page write.
func (w *WAL) record(id pageID, data []byte) {
	w.entries = append(w.entries, walEntry{PageID: uint64(id), Data: data})
}

// clear truncates the log after a successful checkpoint.
func (w *WAL) clear() { w.entries = nil }

func (w *WAL) len() int { return len(w.entries) }

// encode serializes the log's current entries.
func (w *WAL) encode() ([]byte, error) {
	return codec.EncodeFramed(w.entries)
}

// decodeWAL parses a log produced by encode.
func decodeWAL(data []byte) (*WAL, error) {
	var entries []walEntry
	if err := codec.DecodeFramed(data, &entries); err != nil {
		return nil, err
	}
	return &WAL{entries: entries}, nil
}
