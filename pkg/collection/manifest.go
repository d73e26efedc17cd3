package collection

import (
	"context"
	"time"

	"github.com/andalabs/andadb/pkg/btree"
	"github.com/andalabs/andadb/pkg/codec"
)

// osLockRetryInterval is how often TryLockContext polls for the
// OS-level advisory lock while waiting for another process to release
// the commit boundary.
const osLockRetryInterval = 20 * time.Millisecond

// manifestDoc is the persisted `manifest.cbor`: current version pointer
// and segment roster (spec.md §6). It does not carry index contents —
// those live in their own snapshot/segment/page files — only the
// bookkeeping needed to resume: next doc_id, the removed-id bitmap, and
// the WAL sequence number already checkpointed.
type manifestDoc struct {
	Version     uint64 `cbor:"version"`
	NextDocID   uint64 `cbor:"next_doc_id"`
	Removed     []byte `cbor:"removed"`
	CheckpointedWALSeq uint64 `cbor:"checkpointed_wal_seq"`
}

// checkpoint flushes the collection's bookkeeping (version pointer,
// next doc_id, removed-id bitmap) to a temp manifest, atomically
// publishes the new version by renaming it into place as manifest.cbor,
// then truncates the WAL tail already reflected there (spec.md §4.4:
// "a commit flushes all mutated segments + WAL fsync, then atomically
// publishes the new index version pointer").
func (c *Collection) checkpoint(ctx context.Context) error {
	c.removedMu.RLock()
	removedBytes, err := c.removed.MarshalBinary()
	c.removedMu.RUnlock()
	if err != nil {
		return err
	}

	seq := c.wal.Seq()
	m := manifestDoc{
		Version:            c.version.Load(),
		NextDocID:          c.nextDocID.Load(),
		Removed:            removedBytes,
		CheckpointedWALSeq: seq,
	}
	framed, err := codec.EncodeFramed(m)
	if err != nil {
		return err
	}

	tmpPath := c.manifestPath() + ".tmp"
	if err := c.store.Put(ctx, tmpPath, framed); err != nil {
		return err
	}
	if err := c.store.Rename(ctx, tmpPath, c.manifestPath()); err != nil {
		return err
	}

	return c.wal.Truncate(ctx, seq)
}

// loadManifest restores version/next-doc-id/removed-bitmap bookkeeping
// from a prior checkpoint.
func (c *Collection) loadManifest(ctx context.Context, path string) error {
	raw, err := c.store.Get(ctx, path)
	if err != nil {
		return err
	}
	var m manifestDoc
	if err := codec.DecodeFramed(raw, &m); err != nil {
		return err
	}
	c.version.Store(m.Version)
	c.nextDocID.Store(m.NextDocID)
	if len(m.Removed) > 0 {
		bm := btree.NewBitmap64()
		if err := bm.UnmarshalBinary(m.Removed); err != nil {
			return err
		}
		c.removed = bm
	}
	return nil
}
