// Package btree implements the B-tree attribute index (spec.md §4.3): an
// ordered map from (field_name, encoded_value) to a bitmap of doc_ids,
// persisted as fixed-size pages over the object store. Leaf bitmaps use
// github.com/RoaringBitmap/roaring/v2, the compressed-bitmap library the
// rest of the retrieved corpus pulls in via Bleve's scorch segments; doc_id
// is 64-bit so each Bitmap64 here shards by the high 32 bits into one
// roaring.Bitmap per shard, keeping the 32-bit library exact instead of
// truncating ids.
package btree

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/andalabs/andadb/internal/errors"
)

// Bitmap64 is a roaring bitmap of uint64 doc_ids.
type Bitmap64 struct {
	shards map[uint32]*roaring.Bitmap
}

// NewBitmap64 returns an empty bitmap.
func NewBitmap64() *Bitmap64 {
	return &Bitmap64{shards: make(map[uint32]*roaring.Bitmap)}
}

func splitID(id uint64) (hi, lo uint32) {
	return uint32(id >> 32), uint32(id)
}

// Add inserts id.
func (b *Bitmap64) Add(id uint64) {
	hi, lo := splitID(id)
	s, ok := b.shards[hi]
	if !ok {
		s = roaring.New()
		b.shards[hi] = s
	}
	s.Add(lo)
}

// Remove deletes id, dropping the shard if it becomes empty.
func (b *Bitmap64) Remove(id uint64) {
	hi, lo := splitID(id)
	if s, ok := b.shards[hi]; ok {
		s.Remove(lo)
		if s.IsEmpty() {
			delete(b.shards, hi)
		}
	}
}

// Contains reports whether id is set.
func (b *Bitmap64) Contains(id uint64) bool {
	hi, lo := splitID(id)
	s, ok := b.shards[hi]
	return ok && s.Contains(lo)
}

// IsEmpty reports whether the bitmap has no set bits.
func (b *Bitmap64) IsEmpty() bool { return len(b.shards) == 0 }

// Cardinality returns the number of set bits.
func (b *Bitmap64) Cardinality() uint64 {
	var n uint64
	for _, s := range b.shards {
		n += s.GetCardinality()
	}
	return n
}

func (b *Bitmap64) sortedShardKeys() []uint32 {
	keys := make([]uint32, 0, len(b.shards))
	for hi := range b.shards {
		keys = append(keys, hi)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ToSlice returns every set id in ascending order.
func (b *Bitmap64) ToSlice() []uint64 {
	out := make([]uint64, 0, b.Cardinality())
	for _, hi := range b.sortedShardKeys() {
		for _, lo := range b.shards[hi].ToArray() {
			out = append(out, uint64(hi)<<32|uint64(lo))
		}
	}
	return out
}

// Clone returns a deep copy.
func (b *Bitmap64) Clone() *Bitmap64 {
	out := NewBitmap64()
	for hi, s := range b.shards {
		out.shards[hi] = s.Clone()
	}
	return out
}

// Or returns the union of b and other.
func (b *Bitmap64) Or(other *Bitmap64) *Bitmap64 {
	out := NewBitmap64()
	for hi, s := range b.shards {
		out.shards[hi] = s.Clone()
	}
	for hi, s := range other.shards {
		if existing, ok := out.shards[hi]; ok {
			out.shards[hi] = roaring.Or(existing, s)
		} else {
			out.shards[hi] = s.Clone()
		}
	}
	return out
}

// And returns the intersection of b and other.
func (b *Bitmap64) And(other *Bitmap64) *Bitmap64 {
	out := NewBitmap64()
	for hi, s := range b.shards {
		if o, ok := other.shards[hi]; ok {
			r := roaring.And(s, o)
			if !r.IsEmpty() {
				out.shards[hi] = r
			}
		}
	}
	return out
}

// AndNot returns b minus other.
func (b *Bitmap64) AndNot(other *Bitmap64) *Bitmap64 {
	out := NewBitmap64()
	for hi, s := range b.shards {
		if o, ok := other.shards[hi]; ok {
			r := roaring.AndNot(s, o)
			if !r.IsEmpty() {
				out.shards[hi] = r
			}
		} else {
			out.shards[hi] = s.Clone()
		}
	}
	return out
}

// MarshalBinary serializes the bitmap: shard count, then per shard
// (hi key, byte length, roaring-portable-format bytes).
func (b *Bitmap64) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	keys := b.sortedShardKeys()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(keys)))
	buf.Write(hdr[:])

	for _, hi := range keys {
		var shardBuf bytes.Buffer
		if _, err := b.shards[hi].WriteTo(&shardBuf); err != nil {
			return nil, errors.Wrap(errors.Internal, err)
		}
		var keyBuf [4]byte
		binary.BigEndian.PutUint32(keyBuf[:], hi)
		buf.Write(keyBuf[:])
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(shardBuf.Len()))
		buf.Write(lenBuf[:])
		buf.Write(shardBuf.Bytes())
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary parses the format written by MarshalBinary.
func (b *Bitmap64) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return errors.Corruptionf("bitmap64: truncated header")
	}
	count := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	b.shards = make(map[uint32]*roaring.Bitmap, count)

	for i := uint32(0); i < count; i++ {
		if len(data) < 8 {
			return errors.Corruptionf("bitmap64: truncated shard header")
		}
		hi := binary.BigEndian.Uint32(data[:4])
		length := binary.BigEndian.Uint32(data[4:8])
		data = data[8:]
		if uint64(len(data)) < uint64(length) {
			return errors.Corruptionf("bitmap64: truncated shard body")
		}
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(data[:length])); err != nil {
			return errors.Wrap(errors.Corruption, err)
		}
		data = data[length:]
		b.shards[hi] = bm
	}
	return nil
}
