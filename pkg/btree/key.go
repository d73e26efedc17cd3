package btree

import (
	"encoding/binary"
	"math"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
)

// Key type tags prefix every encoded key so that values of different kinds
// never compare equal or interleave under byte-lexicographic order.
const (
	tagNull byte = iota
	tagBool
	tagI64
	tagU64
	tagF64
	tagString
	tagBytes
)

// EncodeKey renders v as an order-preserving byte string: equality,
// prefix, and range queries over the B-tree all compare these bytes
// lexicographically (spec.md §4.3). Only scalar kinds are indexable;
// vector/array/map fields never reach the BTI (they are routed to HNSW,
// or are not indexed).
func EncodeKey(v codec.Value) ([]byte, error) {
	switch v.Kind {
	case codec.KindNull:
		return []byte{tagNull}, nil
	case codec.KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{tagBool, b}, nil
	case codec.KindI64:
		var buf [9]byte
		buf[0] = tagI64
		// Flip the sign bit so two's-complement order matches byte order.
		binary.BigEndian.PutUint64(buf[1:], uint64(v.I64)^0x8000000000000000)
		return buf[:], nil
	case codec.KindU64:
		var buf [9]byte
		buf[0] = tagU64
		binary.BigEndian.PutUint64(buf[1:], v.U64)
		return buf[:], nil
	case codec.KindF32:
		return encodeFloatKey(float64(v.F32)), nil
	case codec.KindF64:
		return encodeFloatKey(v.F64), nil
	case codec.KindString:
		out := make([]byte, 1+len(v.Str))
		out[0] = tagString
		copy(out[1:], v.Str)
		return out, nil
	case codec.KindBytes:
		out := make([]byte, 1+len(v.Bytes))
		out[0] = tagBytes
		copy(out[1:], v.Bytes)
		return out, nil
	default:
		return nil, errors.Validationf("btree: kind %s is not indexable", v.Kind)
	}
}

func encodeFloatKey(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits |= 0x8000000000000000
	} else {
		bits = ^bits
	}
	var buf [9]byte
	buf[0] = tagF64
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf[:]
}

// PrefixUpperBound returns the smallest key strictly greater than every
// key with prefix p, or nil if p is all 0xff (an unbounded scan).
func PrefixUpperBound(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
