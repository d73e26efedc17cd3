// Package codec implements the canonical binary encoding shared by every
// on-disk artifact the engine writes: documents, the collection manifest,
// HNSW snapshots, BM25 segments, and B-tree pages. Every framed file opens
// with the `"ANDA"` magic and a one-byte format version and closes with a
// CRC32 footer (spec.md §6), wrapping a canonical CBOR payload produced
// with github.com/fxamacker/cbor/v2's CanonicalEncOptions (deterministic
// map-key ordering, definite-length items).
package codec

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/fxamacker/cbor/v2"

	"github.com/andalabs/andadb/internal/errors"
)

// Magic is the 4-byte "ANDA" header every framed file begins with.
const Magic uint32 = 0x414E4441

// FormatVersion is the current on-disk framing version.
const FormatVersion byte = 1

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic("codec: invalid canonical cbor options: " + err.Error())
	}
	return m
}()

// EncodeCanonical marshals v to canonical CBOR: deterministic map-key
// ordering, definite-length items, no indefinite-length containers.
func EncodeCanonical(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err)
	}
	return b, nil
}

// DecodeCanonical unmarshals canonical CBOR into v.
func DecodeCanonical(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.Corruption, err)
	}
	return nil
}

// Frame wraps a CBOR (or any) payload with the magic header, format
// version, and a trailing CRC32 checksum over header+payload.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, 4+1+len(payload)+4)
	var magicBuf [4]byte
	binary.BigEndian.PutUint32(magicBuf[:], Magic)
	out = append(out, magicBuf[:]...)
	out = append(out, FormatVersion)
	out = append(out, payload...)

	sum := crc32.ChecksumIEEE(out)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	out = append(out, sumBuf[:]...)
	return out
}

// Unframe validates the magic header, format version, and CRC32 footer,
// returning the inner payload. Any mismatch is a Corruption error —
// spec.md §7 requires the open/load path to abort on CRC or invariant
// failure during load.
func Unframe(data []byte) ([]byte, error) {
	const headerLen = 5
	const footerLen = 4
	if len(data) < headerLen+footerLen {
		return nil, errors.Corruptionf("frame too short: %d bytes", len(data))
	}

	magic := binary.BigEndian.Uint32(data[:4])
	if magic != Magic {
		return nil, errors.Corruptionf("bad magic header: %#x", magic)
	}
	version := data[4]
	if version != FormatVersion {
		return nil, errors.Corruptionf("unsupported format version: %d", version)
	}

	body := data[:len(data)-footerLen]
	wantSum := binary.BigEndian.Uint32(data[len(data)-footerLen:])
	gotSum := crc32.ChecksumIEEE(body)
	if gotSum != wantSum {
		return nil, errors.Corruptionf("crc32 mismatch: frame is corrupt")
	}

	return data[headerLen : len(data)-footerLen], nil
}

// EncodeFramed is EncodeCanonical followed by Frame, the combination used
// for manifest.cbor and every other small framed-CBOR artifact.
func EncodeFramed(v any) ([]byte, error) {
	payload, err := EncodeCanonical(v)
	if err != nil {
		return nil, err
	}
	return Frame(payload), nil
}

// DecodeFramed is Unframe followed by DecodeCanonical.
func DecodeFramed(data []byte, v any) error {
	payload, err := Unframe(data)
	if err != nil {
		return err
	}
	return DecodeCanonical(payload, v)
}
