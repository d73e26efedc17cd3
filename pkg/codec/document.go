package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/andalabs/andadb/internal/errors"
)

// Document is the unit persisted in a collection (spec.md §3): a
// monotonic doc_id plus a set of named, typed fields.
type Document struct {
	DocID  uint64           `cbor:"doc_id"`
	Fields map[string]Value `cbor:"fields"`
}

// Field returns the named field and whether it is present.
func (d *Document) Field(name string) (Value, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			panic("codec: failed to build zstd encoder: " + err.Error())
		}
		encoder = enc
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic("codec: failed to build zstd decoder: " + err.Error())
		}
		decoder = dec
	})
	return decoder
}

// EncodeDocument produces the `docs/<doc_id>.cbor.zst` blob: canonical
// CBOR, zstd-compressed, then framed with magic/version/CRC32.
func EncodeDocument(doc *Document) ([]byte, error) {
	raw, err := EncodeCanonical(doc)
	if err != nil {
		return nil, err
	}
	compressed := getEncoder().EncodeAll(raw, nil)
	return Frame(compressed), nil
}

// DecodeDocument reverses EncodeDocument, validating the frame before
// decompressing and decoding.
func DecodeDocument(data []byte) (*Document, error) {
	compressed, err := Unframe(data)
	if err != nil {
		return nil, err
	}
	raw, err := getDecoder().DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Corruptionf("zstd decompress failed: %v", err)
	}
	var doc Document
	if err := DecodeCanonical(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
