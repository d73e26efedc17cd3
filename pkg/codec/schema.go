package codec

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/andalabs/andadb/internal/errors"
)

// IndexKind names which index a schema field feeds, or none.
type IndexKind string

const (
	IndexNone   IndexKind = ""
	IndexVector IndexKind = "vector"
	IndexText   IndexKind = "text"
	IndexBTree  IndexKind = "btree"
)

// FieldSchema describes one document field: its declared type and which
// index (if any) it feeds. `pkg/collection` routes writes to BTI/HNSW/TFS
// by reading this struct off the collection's schema registry.
type FieldSchema struct {
	Name  string    `validate:"required" cbor:"name"`
	Kind  Kind      `validate:"required,lte=10" cbor:"kind"`
	Index IndexKind `validate:"omitempty,oneof=vector text btree" cbor:"index,omitempty"`
	// Dim is required when Index is IndexVector; it is the HNSW index's
	// configured dimension for the field.
	Dim int `validate:"omitempty,gt=0" cbor:"dim,omitempty"`
}

// Schema is an ordered set of field declarations for one collection.
type Schema struct {
	Fields []FieldSchema `cbor:"fields"`
}

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks the FieldSchema's own shape (required name, known kind,
// index enum, dim only relevant for vector fields).
func (f FieldSchema) Validate() error {
	if err := getValidator().Struct(f); err != nil {
		return errors.Wrap(errors.Validation, err).WithPath(f.Name)
	}
	if f.Index == IndexVector && f.Dim <= 0 {
		return errors.Validationf("field %q: vector index requires dim > 0", f.Name).WithPath(f.Name)
	}
	return nil
}

// Lookup returns the schema for a named field.
func (s *Schema) Lookup(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// CheckDocument validates a document's fields against the schema:
// every declared field present on the document must match its declared
// Kind (spec.md §7 SchemaMismatch), and vector fields must match their
// configured dimension (DimensionMismatch).
func (s *Schema) CheckDocument(doc *Document) error {
	for name, v := range doc.Fields {
		decl, ok := s.Lookup(name)
		if !ok {
			continue // schema evolution is permitted (spec.md §4.6)
		}
		if v.Kind != decl.Kind {
			return errors.New(errors.SchemaMismatch,
				fmt.Sprintf("field %q: expected %s, got %s", name, decl.Kind, v.Kind)).
				WithPath(name)
		}
		if decl.Index == IndexVector && len(v.Vector) != decl.Dim {
			return errors.DimensionMismatchf(
				"field %q: expected dim %d, got %d", name, decl.Dim, len(v.Vector)).
				WithPath(name)
		}
	}
	return nil
}
