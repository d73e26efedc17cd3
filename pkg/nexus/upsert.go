package nexus

import (
	"context"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
)

// UpsertConcept merges attrs into the concept matching (typ, name), or
// creates one if none exists (spec.md §4.6 UPSERT semantics: "matched
// by its (type, name) primary key; if found, attributes are merged ...
// otherwise a new concept is created"). Idempotent: running the same
// capsule twice yields the same doc_id and the same merged attributes.
func (n *Nexus) UpsertConcept(ctx context.Context, typ, name string, attrs map[string]codec.Value) (uint64, bool, error) {
	existing, found, err := n.LookupConcept(ctx, typ, name)
	if err != nil {
		return 0, false, err
	}

	n.checkInstanceSchema(ctx, typ, attrs)

	if found {
		if len(attrs) == 0 {
			return existing.DocID, false, nil
		}
		patch := mergeAttributes(existing, attrs)
		if err := n.concepts.Update(ctx, existing.DocID, patch); err != nil {
			return 0, false, err
		}
		return existing.DocID, false, nil
	}

	fields := map[string]codec.Value{
		"type": codec.StringValue(typ),
		"name": codec.StringValue(name),
	}
	if attrs != nil {
		fields["attributes"] = codec.MapValue(attrs)
	}
	id, err := n.concepts.Insert(ctx, fields)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// UpsertProposition merges attrs into the proposition matching
// (subjectID, predicate, objectID), or creates one. Both subjectID and
// objectID must already name live concepts.
func (n *Nexus) UpsertProposition(ctx context.Context, subjectID uint64, predicate string, objectID uint64, attrs map[string]codec.Value) (uint64, bool, error) {
	if _, err := n.concepts.Get(ctx, subjectID); err != nil {
		return 0, false, errors.NotFoundf("nexus: proposition subject concept %d not found", subjectID)
	}
	if _, err := n.concepts.Get(ctx, objectID); err != nil {
		return 0, false, errors.NotFoundf("nexus: proposition object concept %d not found", objectID)
	}

	existing, found, err := n.lookupProposition(ctx, subjectID, predicate, objectID)
	if err != nil {
		return 0, false, err
	}
	if found {
		if len(attrs) == 0 {
			return existing.DocID, false, nil
		}
		patch := mergeAttributes(existing, attrs)
		if err := n.propositions.Update(ctx, existing.DocID, patch); err != nil {
			return 0, false, err
		}
		return existing.DocID, false, nil
	}

	fields := map[string]codec.Value{
		"subject_id": codec.U64Value(subjectID),
		"predicate":  codec.StringValue(predicate),
		"object_id":  codec.U64Value(objectID),
	}
	if attrs != nil {
		fields["attributes"] = codec.MapValue(attrs)
	}
	id, err := n.propositions.Insert(ctx, fields)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (n *Nexus) lookupProposition(ctx context.Context, subjectID uint64, predicate string, objectID uint64) (*codec.Document, bool, error) {
	subjBM, err := n.propositions.Equality(ctx, "subject_id", codec.U64Value(subjectID))
	if err != nil {
		return nil, false, err
	}
	predBM, err := n.propositions.Equality(ctx, "predicate", codec.StringValue(predicate))
	if err != nil {
		return nil, false, err
	}
	objBM, err := n.propositions.Equality(ctx, "object_id", codec.U64Value(objectID))
	if err != nil {
		return nil, false, err
	}
	ids := subjBM.And(predBM).And(objBM).ToSlice()
	if len(ids) == 0 {
		return nil, false, nil
	}
	doc, err := n.propositions.Get(ctx, ids[0])
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}
