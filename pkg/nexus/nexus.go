// Package nexus implements the Cognitive Nexus (spec.md §4.6): the
// executor sitting on top of two collections (concepts, propositions)
// that gives pkg/kip's parsed statements their graph semantics —
// (type,name)/(subject,predicate,object) merge-on-upsert, DETACH
// cascades, meta-schema genesis bootstrapping, and the advisory (never
// rejecting) instance_schema check spec.md §9 resolves in favor of a
// warning. Grounded on the teacher's pkg/mcp tool-dispatch layer (one
// struct wrapping the storage layer and exposing a small, named set of
// operations a protocol front end calls into) and internal/daemon's
// RequestHandler contract, which Handler (handler.go) implements over a
// Nexus.
package nexus

import (
	"context"
	"log/slog"
	"time"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/internal/session"
	"github.com/andalabs/andadb/internal/telemetry"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/collection"
	"github.com/andalabs/andadb/pkg/hnsw"
	"github.com/andalabs/andadb/pkg/osa"
)

const (
	conceptTypeSigil    = "$ConceptType"
	propositionTypeSigil = "$PropositionType"
	domainType           = "Domain"
	belongsToDomain       = "belongs_to_domain"
	coreSchemaDomain      = "CoreSchema"
)

// Config configures a Nexus's underlying concepts/propositions
// collections.
type Config struct {
	Store    osa.Store
	Sessions *session.Manager

	// EmbeddingDim configures the HNSW index attached to concepts'
	// "embedding" field, when concepts carry vector embeddings for
	// semantic recall. 0 disables vector indexing.
	EmbeddingDim int

	// Estimator, when set, records the candidate-set size bindPatterns
	// sees for every type/predicate probe, feeding spec.md §4.5's
	// planner note with real cardinalities. Nil disables tracking.
	Estimator *telemetry.CardinalityEstimator
}

// Nexus is the knowledge-graph engine: one concepts collection, one
// propositions collection, and the genesis/merge/detach semantics tying
// them together.
type Nexus struct {
	concepts     *collection.Collection
	propositions *collection.Collection
	sessions     *session.Manager
	estimator    *telemetry.CardinalityEstimator
}

// Open opens (creating if absent) the concepts and propositions
// collections and runs the genesis bootstrap if the graph is empty.
func Open(ctx context.Context, cfg Config) (*Nexus, error) {
	conceptSchema := codec.Schema{Fields: []codec.FieldSchema{
		{Name: "type", Kind: codec.KindString, Index: codec.IndexBTree},
		{Name: "name", Kind: codec.KindString, Index: codec.IndexBTree},
		{Name: "attributes", Kind: codec.KindMap},
		{Name: "instance_schema", Kind: codec.KindMap},
	}}
	conceptVec := map[string]collection.VectorFieldConfig{}
	conceptText := map[string]collection.TextFieldConfig{
		"name": {},
	}
	if cfg.EmbeddingDim > 0 {
		conceptSchema.Fields = append(conceptSchema.Fields, codec.FieldSchema{
			Name: "embedding", Kind: codec.KindVector, Index: codec.IndexVector, Dim: cfg.EmbeddingDim,
		})
		conceptVec["embedding"] = collection.VectorFieldConfig{
			Dim: cfg.EmbeddingDim, Metric: hnsw.MetricCosine, M: 16, EfConstruction: 200,
		}
	}

	concepts, err := collection.Open(ctx, collection.Config{
		Name: "concepts", Store: cfg.Store, Schema: conceptSchema,
		VectorCfg: conceptVec, TextCfg: conceptText, Sessions: cfg.Sessions,
	})
	if err != nil {
		return nil, err
	}

	propositionSchema := codec.Schema{Fields: []codec.FieldSchema{
		{Name: "subject_id", Kind: codec.KindU64, Index: codec.IndexBTree},
		{Name: "predicate", Kind: codec.KindString, Index: codec.IndexBTree},
		{Name: "object_id", Kind: codec.KindU64, Index: codec.IndexBTree},
		{Name: "attributes", Kind: codec.KindMap},
		{Name: "metadata", Kind: codec.KindMap},
	}}
	propositions, err := collection.Open(ctx, collection.Config{
		Name: "propositions", Store: cfg.Store, Schema: propositionSchema, Sessions: cfg.Sessions,
	})
	if err != nil {
		return nil, err
	}

	n := &Nexus{concepts: concepts, propositions: propositions, sessions: cfg.Sessions, estimator: cfg.Estimator}
	if err := n.ensureGenesis(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// mergeAttributes folds capsule-supplied attrs into an existing
// document's "attributes" map (new keys added, existing keys
// overwritten), returning the patch Update needs.
func mergeAttributes(existing *codec.Document, attrs map[string]codec.Value) map[string]codec.Value {
	merged := map[string]codec.Value{}
	if existing != nil {
		if m, ok := existing.Fields["attributes"].AsMap(); ok {
			for k, v := range m {
				merged[k] = v
			}
		}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return map[string]codec.Value{"attributes": codec.MapValue(merged)}
}

// LookupConcept finds the concept with the given (type, name) key.
func (n *Nexus) LookupConcept(ctx context.Context, typ, name string) (*codec.Document, bool, error) {
	typeBM, err := n.concepts.Equality(ctx, "type", codec.StringValue(typ))
	if err != nil {
		return nil, false, err
	}
	nameBM, err := n.concepts.Equality(ctx, "name", codec.StringValue(name))
	if err != nil {
		return nil, false, err
	}
	ids := typeBM.And(nameBM).ToSlice()
	if len(ids) == 0 {
		return nil, false, nil
	}
	doc, err := n.concepts.Get(ctx, ids[0])
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// FindConceptByName finds a concept by name alone. Used to resolve a
// proposition target that didn't disambiguate by type; returns the
// first match if more than one concept shares the name.
func (n *Nexus) FindConceptByName(ctx context.Context, name string) (*codec.Document, bool, error) {
	nameBM, err := n.concepts.Equality(ctx, "name", codec.StringValue(name))
	if err != nil {
		return nil, false, err
	}
	ids := nameBM.ToSlice()
	if len(ids) == 0 {
		return nil, false, nil
	}
	doc, err := n.concepts.Get(ctx, ids[0])
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// ConceptsByType returns every concept of the given type, ordered by
// ascending doc_id (insertion order).
func (n *Nexus) ConceptsByType(ctx context.Context, typ string) ([]*codec.Document, error) {
	bm, err := n.concepts.Equality(ctx, "type", codec.StringValue(typ))
	if err != nil {
		return nil, err
	}
	ids := bm.ToSlice()
	n.recordCardinality(telemetry.ConceptTypeKey(typ), len(ids))
	out := make([]*codec.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := n.concepts.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// Estimator returns the cardinality estimator this Nexus records
// through, or nil if none was configured.
func (n *Nexus) Estimator() *telemetry.CardinalityEstimator {
	return n.estimator
}

func (n *Nexus) recordCardinality(key telemetry.PatternKey, cardinality int) {
	if n.estimator == nil {
		return
	}
	n.estimator.Record(telemetry.Observation{
		Key:         key,
		Cardinality: cardinality,
		Timestamp:   time.Now(),
	})
}

// GetConcept fetches a concept document by doc_id.
func (n *Nexus) GetConcept(ctx context.Context, id uint64) (*codec.Document, error) {
	return n.concepts.Get(ctx, id)
}

// ConceptTypeExists reports whether typ has been declared (a concept of
// type "$ConceptType" named typ exists).
func (n *Nexus) ConceptTypeExists(ctx context.Context, typ string) (bool, error) {
	_, found, err := n.LookupConcept(ctx, conceptTypeSigil, typ)
	return found, err
}

// PropositionsBySubjectPredicate returns every proposition with the
// given subject and predicate.
func (n *Nexus) PropositionsBySubjectPredicate(ctx context.Context, subjectID uint64, predicate string) ([]*codec.Document, error) {
	return n.propositionsMatching(ctx, "subject_id", codec.U64Value(subjectID), predicate)
}

// PropositionsByPredicateObject returns every proposition with the
// given predicate and object.
func (n *Nexus) PropositionsByPredicateObject(ctx context.Context, predicate string, objectID uint64) ([]*codec.Document, error) {
	return n.propositionsMatching(ctx, "object_id", codec.U64Value(objectID), predicate)
}

func (n *Nexus) propositionsMatching(ctx context.Context, idField string, idVal codec.Value, predicate string) ([]*codec.Document, error) {
	idBM, err := n.propositions.Equality(ctx, idField, idVal)
	if err != nil {
		return nil, err
	}
	predBM, err := n.propositions.Equality(ctx, "predicate", codec.StringValue(predicate))
	if err != nil {
		return nil, err
	}
	ids := idBM.And(predBM).ToSlice()
	n.recordCardinality(telemetry.PredicateKey(predicate), len(ids))
	out := make([]*codec.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := n.propositions.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// PropositionsMentioning returns every proposition with conceptID as
// subject or object; used by DeleteConcept's DETACH cascade.
func (n *Nexus) PropositionsMentioning(ctx context.Context, conceptID uint64) ([]*codec.Document, error) {
	subjBM, err := n.propositions.Equality(ctx, "subject_id", codec.U64Value(conceptID))
	if err != nil {
		return nil, err
	}
	objBM, err := n.propositions.Equality(ctx, "object_id", codec.U64Value(conceptID))
	if err != nil {
		return nil, err
	}
	ids := subjBM.Or(objBM).ToSlice()
	out := make([]*codec.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := n.propositions.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// checkInstanceSchema logs (never rejects) when attrs is missing an
// attribute the concept's declared type marks required, per spec.md §9:
// "implementers should surface a warning but not a hard failure."
func (n *Nexus) checkInstanceSchema(ctx context.Context, typ string, attrs map[string]codec.Value) {
	typeDoc, found, err := n.LookupConcept(ctx, conceptTypeSigil, typ)
	if err != nil || !found {
		return
	}
	schema, ok := typeDoc.Fields["instance_schema"].AsMap()
	if !ok {
		return
	}
	required, ok := schema["required_attributes"]
	if !ok {
		return
	}
	for _, reqName := range required.Array {
		name, _ := reqName.AsString()
		if name == "" {
			continue
		}
		if _, present := attrs[name]; !present {
			slog.Warn("instance_schema: required attribute missing",
				slog.String("type", typ), slog.String("attribute", name))
		}
	}
}

