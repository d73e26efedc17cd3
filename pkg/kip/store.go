package kip

import (
	"context"

	"github.com/andalabs/andadb/pkg/codec"
)

// GraphStore is the semantic surface the KIP executor dispatches
// against. pkg/nexus implements it; the grammar/planner package never
// imports pkg/nexus directly so the dependency only runs one way.
type GraphStore interface {
	// LookupConcept finds the concept with the given (type, name) key.
	LookupConcept(ctx context.Context, typ, name string) (*codec.Document, bool, error)
	// FindConceptByName finds a concept by name alone, across all
	// types. Used to resolve a bare name reference inside a proposition
	// target when the caller didn't disambiguate by type.
	FindConceptByName(ctx context.Context, name string) (*codec.Document, bool, error)
	// ConceptsByType returns every concept of the given type.
	ConceptsByType(ctx context.Context, typ string) ([]*codec.Document, error)
	// GetConcept fetches a concept document by doc_id.
	GetConcept(ctx context.Context, id uint64) (*codec.Document, error)
	// ConceptTypeExists reports whether typ has been declared as a
	// concept type (a concept of type "$ConceptType" named typ exists).
	ConceptTypeExists(ctx context.Context, typ string) (bool, error)

	// PropositionsBySubjectPredicate returns every proposition with the
	// given subject and predicate.
	PropositionsBySubjectPredicate(ctx context.Context, subjectID uint64, predicate string) ([]*codec.Document, error)
	// PropositionsByPredicateObject returns every proposition with the
	// given predicate and object.
	PropositionsByPredicateObject(ctx context.Context, predicate string, objectID uint64) ([]*codec.Document, error)

	// UpsertConcept merges attrs into the existing concept matching
	// (typ, name), or creates one. Returns its doc_id and whether it
	// was newly created.
	UpsertConcept(ctx context.Context, typ, name string, attrs map[string]codec.Value) (id uint64, created bool, err error)
	// UpsertProposition merges attrs into the existing proposition
	// matching (subjectID, predicate, objectID), or creates one.
	UpsertProposition(ctx context.Context, subjectID uint64, predicate string, objectID uint64, attrs map[string]codec.Value) (id uint64, created bool, err error)
	// DeleteConcept removes the concept matching (typ, name). detach
	// cascades to every proposition mentioning it; without detach,
	// deletion fails if any proposition references it.
	DeleteConcept(ctx context.Context, typ, name string, detach bool) error
	// DeleteProposition removes the proposition matching
	// (subjectID, predicate, objectID).
	DeleteProposition(ctx context.Context, subjectID uint64, predicate string, objectID uint64) error

	// DescribeConceptTypes lists every declared concept type name.
	DescribeConceptTypes(ctx context.Context) ([]string, error)
	// DescribePropositionTypes lists every declared proposition type name.
	DescribePropositionTypes(ctx context.Context) ([]string, error)
	// DescribeConceptType returns introspection detail for one concept type.
	DescribeConceptType(ctx context.Context, name string) (map[string]any, error)
	// Primer returns a small orientation summary for an agent opening
	// the graph cold (concept and proposition type counts and names,
	// and the collections' version pointers).
	Primer(ctx context.Context) (map[string]any, error)
}
