package kip

import (
	"context"
	"fmt"

	"github.com/andalabs/andadb/internal/errors"
)

// Issue is one dry-run or planning problem found in a statement before
// execution, kept independent of internal/daemon's wire shape so this
// package never imports it (internal/daemon depends on pkg/nexus which
// depends on pkg/kip, not the other way around).
type Issue struct {
	Kind    string
	Path    string
	Message string
}

// Validate checks stmt against store without mutating anything:
// referenced concept types must already be declared. Variable bindings
// are not checked here; an unbound projected or proposition-target
// variable fails at execution instead. It never rejects on incomplete
// instance_schema attributes — that is advisory only (spec.md §9 open
// question) and is logged by pkg/nexus, not reported here.
func Validate(ctx context.Context, store GraphStore, stmt *Statement) []Issue {
	switch {
	case stmt.Find != nil:
		return validatePatterns(ctx, store, stmt.Find.Where.Patterns)
	case stmt.Upsert != nil:
		return validateUpsert(ctx, store, stmt.Upsert)
	case stmt.DeleteConcept != nil:
		return validatePatterns(ctx, store, stmt.DeleteConcept.Where.Patterns)
	case stmt.DeleteProposition != nil:
		if stmt.DeleteProposition.Where != nil {
			return validatePatterns(ctx, store, stmt.DeleteProposition.Where.Patterns)
		}
	}
	return nil
}

func validatePatterns(ctx context.Context, store GraphStore, patterns []*Pattern) []Issue {
	var issues []Issue
	for _, p := range patterns {
		if p.Concept == nil {
			continue
		}
		fields, err := objectToFields(p.Concept.Body)
		if err != nil {
			issues = append(issues, Issue{Kind: string(errors.Parse), Path: "?" + varName(p.Concept.Var), Message: err.Error()})
			continue
		}
		typ, ok := fields["type"]
		if !ok {
			continue
		}
		typName, _ := typ.AsString()
		exists, err := store.ConceptTypeExists(ctx, typName)
		if err != nil {
			issues = append(issues, Issue{Kind: string(errors.Internal), Path: "?" + varName(p.Concept.Var) + ".type", Message: err.Error()})
			continue
		}
		if !exists {
			issues = append(issues, Issue{
				Kind:    string(errors.Validation),
				Path:    "?" + varName(p.Concept.Var) + ".type",
				Message: fmt.Sprintf("concept type %q is not declared", typName),
			})
		}
	}
	return issues
}

func validateUpsert(ctx context.Context, store GraphStore, u *UpsertStatement) []Issue {
	var issues []Issue
	for _, uc := range u.Concepts {
		typ, _, hasType, err := objectTypeName(uc.Head)
		if err != nil {
			issues = append(issues, Issue{Kind: string(errors.Validation), Path: "CONCEPT " + uc.Var, Message: err.Error()})
			continue
		}
		if !hasType {
			issues = append(issues, Issue{Kind: string(errors.Validation), Path: "CONCEPT " + uc.Var, Message: "concept head requires a \"type\" field"})
			continue
		}
		// The bootstrap capsule declares its own types as it goes (a
		// concept may legitimately be of type "$ConceptType" before any
		// other concept of that type exists), so only reject a type
		// reference that resolves to neither a known type nor the
		// meta-type sigil itself.
		if typ == "$ConceptType" {
			continue
		}
		exists, err := store.ConceptTypeExists(ctx, typ)
		if err != nil {
			issues = append(issues, Issue{Kind: string(errors.Internal), Path: "CONCEPT " + uc.Var + ".type", Message: err.Error()})
			continue
		}
		if !exists {
			issues = append(issues, Issue{
				Kind:    string(errors.Validation),
				Path:    "CONCEPT " + uc.Var + ".type",
				Message: fmt.Sprintf("concept type %q is not declared", typ),
			})
		}
	}
	return issues
}
