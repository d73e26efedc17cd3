package kip

import (
	"context"
	"fmt"
	"sort"

	"github.com/andalabs/andadb/internal/errors"
)

// Result is the outcome of executing a non-dry-run statement.
type Result struct {
	Rows  []map[string]any
	Count int
}

// Execute validates, then (unless dryRun) runs stmt against store. A
// dry run returns only the Issue list — an empty list means the
// statement would execute cleanly. A non-empty Issue list on a live run
// aborts before any write happens.
func Execute(ctx context.Context, store GraphStore, stmt *Statement, dryRun bool) (*Result, []Issue, error) {
	issues := Validate(ctx, store, stmt)
	if dryRun {
		return nil, issues, nil
	}
	if len(issues) > 0 {
		return nil, issues, errors.New(errors.Validation, "statement failed validation")
	}

	switch {
	case stmt.Find != nil:
		rows, err := executeFind(ctx, store, stmt.Find)
		if err != nil {
			return nil, nil, err
		}
		return &Result{Rows: rows, Count: len(rows)}, nil, nil

	case stmt.Upsert != nil:
		count, err := executeUpsert(ctx, store, stmt.Upsert)
		if err != nil {
			return nil, nil, err
		}
		return &Result{Count: count}, nil, nil

	case stmt.DeleteConcept != nil:
		count, err := executeDeleteConcept(ctx, store, stmt.DeleteConcept)
		if err != nil {
			return nil, nil, err
		}
		return &Result{Count: count}, nil, nil

	case stmt.DeleteProposition != nil:
		count, err := executeDeleteProposition(ctx, store, stmt.DeleteProposition)
		if err != nil {
			return nil, nil, err
		}
		return &Result{Count: count}, nil, nil

	case stmt.Describe != nil:
		rows, err := executeDescribe(ctx, store, stmt.Describe)
		if err != nil {
			return nil, nil, err
		}
		return &Result{Rows: rows, Count: len(rows)}, nil, nil
	}

	return nil, nil, errors.Internalf("kip: statement has no recognized variant")
}

// bindings maps a pattern variable's name (without the leading "?") to
// its ascending-sorted candidate doc_id set.
type bindings map[string][]uint64

func (b bindings) narrow(name string, ids []uint64) {
	sorted := sortUint64(ids)
	if cur, ok := b[name]; ok {
		b[name] = intersectSorted(cur, sorted)
	} else {
		b[name] = sorted
	}
}

// bindPatterns evaluates a WHERE clause's conjunction of patterns left
// to right, narrowing each referenced variable's candidate set as it
// goes. Patterns run in the order written: there is no cost-based
// reordering and no cardinality estimate is consulted, so a triple
// pattern whose two sides are both variables needs one of them bound by
// an earlier pattern.
func bindPatterns(ctx context.Context, store GraphStore, patterns []*Pattern) (bindings, error) {
	b := bindings{}
	for _, p := range patterns {
		switch {
		case p.Concept != nil:
			ids, err := resolveConceptPattern(ctx, store, p.Concept)
			if err != nil {
				return nil, err
			}
			b.narrow(varName(p.Concept.Var), ids)
		case p.Triple != nil:
			if err := bindTriple(ctx, store, p.Triple, b); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

func resolveConceptPattern(ctx context.Context, store GraphStore, cp *ConceptPattern) ([]uint64, error) {
	fields, err := objectToFields(cp.Body)
	if err != nil {
		return nil, err
	}
	typVal, hasType := fields["type"]
	nameVal, hasName := fields["name"]
	switch {
	case hasType && hasName:
		typ, _ := typVal.AsString()
		name, _ := nameVal.AsString()
		doc, found, err := store.LookupConcept(ctx, typ, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return []uint64{doc.DocID}, nil
	case hasType:
		typ, _ := typVal.AsString()
		docs, err := store.ConceptsByType(ctx, typ)
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, len(docs))
		for i, d := range docs {
			ids[i] = d.DocID
		}
		return ids, nil
	default:
		return nil, errors.Validationf("kip: concept pattern ?%s requires at least a \"type\" field", cp.Var)
	}
}

// resolveFixedIDs returns the candidate set for a Term on the side of a
// triple pattern NOT being bound by this evaluation: either a concrete
// reference (one id) or an already-bound variable (its current
// candidate set).
func resolveFixedIDs(ctx context.Context, store GraphStore, t *Term, b bindings) ([]uint64, error) {
	if t.Var != nil {
		name := varName(*t.Var)
		ids, ok := b[name]
		if !ok {
			return nil, errors.Validationf("kip: variable ?%s is unbound", name)
		}
		return ids, nil
	}
	id, err := resolveConceptRef(ctx, store, t)
	if err != nil {
		return nil, err
	}
	return []uint64{id}, nil
}

func resolveConceptRef(ctx context.Context, store GraphStore, t *Term) (uint64, error) {
	switch {
	case t.Object != nil:
		typ, name, hasType, err := objectTypeName(t.Object)
		if err != nil {
			return 0, err
		}
		if hasType {
			doc, found, err := store.LookupConcept(ctx, typ, name)
			if err != nil {
				return 0, err
			}
			if !found {
				return 0, errors.NotFoundf("concept %s/%s not found", typ, name)
			}
			return doc.DocID, nil
		}
		doc, found, err := store.FindConceptByName(ctx, name)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, errors.NotFoundf("concept named %q not found", name)
		}
		return doc.DocID, nil
	case t.Str != nil:
		doc, found, err := store.FindConceptByName(ctx, *t.Str)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, errors.NotFoundf("concept named %q not found", *t.Str)
		}
		return doc.DocID, nil
	default:
		return 0, errors.Validationf("kip: empty term")
	}
}

// bindTriple follows one predicate edge, binding (or, if already bound,
// narrowing) whichever of Subject/Object is a variable while the other
// side is a concrete reference or a bound variable.
func bindTriple(ctx context.Context, store GraphStore, t *TriplePattern, b bindings) error {
	subjVar, subjIsVar := termVar(t.Subject)
	objVar, objIsVar := termVar(t.Object)

	_, subjBound := b[subjVar]
	_, objBound := b[objVar]

	switch {
	case subjIsVar && (!objIsVar || objBound):
		objIDs, err := resolveFixedIDs(ctx, store, t.Object, b)
		if err != nil {
			return err
		}
		set := map[uint64]struct{}{}
		for _, oid := range objIDs {
			docs, err := store.PropositionsByPredicateObject(ctx, t.Predicate, oid)
			if err != nil {
				return err
			}
			for _, d := range docs {
				if sid, ok := d.Fields["subject_id"].AsU64(); ok {
					set[sid] = struct{}{}
				}
			}
		}
		b.narrow(subjVar, setToSortedSlice(set))
		return nil

	case objIsVar && (!subjIsVar || subjBound):
		subjIDs, err := resolveFixedIDs(ctx, store, t.Subject, b)
		if err != nil {
			return err
		}
		set := map[uint64]struct{}{}
		for _, sid := range subjIDs {
			docs, err := store.PropositionsBySubjectPredicate(ctx, sid, t.Predicate)
			if err != nil {
				return err
			}
			for _, d := range docs {
				if oid, ok := d.Fields["object_id"].AsU64(); ok {
					set[oid] = struct{}{}
				}
			}
		}
		b.narrow(objVar, setToSortedSlice(set))
		return nil

	default:
		subjIDs, err := resolveFixedIDs(ctx, store, t.Subject, b)
		if err != nil {
			return err
		}
		objIDs, err := resolveFixedIDs(ctx, store, t.Object, b)
		if err != nil {
			return err
		}
		if len(subjIDs) != 1 || len(objIDs) != 1 {
			return errors.Validationf("kip: triple pattern (?,%q,?) has two unresolved sides; bind one via an earlier pattern", t.Predicate)
		}
		docs, err := store.PropositionsBySubjectPredicate(ctx, subjIDs[0], t.Predicate)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if oid, ok := d.Fields["object_id"].AsU64(); ok && oid == objIDs[0] {
				return nil
			}
		}
		return errors.NotFoundf("kip: proposition (%d,%q,%d) not found", subjIDs[0], t.Predicate, objIDs[0])
	}
}

func termVar(t *Term) (string, bool) {
	if t.Var == nil {
		return "", false
	}
	return varName(*t.Var), true
}

func executeFind(ctx context.Context, store GraphStore, f *FindStatement) ([]map[string]any, error) {
	b, err := bindPatterns(ctx, store, f.Where.Patterns)
	if err != nil {
		return nil, err
	}
	if len(f.Projections) == 0 {
		return nil, errors.Validationf("kip: FIND requires at least one projection")
	}
	driver := varName(f.Projections[0].Var)
	for _, p := range f.Projections[1:] {
		if varName(p.Var) != driver {
			return nil, errors.Validationf("kip: projections across multiple variables are not supported")
		}
	}
	ids, ok := b[driver]
	if !ok {
		return nil, errors.Validationf("kip: variable ?%s is never bound by WHERE", driver)
	}

	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		doc, err := store.GetConcept(ctx, id)
		if err != nil {
			continue
		}
		row := make(map[string]any, len(f.Projections))
		for _, p := range f.Projections {
			if p.Field != nil {
				v := doc.Fields[*p.Field]
				row["?"+driver+"."+*p.Field] = valueToAny(v)
			} else {
				row["?"+driver] = docToRow(doc)
			}
		}
		rows = append(rows, row)
	}

	if f.OrderBy != nil {
		col := "?" + varName(f.OrderBy.Var)
		if f.OrderBy.Field != nil {
			col = col + "." + *f.OrderBy.Field
		}
		sort.SliceStable(rows, func(i, j int) bool {
			a := fmt.Sprint(rows[i][col])
			c := fmt.Sprint(rows[j][col])
			if f.OrderBy.Desc {
				return a > c
			}
			return a < c
		})
	}

	if f.Offset != nil && *f.Offset > 0 {
		if *f.Offset >= len(rows) {
			return nil, nil
		}
		rows = rows[*f.Offset:]
	}
	if f.Limit != nil && *f.Limit > 0 && len(rows) > *f.Limit {
		rows = rows[:*f.Limit]
	}
	return rows, nil
}

func executeUpsert(ctx context.Context, store GraphStore, u *UpsertStatement) (int, error) {
	varIDs := make(map[string]uint64, len(u.Concepts))

	for _, uc := range u.Concepts {
		typ, name, hasType, err := objectTypeName(uc.Head)
		if err != nil {
			return 0, err
		}
		if !hasType {
			return 0, errors.Validationf("kip: CONCEPT %s head requires a \"type\" field", uc.Var)
		}
		attrs, err := objectToFields(uc.Attributes)
		if err != nil {
			return 0, err
		}
		id, _, err := store.UpsertConcept(ctx, typ, name, attrs)
		if err != nil {
			return 0, err
		}
		varIDs[varName(uc.Var)] = id
	}

	count := len(u.Concepts)
	for _, uc := range u.Concepts {
		subjID := varIDs[varName(uc.Var)]
		for _, ps := range uc.Propositions {
			objID, err := resolvePropositionTarget(ctx, store, ps.Target, varIDs)
			if err != nil {
				return count, err
			}
			if _, _, err := store.UpsertProposition(ctx, subjID, ps.Predicate, objID, nil); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func resolvePropositionTarget(ctx context.Context, store GraphStore, t *Term, varIDs map[string]uint64) (uint64, error) {
	if t.Var != nil {
		name := varName(*t.Var)
		id, ok := varIDs[name]
		if !ok {
			return 0, errors.Validationf("kip: proposition target ?%s is not a concept head in this capsule", name)
		}
		return id, nil
	}
	return resolveConceptRef(ctx, store, t)
}

func executeDeleteConcept(ctx context.Context, store GraphStore, d *DeleteConceptStatement) (int, error) {
	b, err := bindPatterns(ctx, store, d.Where.Patterns)
	if err != nil {
		return 0, err
	}
	ids, ok := b[varName(d.Var)]
	if !ok {
		return 0, errors.Validationf("kip: DELETE CONCEPT %s requires WHERE to bind it", d.Var)
	}

	count := 0
	for _, id := range ids {
		doc, err := store.GetConcept(ctx, id)
		if err != nil {
			continue
		}
		typ, _ := doc.Fields["type"].AsString()
		name, _ := doc.Fields["name"].AsString()
		if err := store.DeleteConcept(ctx, typ, name, d.Detach); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func executeDeleteProposition(ctx context.Context, store GraphStore, d *DeletePropositionStatement) (int, error) {
	b := bindings{}
	if d.Where != nil {
		bound, err := bindPatterns(ctx, store, d.Where.Patterns)
		if err != nil {
			return 0, err
		}
		b = bound
	}

	subjIDs, err := resolveFixedIDs(ctx, store, d.Triple.Subject, b)
	if err != nil {
		return 0, err
	}
	objIDs, err := resolveFixedIDs(ctx, store, d.Triple.Object, b)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, s := range subjIDs {
		for _, o := range objIDs {
			if err := store.DeleteProposition(ctx, s, d.Triple.Predicate, o); err != nil {
				if errors.IsKind(err, errors.NotFound) {
					continue
				}
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func executeDescribe(ctx context.Context, store GraphStore, d *DescribeStatement) ([]map[string]any, error) {
	switch {
	case d.Primer:
		p, err := store.Primer(ctx)
		if err != nil {
			return nil, err
		}
		return []map[string]any{p}, nil
	case d.ConceptTypes:
		types, err := store.DescribeConceptTypes(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(types))
		for i, t := range types {
			rows[i] = map[string]any{"type": t}
		}
		return rows, nil
	case d.PropositionTypes:
		types, err := store.DescribePropositionTypes(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(types))
		for i, t := range types {
			rows[i] = map[string]any{"type": t}
		}
		return rows, nil
	case d.ConceptTypeName != nil:
		info, err := store.DescribeConceptType(ctx, *d.ConceptTypeName)
		if err != nil {
			return nil, err
		}
		return []map[string]any{info}, nil
	default:
		return nil, errors.Validationf("kip: DESCRIBE has no recognized target")
	}
}
