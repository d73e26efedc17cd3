package nexus

import (
	"context"
	"fmt"

	"github.com/andalabs/andadb/internal/errors"
)

// DeleteConcept removes the concept matching (typ, name). With detach,
// every proposition mentioning it is removed first; without detach,
// deletion fails if any proposition still references it (spec.md §4.6:
// "DELETE CONCEPT ... DETACH first removes all propositions mentioning
// the concept, then removes the concept itself; without DETACH,
// deletion fails if any proposition references the concept").
func (n *Nexus) DeleteConcept(ctx context.Context, typ, name string, detach bool) error {
	doc, found, err := n.LookupConcept(ctx, typ, name)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFoundf("nexus: concept %s/%s not found", typ, name)
	}

	mentioning, err := n.PropositionsMentioning(ctx, doc.DocID)
	if err != nil {
		return err
	}
	if len(mentioning) > 0 && !detach {
		return errors.New(errors.Conflict,
			fmt.Sprintf("nexus: concept %s/%s is referenced by %d proposition(s); use DETACH", typ, name, len(mentioning)))
	}

	for _, p := range mentioning {
		if err := n.propositions.Remove(ctx, p.DocID); err != nil {
			return err
		}
	}
	return n.concepts.Remove(ctx, doc.DocID)
}

// DeleteProposition removes the proposition matching
// (subjectID, predicate, objectID).
func (n *Nexus) DeleteProposition(ctx context.Context, subjectID uint64, predicate string, objectID uint64) error {
	doc, found, err := n.lookupProposition(ctx, subjectID, predicate, objectID)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFoundf("nexus: proposition (%d,%q,%d) not found", subjectID, predicate, objectID)
	}
	return n.propositions.Remove(ctx, doc.DocID)
}
