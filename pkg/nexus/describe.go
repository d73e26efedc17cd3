package nexus

import "context"

// DescribeConceptTypes lists every declared concept type name (every
// concept of type "$ConceptType").
func (n *Nexus) DescribeConceptTypes(ctx context.Context) ([]string, error) {
	docs, err := n.ConceptsByType(ctx, conceptTypeSigil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if name, ok := d.Fields["name"].AsString(); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// DescribePropositionTypes lists every declared proposition type name
// (every concept of type "$PropositionType").
func (n *Nexus) DescribePropositionTypes(ctx context.Context) ([]string, error) {
	docs, err := n.ConceptsByType(ctx, propositionTypeSigil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if name, ok := d.Fields["name"].AsString(); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// DescribeConceptType returns introspection detail for one declared
// concept type: its doc_id, attributes, and instance_schema (if any).
func (n *Nexus) DescribeConceptType(ctx context.Context, name string) (map[string]any, error) {
	doc, found, err := n.LookupConcept(ctx, conceptTypeSigil, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{"name": name, "declared": false}, nil
	}
	out := map[string]any{"name": name, "declared": true, "doc_id": doc.DocID}
	if attrs, ok := doc.Fields["attributes"].AsMap(); ok {
		out["attributes"] = attrs
	}
	if schema, ok := doc.Fields["instance_schema"].AsMap(); ok {
		out["instance_schema"] = schema
	}
	return out, nil
}

// Primer returns a small orientation summary for an agent opening the
// graph cold: how many concept types and proposition types are
// declared, and the collections' current version pointers.
func (n *Nexus) Primer(ctx context.Context) (map[string]any, error) {
	conceptTypes, err := n.DescribeConceptTypes(ctx)
	if err != nil {
		return nil, err
	}
	propositionTypes, err := n.DescribePropositionTypes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"concept_type_count":     len(conceptTypes),
		"concept_types":          conceptTypes,
		"proposition_type_count": len(propositionTypes),
		"proposition_types":      propositionTypes,
		"concepts_version":       n.concepts.Version(),
		"propositions_version":   n.propositions.Version(),
	}, nil
}
