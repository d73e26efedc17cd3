package nexus

import "context"

// ensureGenesis bootstraps the meta-schema capsule the first time a
// graph is opened (spec.md §4.6): `$ConceptType` (self-typed, since the
// type system has to describe itself before anything else can),
// `$PropositionType`, `Domain`, `belongs_to_domain`, and
// `Domain("CoreSchema")`, then binds the first four to CoreSchema via
// belongs_to_domain. A no-op on every subsequent open once
// `$ConceptType` already exists.
func (n *Nexus) ensureGenesis(ctx context.Context) error {
	_, found, err := n.LookupConcept(ctx, conceptTypeSigil, conceptTypeSigil)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	conceptTypeID, _, err := n.UpsertConcept(ctx, conceptTypeSigil, conceptTypeSigil, nil)
	if err != nil {
		return err
	}
	propositionTypeID, _, err := n.UpsertConcept(ctx, conceptTypeSigil, propositionTypeSigil, nil)
	if err != nil {
		return err
	}
	domainTypeID, _, err := n.UpsertConcept(ctx, conceptTypeSigil, domainType, nil)
	if err != nil {
		return err
	}
	belongsToDomainID, _, err := n.UpsertConcept(ctx, propositionTypeSigil, belongsToDomain, nil)
	if err != nil {
		return err
	}
	coreSchemaID, _, err := n.UpsertConcept(ctx, domainType, coreSchemaDomain, nil)
	if err != nil {
		return err
	}

	for _, id := range []uint64{conceptTypeID, propositionTypeID, domainTypeID, belongsToDomainID} {
		if _, _, err := n.UpsertProposition(ctx, id, belongsToDomain, coreSchemaID, nil); err != nil {
			return err
		}
	}
	return nil
}
