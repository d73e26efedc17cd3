package nexus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/kip"
	"github.com/andalabs/andadb/pkg/osa"
)

func openTestNexus(t *testing.T) *Nexus {
	t.Helper()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	n, err := Open(context.Background(), Config{Store: store})
	require.NoError(t, err)
	return n
}

func TestGenesisBootstrap(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	docs, err := n.ConceptsByType(ctx, "$ConceptType")
	require.NoError(t, err)
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i], _ = d.Fields["name"].AsString()
	}
	require.ElementsMatch(t, []string{"$ConceptType", "$PropositionType", "Domain"}, names)

	_, found, err := n.LookupConcept(ctx, "Domain", "CoreSchema")
	require.NoError(t, err)
	require.True(t, found)

	for _, name := range []string{"$ConceptType", "$PropositionType", "Domain"} {
		doc, found, err := n.LookupConcept(ctx, "$ConceptType", name)
		require.NoError(t, err)
		require.True(t, found)
		props, err := n.PropositionsBySubjectPredicate(ctx, doc.DocID, "belongs_to_domain")
		require.NoError(t, err)
		require.Len(t, props, 1)
	}
}

func TestGenesisIsIdempotentAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store1, err := osa.NewLocalStore(dir)
	require.NoError(t, err)
	_, err = Open(ctx, Config{Store: store1})
	require.NoError(t, err)

	store2, err := osa.NewLocalStore(dir)
	require.NoError(t, err)
	n2, err := Open(ctx, Config{Store: store2})
	require.NoError(t, err)

	docs, err := n2.ConceptsByType(ctx, "$ConceptType")
	require.NoError(t, err)
	require.Len(t, docs, 3)
}

func TestUpsertConceptIdempotent(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	_, _, err := n.UpsertConcept(ctx, "$ConceptType", "Person", nil)
	require.NoError(t, err)
	id1, created1, err := n.UpsertConcept(ctx, "$ConceptType", "Person", nil)
	require.NoError(t, err)
	require.False(t, created1)

	docs, err := n.ConceptsByType(ctx, "$ConceptType")
	require.NoError(t, err)
	count := 0
	for _, d := range docs {
		if name, _ := d.Fields["name"].AsString(); name == "Person" {
			count++
			require.Equal(t, id1, d.DocID)
		}
	}
	require.Equal(t, 1, count)
}

func TestUpsertConceptMergesAttributes(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	id, _, err := n.UpsertConcept(ctx, "$ConceptType", "Drug", map[string]codec.Value{
		"potency": codec.F64Value(100),
	})
	require.NoError(t, err)

	_, _, err = n.UpsertConcept(ctx, "$ConceptType", "Drug", map[string]codec.Value{
		"schedule": codec.StringValue("OTC"),
	})
	require.NoError(t, err)

	doc, err := n.GetConcept(ctx, id)
	require.NoError(t, err)
	attrs, ok := doc.Fields["attributes"].AsMap()
	require.True(t, ok)
	require.Contains(t, attrs, "potency")
	require.Contains(t, attrs, "schedule")
}

func TestTreatsQueryViaKIP(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	_, _, err := n.UpsertConcept(ctx, "$ConceptType", "Drug", nil)
	require.NoError(t, err)
	_, _, err = n.UpsertConcept(ctx, "$ConceptType", "Symptom", nil)
	require.NoError(t, err)
	_, _, err = n.UpsertConcept(ctx, "$PropositionType", "treats", nil)
	require.NoError(t, err)

	headacheID, _, err := n.UpsertConcept(ctx, "Symptom", "Headache", nil)
	require.NoError(t, err)
	aspirinID, _, err := n.UpsertConcept(ctx, "Drug", "Aspirin", nil)
	require.NoError(t, err)
	ibuprofenID, _, err := n.UpsertConcept(ctx, "Drug", "Ibuprofen", nil)
	require.NoError(t, err)

	_, _, err = n.UpsertProposition(ctx, aspirinID, "treats", headacheID, nil)
	require.NoError(t, err)
	_, _, err = n.UpsertProposition(ctx, ibuprofenID, "treats", headacheID, nil)
	require.NoError(t, err)

	stmt, err := kip.Parse(`FIND(?drug.name) WHERE { ?drug {type:"Drug"} (?drug,"treats",{name:"Headache"}) } LIMIT 10`)
	require.NoError(t, err)

	result, issues, err := kip.Execute(ctx, n, stmt, false)
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, result.Rows, 2)

	var got []string
	for _, r := range result.Rows {
		got = append(got, r["?drug.name"].(string))
	}
	require.Equal(t, []string{"Aspirin", "Ibuprofen"}, got)
}

func TestDeleteConceptWithoutDetachFailsWhenReferenced(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	headacheID, _, err := n.UpsertConcept(ctx, "Symptom", "Headache", nil)
	require.NoError(t, err)
	aspirinID, _, err := n.UpsertConcept(ctx, "Drug", "Aspirin", nil)
	require.NoError(t, err)
	_, _, err = n.UpsertProposition(ctx, aspirinID, "treats", headacheID, nil)
	require.NoError(t, err)

	err = n.DeleteConcept(ctx, "Symptom", "Headache", false)
	require.Error(t, err)

	require.NoError(t, n.DeleteConcept(ctx, "Symptom", "Headache", true))

	_, found, err := n.LookupConcept(ctx, "Symptom", "Headache")
	require.NoError(t, err)
	require.False(t, found)

	props, err := n.PropositionsBySubjectPredicate(ctx, aspirinID, "treats")
	require.NoError(t, err)
	require.Empty(t, props)
}

func TestDryRunRejectsUnknownConceptType(t *testing.T) {
	n := openTestNexus(t)
	ctx := context.Background()

	stmt, err := kip.Parse(`FIND(?x) WHERE { ?x {type:"Ghost"} }`)
	require.NoError(t, err)

	result, issues, err := kip.Execute(ctx, n, stmt, true)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Len(t, issues, 1)
	require.Equal(t, "Validation", issues[0].Kind)
}

func TestCancelledUpsertLeavesCountUnchanged(t *testing.T) {
	n := openTestNexus(t)
	before, err := n.ConceptsByType(context.Background(), "$ConceptType")
	require.NoError(t, err)
	beforeCount := len(before)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = n.UpsertConcept(ctx, "$ConceptType", "Aborted", nil)
	require.Error(t, err)

	after, err := n.ConceptsByType(context.Background(), "$ConceptType")
	require.NoError(t, err)
	require.Equal(t, beforeCount, len(after))
}
