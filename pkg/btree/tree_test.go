package btree

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andalabs/andadb/pkg/osa"
)

func keyOf(i int) []byte {
	return []byte(fmt.Sprintf("k-%04d", i))
}

// TestTree_InsertTriggersSplitAndPreservesAllEntries inserts enough keys
// to force at least one leaf split (maxKeys is small here) and checks
// every doc_id remains reachable via Equality afterward.
func TestTree_InsertTriggersSplitAndPreservesAllEntries(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("age", store, 4)
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(ctx, keyOf(i), uint64(i)))
	}

	for i := 0; i < n; i++ {
		bm, err := tree.Equality(ctx, keyOf(i))
		require.NoError(t, err)
		require.True(t, bm.Contains(uint64(i)), "missing doc_id %d after split", i)
		require.Equal(t, uint64(1), bm.Cardinality())
	}
}

func TestTree_EqualityReturnsEmptyForUnknownKey(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("age", store, DefaultMaxKeys)
	require.NoError(t, tree.Insert(ctx, keyOf(1), 1))

	bm, err := tree.Equality(ctx, keyOf(99))
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}

// TestTree_RangeQueryAcrossSplitLeaves checks that a range scan spanning
// multiple leaves (after splitting) returns exactly the doc_ids whose
// keys fall within the bounds, respecting inclusive/exclusive edges.
func TestTree_RangeQueryAcrossSplitLeaves(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("score", store, 4)
	const n = 40
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(ctx, keyOf(i), uint64(i)))
	}

	bm, err := tree.Range(ctx, keyOf(10), keyOf(20), true, true)
	require.NoError(t, err)
	require.Equal(t, uint64(11), bm.Cardinality())
	for i := 10; i <= 20; i++ {
		require.True(t, bm.Contains(uint64(i)))
	}

	bm, err = tree.Range(ctx, keyOf(10), keyOf(20), false, false)
	require.NoError(t, err)
	require.Equal(t, uint64(9), bm.Cardinality())
	require.False(t, bm.Contains(uint64(10)))
	require.False(t, bm.Contains(uint64(20)))

	bm, err = tree.Range(ctx, nil, keyOf(5), true, true)
	require.NoError(t, err)
	require.Equal(t, uint64(6), bm.Cardinality())

	bm, err = tree.Range(ctx, keyOf(n-5), nil, true, true)
	require.NoError(t, err)
	require.Equal(t, uint64(5), bm.Cardinality())
}

func TestTree_PrefixMatchesOnlyMatchingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("name", store, DefaultMaxKeys)
	require.NoError(t, tree.Insert(ctx, []byte("alice"), 1))
	require.NoError(t, tree.Insert(ctx, []byte("alicia"), 2))
	require.NoError(t, tree.Insert(ctx, []byte("bob"), 3))

	bm, err := tree.Prefix(ctx, []byte("ali"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), bm.Cardinality())
	require.True(t, bm.Contains(1))
	require.True(t, bm.Contains(2))
	require.False(t, bm.Contains(3))
}

func TestTree_RemoveDropsDocIDAndEmptiesKeyOnLastRemoval(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("type", store, DefaultMaxKeys)
	require.NoError(t, tree.Insert(ctx, []byte("Person"), 1))
	require.NoError(t, tree.Insert(ctx, []byte("Person"), 2))

	require.NoError(t, tree.Remove(ctx, []byte("Person"), 1))
	bm, err := tree.Equality(ctx, []byte("Person"))
	require.NoError(t, err)
	require.False(t, bm.Contains(1))
	require.True(t, bm.Contains(2))

	require.NoError(t, tree.Remove(ctx, []byte("Person"), 2))
	bm, err = tree.Equality(ctx, []byte("Person"))
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}

func TestTree_RemoveUnknownKeyFails(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("type", store, DefaultMaxKeys)
	err = tree.Remove(ctx, []byte("nope"), 1)
	require.Error(t, err)
}

// TestTree_LoadTreeReopensAcrossSplits writes a tree with enough entries
// to split several times, checkpoints it, then reopens a fresh Tree
// against the same store and checks every entry survives (spec.md §6
// root-pointer/WAL persistence contract).
func TestTree_LoadTreeReopensAcrossSplits(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree := NewTree("age", store, 4)
	const n = 30
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(ctx, keyOf(i), uint64(i)))
	}

	reopened, err := LoadTree(ctx, "age", store, 4)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		bm, err := reopened.Equality(ctx, keyOf(i))
		require.NoError(t, err)
		require.True(t, bm.Contains(uint64(i)))
	}
}

func TestLoadTree_EmptyStoreHasNoRoot(t *testing.T) {
	ctx := context.Background()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tree, err := LoadTree(ctx, "age", store, DefaultMaxKeys)
	require.NoError(t, err)

	bm, err := tree.Equality(ctx, keyOf(1))
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}
