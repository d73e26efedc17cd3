package btree

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andalabs/andadb/pkg/codec"
)

func TestEncodeKey_PreservesIntegerOrder(t *testing.T) {
	values := []int64{-100, -1, 0, 1, 42, 1000}
	keys := make([][]byte, len(values))
	for i, v := range values {
		k, err := EncodeKey(codec.I64Value(v))
		require.NoError(t, err)
		keys[i] = k
	}
	require.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 }))
}

func TestEncodeKey_PreservesFloatOrder(t *testing.T) {
	values := []float64{-3.5, -1.0, 0.0, 0.5, 2.75, 100}
	keys := make([][]byte, len(values))
	for i, v := range values {
		k, err := EncodeKey(codec.F64Value(v))
		require.NoError(t, err)
		keys[i] = k
	}
	require.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 }))
}

func TestEncodeKey_PreservesStringOrder(t *testing.T) {
	values := []string{"alice", "bob", "carol", "zach"}
	keys := make([][]byte, len(values))
	for i, v := range values {
		k, err := EncodeKey(codec.StringValue(v))
		require.NoError(t, err)
		keys[i] = k
	}
	require.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 }))
}

func TestEncodeKey_DifferentKindsNeverCollide(t *testing.T) {
	strKey, err := EncodeKey(codec.StringValue("1"))
	require.NoError(t, err)
	intKey, err := EncodeKey(codec.I64Value(1))
	require.NoError(t, err)
	require.NotEqual(t, strKey, intKey)
}

func TestEncodeKey_RejectsNonScalarKinds(t *testing.T) {
	_, err := EncodeKey(codec.VectorValue([]float32{1, 2}))
	require.Error(t, err)

	_, err = EncodeKey(codec.ArrayValue([]codec.Value{codec.I64Value(1)}))
	require.Error(t, err)
}

func TestPrefixUpperBound_IncrementsLastByte(t *testing.T) {
	got := PrefixUpperBound([]byte("abc"))
	require.Equal(t, []byte("abd"), got)
}

func TestPrefixUpperBound_UnboundedWhenAllOxFF(t *testing.T) {
	got := PrefixUpperBound([]byte{0xff, 0xff})
	require.Nil(t, got)
}
