package osa

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andalabs/andadb/internal/errors"
)

// TS01: Put then Get round-trips bytes.
func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "coll/foo/docs/1.cbor.zst", []byte("hello")))

	data, err := store.Get(ctx, "coll/foo/docs/1.cbor.zst")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

// TS02: Get of a missing path returns NotFound.
func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.NotFound))
}

// TS03: List returns every path under a prefix in lexical order.
func TestLocalStore_List(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "coll/a/docs/2.bin", []byte("2")))
	require.NoError(t, store.Put(ctx, "coll/a/docs/1.bin", []byte("1")))
	require.NoError(t, store.Put(ctx, "coll/b/docs/1.bin", []byte("1")))

	paths, err := store.List(ctx, "coll/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"coll/a/docs/1.bin", "coll/a/docs/2.bin"}, paths)
}

// TS04: Rename moves an object and the old path no longer exists.
func TestLocalStore_Rename(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.bin", []byte("x")))
	require.NoError(t, store.Rename(ctx, "a.bin", "b.bin"))

	ok, err := store.Exists(ctx, "a.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := store.Get(ctx, "b.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

// TS05: Delete of a missing path is not an error.
func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "missing"))
}

// TS06: writes are atomic (no .tmp file left behind after Put completes).
func TestLocalStore_NoTempFilesLeakIntoList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "manifest.cbor", []byte("v1")))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	paths, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest.cbor"}, paths)
}
