package load

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FindsExistingFolder(t *testing.T) {
	store := newFakeStore()
	store.folders["Facturas"] = "folder-7"

	r := NewResolver(store, testLogger())

	id, err := r.Resolve(context.Background(), "Facturas")
	require.NoError(t, err)
	assert.Equal(t, "folder-7", id)
	assert.Equal(t, 0, store.folderCreates)
}

func TestResolve_CreatesMissingFolder(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testLogger())

	id, err := r.Resolve(context.Background(), "Facturas")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.folderCreates)
}

func TestResolve_CachesPerRun(t *testing.T) {
	store := newFakeStore()
	store.folders["Facturas"] = "folder-7"

	r := NewResolver(store, testLogger())

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), "Facturas")
		require.NoError(t, err)
		assert.Equal(t, "folder-7", id)
	}

	assert.Equal(t, 1, store.folderLookups, "at most one remote lookup per path per run")
}

func TestResolve_NothingCachedOnError(t *testing.T) {
	store := newFakeStore()
	store.findFolderErr = errors.New("backend down")

	r := NewResolver(store, testLogger())

	_, err := r.Resolve(context.Background(), "Facturas")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirectory)

	// After the backend recovers, the resolver goes back to the store.
	store.findFolderErr = nil
	store.folders["Facturas"] = "folder-7"

	id, err := r.Resolve(context.Background(), "Facturas")
	require.NoError(t, err)
	assert.Equal(t, "folder-7", id)
	assert.Equal(t, 2, store.folderLookups)
}

func TestResolve_CreateErrorWrapped(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("quota exceeded")

	r := NewResolver(store, testLogger())

	_, err := r.Resolve(context.Background(), "Facturas")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirectory)
	assert.Contains(t, err.Error(), "quota exceeded")
}
