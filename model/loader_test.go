package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/store"
	"github.com/rushteam/ephemeral/vector"
)

func seedStore(t *testing.T, prefix string) (*store.MemoryStore, *StoreVectors) {
	t.Helper()
	ms := store.NewMemoryStore()
	sv := NewStoreVectors(ms, prefix)
	ctx := context.Background()

	users := make(map[int64]vector.Vector)
	for id := int64(1); id <= 7; id++ {
		users[id] = vector.Vector{float64(id), 1}
	}
	items := make(map[int64]vector.Vector)
	for id := int64(100); id < 125; id++ {
		items[id] = vector.Vector{1, float64(id)}
	}
	require.NoError(t, sv.Put(ctx, core.EntityUser, users))
	require.NoError(t, sv.Put(ctx, core.EntityItem, items))
	return ms, sv
}

func TestStoreVectors_ListAndFetch(t *testing.T) {
	_, sv := seedStore(t, "")
	ctx := context.Background()

	ids, err := sv.ListIDs(ctx, core.EntityUser)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ids)

	vecs, err := sv.FetchVectors(ctx, core.EntityItem, []int64{100, 101, 999})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, vector.Vector{1, 101}, vecs[101])

	_, err = sv.AverageUserVector(ctx)
	assert.True(t, core.IsStoreNotFound(err))
}

func TestStoreVectors_EmptyIndex(t *testing.T) {
	sv := NewStoreVectors(store.NewMemoryStore(), "latent")
	ids, err := sv.ListIDs(context.Background(), core.EntityItem)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLoader_Load(t *testing.T) {
	_, sv := seedStore(t, "latent")

	loader := &Loader{IDs: sv, Vectors: sv, BatchSize: 4, Concurrency: 2}
	m, err := loader.Load(context.Background())
	require.NoError(t, err)

	users, items := m.Stats()
	assert.Equal(t, 7, users)
	assert.Equal(t, 25, items)
	assert.Equal(t, 2, m.Dimension())
	assert.InDeltaSlice(t, vector.Vector{4, 1}, m.AverageUserVector(), 1e-12)

	v, err := m.Vector(context.Background(), core.EntityItem, 124)
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 124}, v)
}

func TestLoader_StoredAverage(t *testing.T) {
	ms, sv := seedStore(t, "latent")
	require.NoError(t, ms.Set(context.Background(), "latent:average_user", []byte("[0.5, 0.25]")))

	m, err := (&Loader{IDs: sv, Vectors: sv}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{0.5, 0.25}, m.AverageUserVector())
}

func TestLoader_SkipsMissingVectors(t *testing.T) {
	ms, sv := seedStore(t, "latent")
	require.NoError(t, ms.Delete(context.Background(), "latent:item:110"))

	m, err := (&Loader{IDs: sv, Vectors: sv}).Load(context.Background())
	require.NoError(t, err)
	_, items := m.Stats()
	assert.Equal(t, 24, items)
	_, err = m.Vector(context.Background(), core.EntityItem, 110)
	assert.True(t, core.IsNotFound(err))
}

type failingFetcher struct{ err error }

func (f failingFetcher) FetchVectors(context.Context, core.EntityType, []int64) (map[int64]vector.Vector, error) {
	return nil, f.err
}

func TestLoader_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		_, sv := seedStore(t, "latent")
		boom := errors.New("boom")
		_, err := (&Loader{IDs: sv, Vectors: failingFetcher{err: boom}}).Load(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no items", func(t *testing.T) {
		sv := NewStoreVectors(store.NewMemoryStore(), "latent")
		_, err := (&Loader{IDs: sv, Vectors: sv}).Load(context.Background())
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})

	t.Run("corrupt vector", func(t *testing.T) {
		ms, sv := seedStore(t, "latent")
		require.NoError(t, ms.Set(context.Background(), "latent:user:3", []byte(`"oops"`)))
		_, err := (&Loader{IDs: sv, Vectors: sv}).Load(context.Background())
		assert.Error(t, err)
	})
}
