package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}, 60))

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	got, err := s.BatchGet(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.True(t, core.IsStoreNotFound(err))
	assert.Equal(t, "memory", s.Name())
}

func TestMemoryStore_Expired(t *testing.T) {
	s := NewMemoryStore()
	s.data["old"] = &entry{value: []byte("x"), expire: expireAt([]int{1}).AddDate(0, 0, -1)}

	_, err := s.Get(context.Background(), "old")
	assert.True(t, core.IsStoreNotFound(err))

	got, err := s.BatchGet(context.Background(), []string{"old"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"latent:users": [1, 2],
		"latent:user:1": [0.5, 0.5],
		"universe": [{"movieId": 10, "title": "Heat"}]
	}`), 0o644))

	s, err := LoadMemoryStore(path)
	require.NoError(t, err)

	v, err := s.Get(context.Background(), "latent:users")
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 2]`, string(v))

	v, err = s.Get(context.Background(), "universe")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"movieId": 10, "title": "Heat"}]`, string(v))

	_, err = LoadMemoryStore(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1, 2]`), 0o644))
	_, err = LoadMemoryStore(bad)
	assert.Error(t, err)
}
