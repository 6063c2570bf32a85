package model

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

func TestNewLatentModel(t *testing.T) {
	users := map[int64]vector.Vector{1: {1, 0}, 2: {0, 1}}
	items := map[int64]vector.Vector{10: {1, 1}}

	m, err := NewLatentModel(2, users, items, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dimension())
	assert.InDeltaSlice(t, vector.Vector{0.5, 0.5}, m.AverageUserVector(), 1e-12)

	nu, ni := m.Stats()
	assert.Equal(t, 2, nu)
	assert.Equal(t, 1, ni)

	m, err = NewLatentModel(2, nil, items, vector.Vector{3, 4})
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{3, 4}, m.AverageUserVector())
}

func TestNewLatentModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		users   map[int64]vector.Vector
		items   map[int64]vector.Vector
		average vector.Vector
	}{
		{"zero dimension", 0, nil, nil, nil},
		{"user dimension", 2, map[int64]vector.Vector{1: {1}}, nil, nil},
		{"item dimension", 2, map[int64]vector.Vector{1: {1, 1}}, map[int64]vector.Vector{1: {1, 2, 3}}, nil},
		{"nothing to average", 2, nil, map[int64]vector.Vector{1: {1, 1}}, nil},
		{"average dimension", 2, nil, nil, vector.Vector{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLatentModel(tt.dim, tt.users, tt.items, tt.average)
			require.Error(t, err)
			assert.True(t, core.IsConfiguration(err))
		})
	}
}

func TestLatentModel_Vector(t *testing.T) {
	m, err := NewLatentModel(2, map[int64]vector.Vector{1: {1, 0}}, map[int64]vector.Vector{10: {1, 1}}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := m.Vector(ctx, core.EntityUser, 1)
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 0}, v)

	v, err = m.Vector(ctx, core.EntityItem, 10)
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 1}, v)

	_, err = m.Vector(ctx, core.EntityUser, 10)
	assert.True(t, core.IsNotFound(err))

	_, err = m.Vector(ctx, core.EntityItem, 1)
	assert.True(t, core.IsNotFound(err))

	_, err = m.Vector(ctx, "genre", 1)
	assert.True(t, core.IsNotSupported(err))
}

func TestLatentPredictor(t *testing.T) {
	m, err := NewLatentModel(2,
		map[int64]vector.Vector{1: {2, 1}},
		map[int64]vector.Vector{10: {1, 0}, 11: {0, 3}},
		nil)
	require.NoError(t, err)
	p := &LatentPredictor{Source: m}

	scores, err := p.Predict(context.Background(), 1, []*core.Item{core.NewItem(10), core.NewItem(11), core.NewItem(12)})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, 2.0, scores[0])
	assert.Equal(t, 3.0, scores[1])
	assert.True(t, math.IsInf(scores[2], -1))

	_, err = p.Predict(context.Background(), 99, []*core.Item{core.NewItem(10)})
	assert.True(t, core.IsNotFound(err))
}
