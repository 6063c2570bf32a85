package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
)

func items(ids ...int64) []*core.Item {
	out := make([]*core.Item, len(ids))
	for i, id := range ids {
		out[i] = core.NewItem(id)
		out[i].SetFeature("support", float64(id*10))
	}
	return out
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

type errFilter struct{}

func (errFilter) Name() string { return "filter.err" }

func (errFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return true, errors.New("boom")
}

func TestFilterNode(t *testing.T) {
	expr, err := NewExprFilter("item.features.support >= 20.0")
	require.NoError(t, err)

	rctx := &core.RecommendContext{
		Exclusions: core.NewIDSet(3),
		Rated:      core.NewIDSet(4),
	}

	tests := []struct {
		name    string
		filters []Filter
		want    []int64
	}{
		{"no filters", nil, []int64{1, 2, 3, 4, 5}},
		{"exclusions", []Filter{&ExclusionFilter{}}, []int64{1, 2, 4, 5}},
		{"rated", []Filter{&RatedFilter{}}, []int64{1, 2, 3, 5}},
		{"expression", []Filter{expr}, []int64{2, 3, 4, 5}},
		{"combined", []Filter{&ExclusionFilter{}, &RatedFilter{}, expr}, []int64{2, 5}},
		{"failing filter keeps item", []Filter{errFilter{}}, []int64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &FilterNode{Filters: tt.filters}
			got, err := node.Process(context.Background(), rctx, items(1, 2, 3, 4, 5))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestNewExprFilter_Invalid(t *testing.T) {
	_, err := NewExprFilter("item.features.support >")
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}
