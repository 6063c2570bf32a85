package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
)

type funcNode struct {
	name string
	fn   func(items []*core.Item) ([]*core.Item, error)
}

func (n *funcNode) Name() string { return n.name }
func (n *funcNode) Kind() Kind   { return KindReRank }

func (n *funcNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return n.fn(items)
}

func dropFirst(items []*core.Item) ([]*core.Item, error) { return items[1:], nil }

func TestPipeline_Run(t *testing.T) {
	p := &Pipeline{
		Name: "test",
		Nodes: []Node{
			&funcNode{name: "a", fn: dropFirst},
			&funcNode{name: "b", fn: dropFirst},
		},
	}
	got, err := p.Run(context.Background(), &core.RecommendContext{}, []*core.Item{core.NewItem(1), core.NewItem(2), core.NewItem(3)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestPipeline_RunKeepsErrorClass(t *testing.T) {
	p := &Pipeline{Nodes: []Node{
		&funcNode{name: "select", fn: func([]*core.Item) ([]*core.Item, error) {
			return nil, core.OutOfRangef(core.ModuleSelect, "not enough candidates")
		}},
	}}
	_, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	require.Error(t, err)
	assert.True(t, core.IsOutOfRange(err))
	assert.Contains(t, err.Error(), "select: ")
}

func TestPipeline_RunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := &Pipeline{Nodes: []Node{&funcNode{name: "a", fn: func(items []*core.Item) ([]*core.Item, error) {
		called = true
		return items, nil
	}}}}
	_, err := p.Run(ctx, &core.RecommendContext{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
