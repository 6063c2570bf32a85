package rerank

import (
	"context"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/pipeline"
)

// TopNNode 截取前 N 个物品，通常接在打分/洗牌之后。
//
// 示例（随机基线分支）：
//
//	p := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rerank.ShuffleNode{},
//	        &rerank.TopNNode{N: 10},
//	        &rerank.SortNode{Field: "support"},
//	    },
//	}
type TopNNode struct {
	// N <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
