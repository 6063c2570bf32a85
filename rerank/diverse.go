package rerank

import (
	"context"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/pipeline"
)

// DiverseSelectNode 依次执行当前轮次生效的挑选策略链，每条策略的结果作为下一条的"已选"。
//
// 每条策略执行前按其相似度字段把候选降序排列（已有序时不重排）。
type DiverseSelectNode struct {
	Source   core.VectorSource
	Criteria []Criterion
	Logger   zerolog.Logger
}

func (n *DiverseSelectNode) Name() string        { return "rerank.diverse" }
func (n *DiverseSelectNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *DiverseSelectNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	sel := &Selector{Source: n.Source, Rand: rctx.Rand, Rated: rctx.Rated}

	var selected []*core.Item
	for i, c := range n.Criteria {
		SortByFeature(items, c.SimilarityField)

		start := len(selected)
		var err error
		selected, err = sel.Select(ctx, selected, items, c)
		if err != nil {
			n.Logger.Error().Err(err).
				Int("criterion", i).
				Int("n", c.N).
				Str("similarity", c.SimilarityField).
				Str("diversity", c.DiversityName).
				Msg("unable to select most distant item")
			return nil, err
		}
		for _, it := range selected[start:] {
			it.PutLabel("selected_by", core.Label{Value: strconv.Itoa(i), Source: n.Name()})
		}
	}
	return selected, nil
}

// SortByFeature 按数值字段稳定降序排列，缺失字段排在最后；已有序时不做任何事。
func SortByFeature(items []*core.Item, field string) {
	less := func(i, j int) bool {
		a, aok := items[i].Feature(field)
		b, bok := items[j].Feature(field)
		if aok != bok {
			return aok
		}
		return a > b
	}
	if sort.SliceIsSorted(items, less) {
		return
	}
	sort.SliceStable(items, less)
}

// SortNode 按数值字段降序重排，只改变展示顺序。
type SortNode struct {
	Field string
}

func (n *SortNode) Name() string        { return "rerank.sort" }
func (n *SortNode) Kind() pipeline.Kind { return pipeline.KindPresent }

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	SortByFeature(items, n.Field)
	return items, nil
}

// ShuffleNode 用请求级随机源均匀洗牌。
type ShuffleNode struct{}

func (n *ShuffleNode) Name() string        { return "rerank.shuffle" }
func (n *ShuffleNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *ShuffleNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	rctx.Rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	return items, nil
}
