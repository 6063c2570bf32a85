package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/pipeline"
	"github.com/rushteam/ephemeral/pkg/metrics"
)

// FilterNode 组合多个过滤器，任一过滤器返回 true 该物品即被移除。
// 过滤器出错时记录 warn 并保留该物品，不中断流程。
type FilterNode struct {
	Filters []Filter
	Logger  zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if reason := n.match(ctx, rctx, item); reason != "" {
			metrics.FilteredCandidates.WithLabelValues(reason).Inc()
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// match 返回第一个命中的过滤器名称，未命中返回空串。
func (n *FilterNode) match(ctx context.Context, rctx *core.RecommendContext, item *core.Item) string {
	for _, f := range n.Filters {
		ok, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			n.Logger.Warn().Err(err).Str("filter", f.Name()).Int64("item_id", item.ID).Msg("filter failed")
			continue
		}
		if ok {
			return f.Name()
		}
	}
	return ""
}
