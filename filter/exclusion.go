package filter

import (
	"context"

	"github.com/rushteam/ephemeral/core"
)

// ExclusionFilter 过滤请求排除集中的物品（回看窗口内已展示的、显式忽略的）。
type ExclusionFilter struct{}

func (f *ExclusionFilter) Name() string {
	return "filter.exclusion"
}

func (f *ExclusionFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	return rctx.Exclusions.Has(item.ID), nil
}

// RatedFilter 过滤用户已评分的物品（基线 top-N 分支使用）。
type RatedFilter struct{}

func (f *RatedFilter) Name() string {
	return "filter.rated"
}

func (f *RatedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	return rctx.Rated.Has(item.ID), nil
}

var (
	_ Filter = (*ExclusionFilter)(nil)
	_ Filter = (*RatedFilter)(nil)
)
