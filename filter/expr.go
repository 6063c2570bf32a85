package filter

import (
	"context"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/pkg/dsl"
)

// ExprFilter 用 CEL 表达式筛选候选：表达式为 false 的物品被过滤。
//
// 示例：item.features.support >= 20.0 && item.meta.year >= 1990
type ExprFilter struct {
	Expr *dsl.Expr
}

// NewExprFilter 编译表达式；编译失败返回 CONFIGURATION 错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "candidate filter", err)
	}
	return &ExprFilter{Expr: e}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	keep, err := f.Expr.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}

var _ Filter = (*ExprFilter)(nil)
