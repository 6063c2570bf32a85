package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/core"
)

// Pipeline 把一个实验分支拆成可组合的 Node 链。
type Pipeline struct {
	// Name 是分支名称（如 "algorithm.0"），只用于日志
	Name  string
	Nodes []Node

	Logger zerolog.Logger
}

// Run 依次执行各 Node；任一 Node 出错立即返回，错误保留原有领域分类。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		p.Logger.Debug().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Msg("node done")
		cur = next
	}
	return cur, nil
}
