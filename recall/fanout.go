package recall

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/ephemeral/core"
)

// Fanout 并发执行多个候选源并按 ID 去重合并：合并顺序固定为 Sources 顺序，
// 同一 ID 保留第一个来源的实体，结果与各源完成先后无关。
//
// 单个源失败或超时只记录 warn；所有源都失败时返回第一个错误。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	Logger        zerolog.Logger
}

func (n *Fanout) Name() string { return "recall.fanout" }

func (n *Fanout) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	results := make([][]*core.Item, len(n.Sources))
	errs := make([]error, len(n.Sources))

	var eg errgroup.Group
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}
			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				n.Logger.Warn().Err(err).Str("source", src.Name()).Msg("recall source failed")
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = eg.Wait()

	var firstErr error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(n.Sources) > 0 && failed == len(n.Sources) {
		return nil, firstErr
	}

	seen := make(core.IDSet)
	var out []*core.Item
	for i, items := range results {
		for _, it := range items {
			if it == nil || seen.Has(it.ID) {
				continue
			}
			seen.Add(it.ID)
			if len(n.Sources) > 1 {
				it = it.Clone()
				it.PutLabel("recall_source", core.Label{Value: n.Sources[i].Name(), Source: n.Name()})
			}
			out = append(out, it)
		}
	}
	return out, nil
}

var _ Source = (*Fanout)(nil)
