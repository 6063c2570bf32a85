package recall

import (
	"context"

	"github.com/rushteam/ephemeral/core"
)

// Source 提供一次请求的候选全集（召回结果）。
// 返回的 Item 可能被多个请求共享，调用方写入前必须 Clone。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
