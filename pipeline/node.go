package pipeline

import (
	"context"

	"github.com/rushteam/ephemeral/core"
)

// Kind 用于标记 Node 类型，方便按阶段打点与日志。
type Kind string

const (
	KindRecall  Kind = "recall"  // 召回阶段：生成候选集
	KindFilter  Kind = "filter"  // 过滤阶段：剔除排除集、已评分等候选
	KindRank    Kind = "rank"    // 排序阶段：按期望向量或外部模型打分
	KindReRank  Kind = "rerank"  // 重排阶段：多样性挑选、截断、洗牌
	KindPresent Kind = "present" // 展示阶段：只改变展示顺序，不改变集合
)

// Node 是 Pipeline 的最小可扩展单元，统一采用"输入 items -> 输出 items"的形态。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
