package core

import "math/rand"

// RecommendContext 承载一次排序请求的上下文，贯穿整个 Pipeline 透传。
//
// 请求之间不共享任何可变状态：Rand 由 ranker 按请求单独创建，只在当前调用栈内使用。
type RecommendContext struct {
	RequestID string
	UserID    int64

	// Rounds 是按时间顺序排列的反馈轮次（第 1 轮最早）
	Rounds []Round

	// Rated 是用户已评分物品（只用于降级/丢弃策略，不排除）
	Rated IDSet

	// Exclusions 是本次请求禁止再次展示的物品
	Exclusions IDSet

	// Rand 是请求级随机源（dropout、洗牌、首选打散）
	Rand *rand.Rand

	// Params 记录降级分支触发的实验参数覆盖，随响应返回（如 origin=3、algorithm=3）
	Params map[string]int

	// Labels 是请求级标签
	Labels map[string]Label
}

// CurrentRound 返回本次请求对应的轮次编号（已有轮次数 + 1）。
func (rctx *RecommendContext) CurrentRound() int {
	return len(rctx.Rounds) + 1
}

// SetParam 记录一次实验参数覆盖。
func (rctx *RecommendContext) SetParam(key string, value int) {
	if rctx.Params == nil {
		rctx.Params = make(map[string]int)
	}
	rctx.Params[key] = value
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (Label, bool) {
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
