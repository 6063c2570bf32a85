// Package ephemeral 是交互式推荐的排序核心：根据用户逐轮反馈估计"期望偏好向量"，
// 再按策略从候选集中贪心挑选彼此分散的物品。
//
// 设计要点：
// - Pipeline-first: 每个实验分支都是 Node 链（Filter → Rank → ReRank → Present）
// - 请求隔离: 随机源按请求创建，模型与策略只读，可被并发请求共享
// - Labels-first: 挑选来源等 label 随物品透传，explain 开启时随响应返回
package ephemeral

import (
	"github.com/rushteam/ephemeral/pipeline"
	"github.com/rushteam/ephemeral/ranker"
)

// 轻量 facade：便于直接 import "ephemeral" 使用核心抽象。
type (
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind

	Ranker   = ranker.Ranker
	Request  = ranker.Request
	Response = ranker.Response
)

const (
	KindRecall  = pipeline.KindRecall
	KindFilter  = pipeline.KindFilter
	KindRank    = pipeline.KindRank
	KindReRank  = pipeline.KindReRank
	KindPresent = pipeline.KindPresent
)

// New 构造 Ranker，见 ranker.New。
var New = ranker.New
