// Package metrics 定义排序核心的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RankRequests 按实验分支与结果统计请求数；outcome 取 ok、bad_request、server_error
	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeral_rank_requests_total",
			Help: "Ranking requests by algorithm arm and outcome",
		},
		[]string{"algorithm", "outcome"},
	)

	// RankDuration 统计各分支的排序耗时
	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ephemeral_rank_duration_seconds",
			Help:    "Ranking latency by algorithm arm",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"algorithm"},
	)

	// Fallbacks 统计降级次数（axis=origin/algorithm，value=覆盖后的取值）
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeral_fallbacks_total",
			Help: "Experiment axis overrides triggered by missing vectors",
		},
		[]string{"axis", "value"},
	)

	// UnscoredCandidates 统计因缺少隐向量而被丢弃的候选
	UnscoredCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ephemeral_unscored_candidates_total",
			Help: "Retrieved candidates dropped because the latent model has no vector for them",
		},
	)

	// FilteredCandidates 按过滤器统计被剔除的候选
	FilteredCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeral_filtered_candidates_total",
			Help: "Candidates removed by filters",
		},
		[]string{"filter"},
	)
)
