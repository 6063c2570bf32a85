package rerank

import (
	"context"
	"math/rand"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/metric"
	"github.com/rushteam/ephemeral/vector"
)

// Criterion 是一条已解析的挑选策略（度量名已解析为函数）。
type Criterion struct {
	// MinRoundNumber 是策略生效的最小轮次
	MinRoundNumber int
	// N 是本条策略要追加挑选的数量
	N int
	// SimilarityField 是候选预排序所用的打分字段（cosine、score3 等）
	SimilarityField string
	Diversity       metric.Func
	DiversityName   string
	ExcludeBelow    float64
	Dropout         float64
	RatedDropout    float64
	NthMostDistant  int
}

// Selector 贪心挑选彼此分散的物品。Rand 必须是请求级随机源。
type Selector struct {
	Source core.VectorSource
	Rand   *rand.Rand
	Rated  core.IDSet
}

// Select 在 candidates（已按 c.SimilarityField 降序）中追加挑选 c.N 个物品到 selected 之后。
//
// 每挑一个物品扫描一遍候选：
//   - 相似度低于 ExcludeBelow 时停止扫描（候选已排序）
//   - 跳过已选；对每个扫描到的候选抽一次 dropout，已评分候选再抽一次 ratedDropout
//   - 多样性分 = 到已选向量的最小距离；尚无已选时为 -1 乘以一次均匀随机数，用于打散首选
//   - 分数进入容量为 NthMostDistant 的累加器，取第 k 大
//
// 没有可用候选时返回 OUT_OF_RANGE 错误，不做截断。
func (s *Selector) Select(ctx context.Context, selected, candidates []*core.Item, c Criterion) ([]*core.Item, error) {
	out := make([]*core.Item, len(selected), len(selected)+c.N)
	copy(out, selected)

	chosen := make(core.IDSet, len(out)+c.N)
	chosenVecs := make([]vector.Vector, 0, len(out)+c.N)
	for _, it := range out {
		v, err := s.Source.Vector(ctx, core.EntityItem, it.ID)
		if err != nil {
			return nil, err
		}
		chosen.Add(it.ID)
		chosenVecs = append(chosenVecs, v)
	}

	target := len(selected) + c.N
	for len(out) < target {
		acc := newTopAccumulator(c.NthMostDistant)
		scanned := 0
		for _, cand := range candidates {
			if chosen.Has(cand.ID) {
				continue
			}
			sim, _ := cand.Feature(c.SimilarityField)
			if sim < c.ExcludeBelow {
				break
			}
			scanned++
			if s.Rand.Float64() < c.Dropout {
				continue
			}
			if s.Rated.Has(cand.ID) && s.Rand.Float64() < c.RatedDropout {
				continue
			}
			v, err := s.Source.Vector(ctx, core.EntityItem, cand.ID)
			if err != nil {
				return nil, err
			}
			score := metric.MinDistanceTo(c.Diversity, chosenVecs, v)
			if score < 0 {
				score *= s.Rand.Float64()
			}
			acc.Put(cand, score)
		}

		pick, ok := acc.Pick()
		if !ok {
			return nil, core.OutOfRangef(core.ModuleSelect,
				"unable to select item %d of %d: %d candidates scanned, none survived (similarity=%s diversity=%s excludeBelow=%g)",
				len(out)-len(selected)+1, c.N, scanned, c.SimilarityField, c.DiversityName, c.ExcludeBelow)
		}
		v, err := s.Source.Vector(ctx, core.EntityItem, pick.ID)
		if err != nil {
			return nil, err
		}
		chosen.Add(pick.ID)
		chosenVecs = append(chosenVecs, v)
		out = append(out, pick)
	}
	return out, nil
}
