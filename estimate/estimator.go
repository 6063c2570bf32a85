// Package estimate 根据逐轮反馈迭代估计用户的期望偏好向量。
package estimate

import (
	"context"
	"math"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/metric"
	"github.com/rushteam/ephemeral/vector"
)

// Estimator 计算期望向量。配置只读，可被并发请求共享。
type Estimator struct {
	Source core.VectorSource

	// Weights 反馈类别权重：0 忽略，正数吸引，负数排斥
	Weights map[core.PreferenceLevel]float64

	// RevertToMeanConstant / RevertToMeanFraction 控制向全体用户均值的回归强度
	RevertToMeanConstant float64
	RevertToMeanFraction float64
}

// pull 是单个物品相对当前估计的拉力向量及其范数。
type pull struct {
	vec  vector.Vector
	norm float64
}

// DesiredVector 从 initial 出发，逐轮吸收反馈，返回单位期望向量。
//
// 每轮：
//  1. 物品向量投影到 current 上再减去 current，得到拉力向量；无向量的物品拉力为零
//  2. 各类别放大权重 ww = w*sqrt(物品数)，ww 为 0 的类别跳过
//  3. 方向 = Σ拉力*ww / Σ|拉力|*|ww|；步长由正/负类别分别累计
//  4. 置信度 = 1/i + (已选范数/总范数)^(1/3) * (i-1)/i
//  5. current = unit(current + 方向*步长*置信度)，再按漂移程度向均值回归
func (e *Estimator) DesiredVector(ctx context.Context, initial vector.Vector, rounds []core.Round) (vector.Vector, error) {
	current := initial.Unit()
	if current.IsZero() {
		return nil, core.Configurationf(core.ModuleEstimate, "initial vector has zero norm")
	}
	mean := e.Source.AverageUserVector().Unit()
	if mean.IsZero() {
		return nil, core.Configurationf(core.ModuleEstimate, "average user vector has zero norm")
	}

	for i, round := range rounds {
		next, err := e.step(ctx, current, round, i+1)
		if err != nil {
			return nil, err
		}
		current = e.revertToMean(next, mean)
	}
	return current, nil
}

func (e *Estimator) step(ctx context.Context, current vector.Vector, round core.Round, roundNum int) (vector.Vector, error) {
	levels := round.Levels()
	pulls := make(map[core.PreferenceLevel][]pull, len(levels))

	var (
		totalNorm float64
		nonzero   int
		minNorm   = math.Inf(1)
	)
	for _, lvl := range levels {
		ps := make([]pull, 0, len(round[lvl]))
		for _, id := range round[lvl] {
			p, err := e.pullOf(ctx, current, id)
			if err != nil {
				return nil, err
			}
			if p.norm > 0 {
				totalNorm += p.norm
				nonzero++
				minNorm = math.Min(minNorm, p.norm)
			}
			ps = append(ps, p)
		}
		pulls[lvl] = ps
	}
	if nonzero == 0 {
		return nil, core.BadRequestf(core.ModuleEstimate, "no nonzero vectors in round %d", roundNum)
	}

	var (
		numerator     = vector.Zeros(len(current))
		denominator   float64
		moveNumerator float64
		moveDenom     float64
		selectedNorm  float64
	)
	for _, lvl := range levels {
		ps := pulls[lvl]
		w := e.Weights[lvl]
		ww := w * math.Sqrt(float64(len(ps)))
		if ww == 0 {
			continue
		}

		// 无向量的物品拉力为零，但仍计入平均步长
		var normSum float64
		for _, p := range ps {
			numerator = numerator.AddScaled(ww, p.vec)
			normSum += p.norm
		}
		denominator += normSum * math.Abs(ww)
		selectedNorm += normSum

		if ww > 0 {
			moveNumerator += math.Abs(w) * normSum
			moveDenom += math.Abs(w) * float64(len(ps))
			continue
		}
		// 越接近的被拒物品排斥越强：最近者权重 1，更远者按 0.1^((n-min)/(2*min)) 衰减
		var repel float64
		for _, p := range ps {
			repel += math.Pow(0.1, (p.norm-minNorm)/(2*minNorm))
		}
		moveNumerator += math.Abs(w) * minNorm * repel
		moveDenom += math.Abs(w) * repel
	}

	if denominator == 0 {
		return current, nil
	}

	direction := numerator.Scale(1 / denominator)
	movement := moveNumerator / moveDenom
	i := float64(roundNum)
	confidence := 1/i + math.Cbrt(selectedNorm/totalNorm)*(i-1)/i

	return current.AddScaled(movement*confidence, direction).Unit(), nil
}

// pullOf 计算单个物品的拉力向量：itemVec/dot(itemVec, current) - current。
// 物品不在模型中、或与 current 正交（投影无定义）时视为无信号。
func (e *Estimator) pullOf(ctx context.Context, current vector.Vector, id int64) (pull, error) {
	v, err := e.Source.Vector(ctx, core.EntityItem, id)
	if err != nil {
		if core.IsNotFound(err) {
			return pull{vec: vector.Zeros(len(current))}, nil
		}
		return pull{}, err
	}
	if err := vector.SameDim(v, current); err != nil {
		return pull{}, core.WrapDomainError(core.ModuleEstimate, core.ErrorCodeConfiguration, "item vector", err)
	}
	dot := v.Dot(current)
	if dot == 0 {
		return pull{vec: vector.Zeros(len(current))}, nil
	}
	d := v.Scale(1 / dot).Sub(current)
	return pull{vec: d, norm: d.Norm()}, nil
}

// revertToMean 按 constant + fraction*cosineDistance(current, mean) 向均值混合。
func (e *Estimator) revertToMean(current, mean vector.Vector) vector.Vector {
	multiplier := e.RevertToMeanConstant
	if e.RevertToMeanFraction != 0 {
		multiplier += metric.CosineDistance(current, mean) * e.RevertToMeanFraction
	}
	if multiplier == 0 {
		return current
	}
	return current.Scale(1 - multiplier).AddScaled(multiplier, mean).Unit()
}
