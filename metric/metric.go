// Package metric 是相似度/距离度量库，按名称解析。
//
// 两个族：
//   - 距离（越小越近，非负）：cosine、euclideanDistance、manhattanDistance、maxDistance、
//     minDistance、euclideanCosine、manhattanCosine
//   - 相似度（越大越像）：dotProduct、cosine，以及任意距离 d 换算的 0.5^d
//
// 名称应在配置校验阶段通过 LookupDistance/LookupSimilarity 解析一次，热路径只调用函数。
package metric

import (
	"math"
	"slices"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

// Func 是二元向量度量，要求两个向量维度一致。
type Func func(a, b vector.Vector) float64

// 度量名称
const (
	Cosine          = "cosine"
	DotProduct      = "dotProduct"
	Euclidean       = "euclideanDistance"
	Manhattan       = "manhattanDistance"
	MaxDistance     = "maxDistance"
	MinDistance     = "minDistance"
	EuclideanCosine = "euclideanCosine"
	ManhattanCosine = "manhattanCosine"
)

// CosineDistance = 0.5 - cos/2，落在 [0, 1]：0 同向，1 反向。
func CosineDistance(a, b vector.Vector) float64 {
	return 0.5 - a.Cosine(b)/2
}

func euclidean(a, b vector.Vector) float64 { return a.Distance(b, 2) }

func manhattan(a, b vector.Vector) float64 { return a.Distance(b, 1) }

func chebyshev(a, b vector.Vector) float64 { return a.Distance(b, math.Inf(1)) }

func minAbsDiff(a, b vector.Vector) float64 { return a.MinAbsDiff(b) }

func euclideanCosine(a, b vector.Vector) float64 { return CosineDistance(a, b) * euclidean(a, b) }

func manhattanCosine(a, b vector.Vector) float64 { return CosineDistance(a, b) * manhattan(a, b) }

var distances = map[string]Func{
	Cosine:          CosineDistance,
	Euclidean:       euclidean,
	"euclidean":     euclidean,
	Manhattan:       manhattan,
	"manhattan":     manhattan,
	MaxDistance:     chebyshev,
	MinDistance:     minAbsDiff,
	EuclideanCosine: euclideanCosine,
	ManhattanCosine: manhattanCosine,
}

// DistanceNames 返回已注册的距离名称（升序）。
func DistanceNames() []string {
	names := make([]string, 0, len(distances))
	for name := range distances {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupDistance 解析距离度量；未知名称返回 CONFIGURATION 错误。
func LookupDistance(name string) (Func, error) {
	if f, ok := distances[name]; ok {
		return f, nil
	}
	return nil, core.Configurationf(core.ModuleMetric, "unknown distance metric %q", name)
}

// LookupSimilarity 解析相似度度量；距离度量 d 以 0.5^d 表达。
func LookupSimilarity(name string) (Func, error) {
	switch name {
	case DotProduct:
		return func(a, b vector.Vector) float64 { return a.Dot(b) }, nil
	case Cosine:
		return func(a, b vector.Vector) float64 { return a.Cosine(b) }, nil
	}
	d, err := LookupDistance(name)
	if err != nil {
		return nil, core.Configurationf(core.ModuleMetric, "unknown similarity metric %q", name)
	}
	return func(a, b vector.Vector) float64 { return math.Pow(0.5, d(a, b)) }, nil
}

// Distance 按名称计算距离，并校验维度。
func Distance(name string, a, b vector.Vector) (float64, error) {
	f, err := LookupDistance(name)
	if err != nil {
		return 0, err
	}
	if err := vector.SameDim(a, b); err != nil {
		return 0, core.WrapDomainError(core.ModuleMetric, core.ErrorCodeConfiguration, "distance "+name, err)
	}
	return f(a, b), nil
}

// Similarity 按名称计算相似度，并校验维度。
func Similarity(name string, a, b vector.Vector) (float64, error) {
	f, err := LookupSimilarity(name)
	if err != nil {
		return 0, err
	}
	if err := vector.SameDim(a, b); err != nil {
		return 0, core.WrapDomainError(core.ModuleMetric, core.ErrorCodeConfiguration, "similarity "+name, err)
	}
	return f(a, b), nil
}

// MinDistanceTo 返回 v 到 set 中各向量的最小距离；set 为空时返回 -1，
// 调用方据此识别"尚无已选物品"的首轮挑选。
func MinDistanceTo(d Func, set []vector.Vector, v vector.Vector) float64 {
	if len(set) == 0 {
		return -1
	}
	m := math.Inf(1)
	for _, s := range set {
		m = math.Min(m, d(s, v))
	}
	return m
}
