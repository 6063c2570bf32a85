// Package vector 提供定长实向量的代数运算，底层使用 gonum/floats。
//
// 所有运算都返回新向量，不修改入参；模型中的向量因此可以被多个请求并发只读共享。
package vector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector 是定长实向量（用户/物品隐向量、期望向量）。
type Vector []float64

// Zeros 创建 dim 维零向量。
func Zeros(dim int) Vector {
	return make(Vector, dim)
}

func (v Vector) Dim() int { return len(v) }

func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Dot 点积；维度不一致时 panic，调用方负责校验维度。
func (v Vector) Dot(o Vector) float64 {
	return floats.Dot(v, o)
}

// Norm 欧氏范数（L2）。
func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Unit 返回单位向量；零向量原样返回零向量。
func (v Vector) Unit() Vector {
	n := v.Norm()
	if n == 0 {
		return v.Clone()
	}
	return v.Scale(1 / n)
}

func (v Vector) Scale(c float64) Vector {
	out := v.Clone()
	floats.Scale(c, out)
	return out
}

func (v Vector) Add(o Vector) Vector {
	out := v.Clone()
	floats.Add(out, o)
	return out
}

func (v Vector) Sub(o Vector) Vector {
	out := v.Clone()
	floats.Sub(out, o)
	return out
}

// AddScaled 返回 v + alpha*o。
func (v Vector) AddScaled(alpha float64, o Vector) Vector {
	out := v.Clone()
	floats.AddScaled(out, alpha, o)
	return out
}

// Cosine 余弦相似度，结果落在 [-1, 1]；任一向量为零向量时返回 0。
func (v Vector) Cosine(o Vector) float64 {
	nv, no := v.Norm(), o.Norm()
	if nv == 0 || no == 0 {
		return 0
	}
	c := v.Dot(o) / (nv * no)
	// 浮点误差可能让 |c| 略大于 1
	return math.Max(-1, math.Min(1, c))
}

// Distance 返回 L 范数距离：L=1 曼哈顿，L=2 欧氏，L=+Inf 切比雪夫。
func (v Vector) Distance(o Vector, L float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Distance(v, o, L)
}

// MinAbsDiff 返回逐维绝对差的最小值；空向量返回 0。
func (v Vector) MinAbsDiff(o Vector) float64 {
	if len(v) == 0 {
		return 0
	}
	diff := v.Sub(o)
	m := math.Inf(1)
	for _, d := range diff {
		m = math.Min(m, math.Abs(d))
	}
	return m
}

// Mean 返回多个同维向量的均值。
func Mean(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("mean of empty vector set")
	}
	out := Zeros(len(vs[0]))
	for i, v := range vs {
		if len(v) != len(out) {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), len(out))
		}
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(vs)), out)
	return out, nil
}

// SameDim 检查两个向量维度一致。
func SameDim(a, b Vector) error {
	if a.Dim() != b.Dim() {
		return fmt.Errorf("dimension mismatch: %d != %d", a.Dim(), b.Dim())
	}
	return nil
}
