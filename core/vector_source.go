package core

import (
	"context"

	"github.com/rushteam/ephemeral/vector"
)

// EntityType 区分隐向量所属实体。
type EntityType string

const (
	EntityUser EntityType = "user"
	EntityItem EntityType = "item"
)

// VectorSource 是隐向量的只读查询接口。
//
// 约束：
//   - 无副作用，可被多个请求并发读取
//   - 模型在进程生命周期内只加载一次，视为不可变；重新加载由外部负责
//   - 未训练的 ID 返回 NOT_FOUND 领域错误，调用方据此走降级分支
//
// 实现：
//   - model.LatentModel（内存快照，由 model.Loader 从 store/feast 加载）
type VectorSource interface {
	// Dimension 返回隐向量维度
	Dimension() int

	// Vector 查询 (entityType, id) 的隐向量
	Vector(ctx context.Context, entityType EntityType, id int64) (vector.Vector, error)

	// AverageUserVector 返回全体用户隐向量的均值（作为回归先验）
	AverageUserVector() vector.Vector
}
