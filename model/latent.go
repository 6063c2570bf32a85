package model

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

// LatentModel 是隐因子模型的内存快照，实现 core.VectorSource。
// 构造后不再修改，可被任意多个请求并发读取。
type LatentModel struct {
	dim     int
	users   map[int64]vector.Vector
	items   map[int64]vector.Vector
	average vector.Vector
}

// NewLatentModel 校验维度并构造快照；average 为空时取全体用户向量的均值。
func NewLatentModel(dim int, users, items map[int64]vector.Vector, average vector.Vector) (*LatentModel, error) {
	if dim <= 0 {
		return nil, core.Configurationf(core.ModuleModel, "latent dimension must be positive, got %d", dim)
	}
	for id, v := range users {
		if v.Dim() != dim {
			return nil, core.Configurationf(core.ModuleModel, "user %d vector has dimension %d, want %d", id, v.Dim(), dim)
		}
	}
	for id, v := range items {
		if v.Dim() != dim {
			return nil, core.Configurationf(core.ModuleModel, "item %d vector has dimension %d, want %d", id, v.Dim(), dim)
		}
	}

	if average == nil {
		if len(users) == 0 {
			return nil, core.Configurationf(core.ModuleModel, "no user vectors to average")
		}
		all := make([]vector.Vector, 0, len(users))
		for _, v := range users {
			all = append(all, v)
		}
		avg, err := vector.Mean(all)
		if err != nil {
			return nil, fmt.Errorf("average user vector: %w", err)
		}
		average = avg
	}
	if len(average) != dim {
		return nil, core.Configurationf(core.ModuleModel, "average user vector has dimension %d, want %d", len(average), dim)
	}

	return &LatentModel{
		dim:     dim,
		users:   users,
		items:   items,
		average: average,
	}, nil
}

func (m *LatentModel) Dimension() int { return m.dim }

func (m *LatentModel) Vector(_ context.Context, entityType core.EntityType, id int64) (vector.Vector, error) {
	var (
		v  vector.Vector
		ok bool
	)
	switch entityType {
	case core.EntityUser:
		v, ok = m.users[id]
	case core.EntityItem:
		v, ok = m.items[id]
	default:
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
			fmt.Sprintf("unknown entity type %q", entityType))
	}
	if !ok {
		return nil, core.NotFoundf(core.ModuleModel, "%s %d not in latent model", entityType, id)
	}
	return v, nil
}

func (m *LatentModel) AverageUserVector() vector.Vector { return m.average }

// Stats 返回用户数与物品数。
func (m *LatentModel) Stats() (users, items int) {
	return len(m.users), len(m.items)
}

var _ core.VectorSource = (*LatentModel)(nil)

// LatentPredictor 用用户向量与物品向量的点积打分；不在模型中的物品得分为 -Inf。
type LatentPredictor struct {
	Source core.VectorSource
}

func (p *LatentPredictor) Name() string { return "latent" }

func (p *LatentPredictor) Predict(ctx context.Context, userID int64, items []*core.Item) ([]float64, error) {
	user, err := p.Source.Vector(ctx, core.EntityUser, userID)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(items))
	for i, it := range items {
		v, err := p.Source.Vector(ctx, core.EntityItem, it.ID)
		if err != nil {
			if core.IsNotFound(err) {
				scores[i] = math.Inf(-1)
				continue
			}
			return nil, err
		}
		scores[i] = user.Dot(v)
	}
	return scores, nil
}

var _ Predictor = (*LatentPredictor)(nil)
