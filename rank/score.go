package rank

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/metric"
	"github.com/rushteam/ephemeral/pipeline"
	"github.com/rushteam/ephemeral/pkg/metrics"
	"github.com/rushteam/ephemeral/vector"
)

// 打分字段
const (
	FieldCosine     = "cosine"
	FieldDotProduct = "dotProduct"
	FieldMagnitude  = "magnitude"
	FieldScore1     = "score1"
	FieldScore2     = "score2"
	FieldScore3     = "score3"
	FieldScore4     = "score4"
	FieldScore5     = "score5"
)

// scoreExponents 是 scoreK = dotProduct * |cosine|^K 的指数；score4、score5 与 score3 相同。
var scoreExponents = []struct {
	field string
	k     float64
}{
	{FieldScore1, 1},
	{FieldScore2, 2},
	{FieldScore3, 3},
	{FieldScore4, 3},
	{FieldScore5, 3},
}

// IsScoreField 判断是否为 ScoreNode 固定写入的字段。
func IsScoreField(name string) bool {
	switch name {
	case FieldCosine, FieldDotProduct, FieldMagnitude:
		return true
	}
	for _, e := range scoreExponents {
		if e.field == name {
			return true
		}
	}
	return false
}

// ScoreNode 用期望向量给候选打分，写入 cosine、dotProduct、magnitude、score1..score5。
// Extra 中的相似度度量按名称额外写入同名字段。
// 模型中没有向量的候选被丢弃并记录 warn，不视为错误。
type ScoreNode struct {
	Source  core.VectorSource
	Desired vector.Vector
	Extra   map[string]metric.Func
	Logger  zerolog.Logger
}

func (n *ScoreNode) Name() string        { return "rank.ephemeral" }
func (n *ScoreNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ScoreNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		v, err := n.Source.Vector(ctx, core.EntityItem, it.ID)
		if err != nil {
			if core.IsNotFound(err) {
				n.Logger.Warn().Int64("item_id", it.ID).Msg("item not in latent model")
				metrics.UnscoredCandidates.Inc()
				continue
			}
			return nil, err
		}
		if err := vector.SameDim(v, n.Desired); err != nil {
			return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeConfiguration, "score item", err)
		}

		cos := n.Desired.Cosine(v)
		dot := n.Desired.Dot(v)
		it.SetFeature(FieldCosine, cos)
		it.SetFeature(FieldDotProduct, dot)
		it.SetFeature(FieldMagnitude, v.Norm())
		for _, e := range scoreExponents {
			it.SetFeature(e.field, dot*math.Pow(math.Abs(cos), e.k))
		}
		for name, f := range n.Extra {
			it.SetFeature(name, f(n.Desired, v))
		}
		out = append(out, it)
	}
	return out, nil
}
