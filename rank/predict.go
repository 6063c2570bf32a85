package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/model"
	"github.com/rushteam/ephemeral/pipeline"
)

// PredictorNode 调用外部打分模型给候选写入 Score，并按分数稳定降序排列。
type PredictorNode struct {
	Predictor model.Predictor
}

func (n *PredictorNode) Name() string        { return "rank.predictor" }
func (n *PredictorNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *PredictorNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Predictor == nil || len(items) == 0 {
		return items, nil
	}

	scores, err := n.Predictor.Predict(ctx, rctx.UserID, items)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(items) {
		return nil, fmt.Errorf("predictor %s returned %d scores for %d items", n.Predictor.Name(), len(scores), len(items))
	}
	for i, it := range items {
		it.Score = scores[i]
		it.PutLabel("rank_model", core.Label{Value: n.Predictor.Name(), Source: "rank"})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items, nil
}
