package model

import (
	"context"

	"github.com/rushteam/ephemeral/core"
)

// Predictor 是基线 top-N 分支使用的外部打分器：输入用户与候选，输出同序分数。
// 具体实现可以是本地隐向量点积（LatentPredictor）或远程服务（RPCModel）。
type Predictor interface {
	Name() string
	Predict(ctx context.Context, userID int64, items []*core.Item) ([]float64, error)
}
