// Package ranker 是排序入口：解析请求、计算排除集、按实验分支组装 Pipeline 并返回结果。
package ranker

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/config"
	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/estimate"
	"github.com/rushteam/ephemeral/filter"
	"github.com/rushteam/ephemeral/model"
	"github.com/rushteam/ephemeral/pipeline"
	"github.com/rushteam/ephemeral/pkg/logging"
	"github.com/rushteam/ephemeral/pkg/metrics"
	"github.com/rushteam/ephemeral/rank"
	"github.com/rushteam/ephemeral/recall"
	"github.com/rushteam/ephemeral/rerank"
	"github.com/rushteam/ephemeral/vector"
)

// supportField 是随机基线分支的展示排序字段
const supportField = "support"

// Option 配置 Ranker。
type Option func(*Ranker)

// WithPredictor 指定算法 1 的打分模型；默认用隐向量点积。
func WithPredictor(p model.Predictor) Option {
	return func(r *Ranker) { r.predictor = p }
}

// WithLogger 指定日志输出。
func WithLogger(l zerolog.Logger) Option {
	return func(r *Ranker) { r.logger = logging.Component(l, "ranker") }
}

// Ranker 持有只读的策略、模型与召回源，可被任意多个请求并发调用。
// 唯一的跨请求状态是请求计数（用于派生请求级随机种子）。
type Ranker struct {
	cfg       *config.Ranker
	source    core.VectorSource
	universe  recall.Source
	predictor model.Predictor
	estimator *estimate.Estimator
	filters   []filter.Filter
	logger    zerolog.Logger

	requests atomic.Int64
}

// New 校验策略并构造 Ranker。
func New(cfg *config.Ranker, source core.VectorSource, universe recall.Source, opts ...Option) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || universe == nil {
		return nil, core.Configurationf(core.ModuleRanker, "vector source and universe are required")
	}

	r := &Ranker{
		cfg:      cfg,
		source:   source,
		universe: universe,
		logger:   zerolog.Nop(),
		estimator: &estimate.Estimator{
			Source:               source,
			Weights:              cfg.PreferenceWeights,
			RevertToMeanConstant: cfg.RevertToMeanConstant,
			RevertToMeanFraction: cfg.RevertToMeanFraction,
		},
		filters: []filter.Filter{&filter.ExclusionFilter{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.predictor == nil {
		r.predictor = &model.LatentPredictor{Source: source}
	}
	if cfg.CandidateFilter != "" {
		f, err := filter.NewExprFilter(cfg.CandidateFilter)
		if err != nil {
			return nil, err
		}
		r.filters = append(r.filters, f)
	}
	return r, nil
}

// Response 是排序结果。
type Response struct {
	Items     []*core.Item
	Params    map[string]int
	RequestID string
}

func (resp *Response) MarshalJSON() ([]byte, error) {
	items := resp.Items
	if items == nil {
		items = []*core.Item{}
	}
	params := resp.Params
	if params == nil {
		params = map[string]int{}
	}
	return json.Marshal(struct {
		Items     []*core.Item   `json:"items"`
		Params    map[string]int `json:"params"`
		RequestID string         `json:"requestId"`
	}{items, params, resp.RequestID})
}

// DecodeRequest 按本策略配置的反馈类别解析请求体。
func (r *Ranker) DecodeRequest(body []byte) (*Request, error) {
	return DecodeRequest(body, r.cfg.Levels())
}

// RankJSON 解析请求体、排序并编码结果。
func (r *Ranker) RankJSON(ctx context.Context, body []byte) ([]byte, error) {
	req, err := r.DecodeRequest(body)
	if err != nil {
		metrics.RankRequests.WithLabelValues("unknown", outcome(err)).Inc()
		return nil, err
	}
	resp, err := r.Rank(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// Rank 执行一次排序。
//
// 分支：
//   - algorithm 0：按期望向量打分并做多样性挑选
//   - algorithm 1：剔除已评分后用外部模型取 top N；用户无向量时随机 N 个并记录 algorithm=3
//   - algorithm 2/3：随机 N 个，按 support 降序展示
func (r *Ranker) Rank(ctx context.Context, req *Request) (resp *Response, err error) {
	expt := r.cfg.Experiment
	if req.Experiment != nil {
		expt = *req.Experiment
	}
	arm := strconv.Itoa(expt.Algorithm)

	rctx := r.newContext(req)
	logger := r.logger.With().
		Str("request_id", rctx.RequestID).
		Int64("user_id", req.UserID).
		Int("algorithm", expt.Algorithm).
		Int("round", rctx.CurrentRound()).
		Logger()

	start := time.Now()
	defer func() {
		metrics.RankDuration.WithLabelValues(arm).Observe(time.Since(start).Seconds())
		metrics.RankRequests.WithLabelValues(arm, outcome(err)).Inc()
		logResult(logger, err)
	}()

	universe, err := r.universe.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, core.Configurationf(core.ModuleRanker, "retriever returned no candidates")
	}

	filtered := &pipeline.Pipeline{
		Name:   "filter",
		Nodes:  []pipeline.Node{&filter.FilterNode{Filters: r.filters, Logger: logger}},
		Logger: logger,
	}
	items, err := filtered.Run(ctx, rctx, core.CloneItems(universe))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, core.BadRequestf(core.ModuleRanker, "all %d retrieved candidates are excluded", len(universe))
	}

	var selected []*core.Item
	switch expt.Algorithm {
	case core.AlgorithmEphemeral:
		selected, err = r.rankEphemeral(ctx, rctx, req, expt.Origin, items, logger)
	case core.AlgorithmPredictor:
		selected, err = r.rankPredictor(ctx, rctx, items, logger)
	case core.AlgorithmPopular, core.AlgorithmRandom:
		selected, err = r.randomPipeline("algorithm."+arm, logger, true).Run(ctx, rctx, items)
	default:
		return nil, core.BadRequestf(core.ModuleRanker, "algorithm must be 0, 1, 2, or 3")
	}
	if err != nil {
		return nil, err
	}

	if !r.cfg.Explain {
		for _, it := range selected {
			it.Labels = nil
		}
	}
	return &Response{Items: selected, Params: rctx.Params, RequestID: rctx.RequestID}, nil
}

func (r *Ranker) newContext(req *Request) *core.RecommendContext {
	seed := r.cfg.Seed + r.requests.Add(1)
	return &core.RecommendContext{
		RequestID:  uuid.NewString(),
		UserID:     req.UserID,
		Rounds:     req.Rounds,
		Rated:      req.RatedIDs(),
		Exclusions: BuildExclusions(req.Rounds, r.cfg.LookbackFor, req.Ignored),
		Rand:       rand.New(rand.NewSource(seed)),
		Params:     map[string]int{},
	}
}

func (r *Ranker) rankEphemeral(
	ctx context.Context,
	rctx *core.RecommendContext,
	req *Request,
	origin int,
	items []*core.Item,
	logger zerolog.Logger,
) ([]*core.Item, error) {
	initial, err := r.initialVector(ctx, rctx, req, origin, logger)
	if err != nil {
		return nil, err
	}
	desired, err := r.estimator.DesiredVector(ctx, initial, rctx.Rounds)
	if err != nil {
		return nil, err
	}

	round := rctx.CurrentRound()
	criteria, err := r.cfg.CriteriaForRound(round)
	if err != nil {
		return nil, err
	}
	extra, err := r.cfg.ExtraSimilarities(round)
	if err != nil {
		return nil, err
	}

	scoring := &pipeline.Pipeline{
		Name: "algorithm.0.score",
		Nodes: []pipeline.Node{
			&rank.ScoreNode{Source: r.source, Desired: desired, Extra: extra, Logger: logger},
		},
		Logger: logger,
	}
	scored, err := scoring.Run(ctx, rctx, items)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, core.Configurationf(core.ModuleRanker, "retriever and latent model mismatch, no items in both")
	}

	selection := &pipeline.Pipeline{
		Name: "algorithm.0.select",
		Nodes: []pipeline.Node{
			&rerank.DiverseSelectNode{Source: r.source, Criteria: criteria, Logger: logger},
		},
		Logger: logger,
	}
	return selection.Run(ctx, rctx, scored)
}

// initialVector 按 origin 选择估计起点；用户不满足所分配条件时回退到均值并记录 origin=3。
func (r *Ranker) initialVector(
	ctx context.Context,
	rctx *core.RecommendContext,
	req *Request,
	origin int,
	logger zerolog.Logger,
) (vector.Vector, error) {
	average := r.source.AverageUserVector()

	switch origin {
	case core.OriginAverage, core.OriginFallback:
		return average, nil
	case core.OriginUser:
		v, err := r.source.Vector(ctx, core.EntityUser, req.UserID)
		if err == nil {
			return v, nil
		}
		if !core.IsNotFound(err) {
			return nil, err
		}
		logger.Warn().Msg("user had no user vector to use for initial vector")
	case core.OriginRecent:
		vecs, err := r.recentVectors(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(vecs) > 0 && len(vecs) >= r.cfg.MinRecentRatings {
			return vector.Mean(vecs)
		}
		logger.Warn().Int("recent", len(vecs)).Msg("user had too few positively rated movies to construct initial vector")
	default:
		logger.Warn().Int("origin", origin).Msg("unknown origin")
	}

	rctx.SetParam(core.AxisOrigin, core.OriginFallback)
	metrics.Fallbacks.WithLabelValues(core.AxisOrigin, strconv.Itoa(core.OriginFallback)).Inc()
	return average, nil
}

// recentVectors 按请求顺序收集至多 MaxRecentRatings 个评分不低于阈值、且在模型中的物品向量。
func (r *Ranker) recentVectors(ctx context.Context, req *Request) ([]vector.Vector, error) {
	var vecs []vector.Vector
	for _, rm := range req.Rated {
		if len(vecs) >= r.cfg.MaxRecentRatings {
			break
		}
		if !rm.HasRating || rm.Rating < r.cfg.ExcludeRecentRatingsBelow {
			continue
		}
		v, err := r.source.Vector(ctx, core.EntityItem, rm.MovieID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

func (r *Ranker) rankPredictor(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
	logger zerolog.Logger,
) ([]*core.Item, error) {
	if _, err := r.source.Vector(ctx, core.EntityUser, rctx.UserID); err != nil {
		if !core.IsNotFound(err) {
			return nil, err
		}
		logger.Warn().Msg("user had no user vector, serving random items")
		rctx.SetParam(core.AxisAlgorithm, core.AlgorithmRandom)
		metrics.Fallbacks.WithLabelValues(core.AxisAlgorithm, strconv.Itoa(core.AlgorithmRandom)).Inc()
		return r.randomPipeline("algorithm.1.fallback", logger, false).Run(ctx, rctx, items)
	}

	p := &pipeline.Pipeline{
		Name: "algorithm.1",
		Nodes: []pipeline.Node{
			&filter.FilterNode{Filters: []filter.Filter{&filter.RatedFilter{}}, Logger: logger},
			&rank.PredictorNode{Predictor: r.predictor},
			&rerank.TopNNode{N: r.cfg.ResultSize},
		},
		Logger: logger,
	}
	return p.Run(ctx, rctx, items)
}

// randomPipeline 洗牌后截取 ResultSize 个；bySupport 为 true 时再按 support 降序展示。
func (r *Ranker) randomPipeline(name string, logger zerolog.Logger, bySupport bool) *pipeline.Pipeline {
	nodes := []pipeline.Node{
		&rerank.ShuffleNode{},
		&rerank.TopNNode{N: r.cfg.ResultSize},
	}
	if bySupport {
		nodes = append(nodes, &rerank.SortNode{Field: supportField})
	}
	return &pipeline.Pipeline{Name: name, Nodes: nodes, Logger: logger}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsBadRequest(err):
		return "bad_request"
	default:
		return "server_error"
	}
}

func logResult(logger zerolog.Logger, err error) {
	switch {
	case err == nil:
		logger.Debug().Msg("ranked")
	case core.IsBadRequest(err):
		logger.Info().Err(err).Msg("rejected request")
	default:
		logger.Error().Err(err).Msg("ranking failed")
	}
}
