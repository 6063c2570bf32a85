// Package config 定义排序策略（Ranker）与服务进程（Service）两层配置。
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/metric"
	"github.com/rushteam/ephemeral/rank"
	"github.com/rushteam/ephemeral/rerank"
)

// SelectionCriteria 是单条挑选策略。
type SelectionCriteria struct {
	// N 本条策略追加挑选的数量
	N int `yaml:"n" json:"n" validate:"gte=1"`

	// SimilarityMetric 候选预排序字段：打分字段（cosine、score3...）或相似度度量名
	SimilarityMetric string `yaml:"similarityMetric" json:"similarityMetric" validate:"required"`

	// DiversityMetric 多样性距离度量名
	DiversityMetric string `yaml:"diversityMetric" json:"diversityMetric" validate:"required"`

	// ExcludeBelow 相似度低于该值的候选不再扫描；缺省不截断
	ExcludeBelow *float64 `yaml:"excludeBelow" json:"excludeBelow"`

	// Limit 兼容旧配置，不参与挑选
	Limit int `yaml:"limit" json:"limit"`

	RatedDropout   float64 `yaml:"ratedDropout" json:"ratedDropout" validate:"gte=0,lte=1"`
	Dropout        float64 `yaml:"dropout" json:"dropout" validate:"gte=0,lte=1"`
	NthMostDistant int     `yaml:"nthMostDistant" json:"nthMostDistant" validate:"gte=0"`
}

// Ranker 是排序策略配置，校验后只读，可被并发请求共享。
type Ranker struct {
	PreferenceWeights         map[core.PreferenceLevel]float64 `yaml:"preferenceWeights" json:"preferenceWeights" validate:"required,min=1"`
	SelectionCriteriaByRound  map[int][]SelectionCriteria      `yaml:"selectionCriteriaByRound" json:"selectionCriteriaByRound" validate:"required,min=1,dive,keys,gte=1,endkeys,min=1,dive"`
	NumRoundsToExclude        map[core.PreferenceLevel]int     `yaml:"numRoundsToExclude" json:"numRoundsToExclude"`
	RevertToMeanConstant      float64                          `yaml:"revertToMeanConstant" json:"revertToMeanConstant"`
	RevertToMeanFraction      float64                          `yaml:"revertToMeanFraction" json:"revertToMeanFraction"`
	MinRecentRatings          int                              `yaml:"minRecentRatings" json:"minRecentRatings" validate:"gte=0"`
	MaxRecentRatings          int                              `yaml:"maxRecentRatings" json:"maxRecentRatings" validate:"gte=0"`
	ExcludeRecentRatingsBelow float64                          `yaml:"excludeRecentRatingsBelow" json:"excludeRecentRatingsBelow"`
	Experiment                core.Experiment                  `yaml:"experiment" json:"experiment"`
	Seed                      int64                            `yaml:"seed" json:"seed"`
	CandidateFilter           string                           `yaml:"candidateFilter" json:"candidateFilter"`
	ResultSize                int                              `yaml:"resultSize" json:"resultSize" validate:"gte=1"`
	Explain                   bool                             `yaml:"explain" json:"explain"`
}

// DefaultRanker 返回带默认值的策略；文件中缺省的字段保留这些值。
func DefaultRanker() *Ranker {
	return &Ranker{
		MinRecentRatings: 1,
		MaxRecentRatings: 3,
		ResultSize:       10,
	}
}

// LoadRankerFromYAML 从 YAML 文件加载并校验策略。
func LoadRankerFromYAML(path string) (*Ranker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := DefaultRanker()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "parse yaml", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRankerFromJSON 从 JSON 文件加载并校验策略。
func LoadRankerFromJSON(path string) (*Ranker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := DefaultRanker()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "parse json", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRanker 按扩展名选择 YAML 或 JSON。
func LoadRanker(path string) (*Ranker, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadRankerFromJSON(path)
	default:
		return LoadRankerFromYAML(path)
	}
}

var validate = validator.New()

// Validate 做结构校验与语义校验，失败返回 CONFIGURATION 错误。
func (r *Ranker) Validate() error {
	if err := validate.Struct(r); err != nil {
		return core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, describeValidation(err), err)
	}
	if _, ok := r.SelectionCriteriaByRound[1]; !ok {
		return core.Configurationf(core.ModuleConfig, "selectionCriteriaByRound must contain key 1")
	}
	for lvl := range r.NumRoundsToExclude {
		if _, ok := r.PreferenceWeights[lvl]; !ok {
			return core.Configurationf(core.ModuleConfig, "numRoundsToExclude has level %d not in preferenceWeights", lvl)
		}
	}
	for _, round := range r.criteriaRounds() {
		for i, sc := range r.SelectionCriteriaByRound[round] {
			if _, err := metric.LookupDistance(sc.DiversityMetric); err != nil {
				return fmt.Errorf("selectionCriteriaByRound[%d][%d]: %w", round, i, err)
			}
			if !rank.IsScoreField(sc.SimilarityMetric) {
				if _, err := metric.LookupSimilarity(sc.SimilarityMetric); err != nil {
					return fmt.Errorf("selectionCriteriaByRound[%d][%d]: %w", round, i, err)
				}
			}
		}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid ranker config"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return "invalid ranker config: " + strings.Join(parts, "; ")
}

func (r *Ranker) criteriaRounds() []int {
	rounds := make([]int, 0, len(r.SelectionCriteriaByRound))
	for k := range r.SelectionCriteriaByRound {
		rounds = append(rounds, k)
	}
	slices.Sort(rounds)
	return rounds
}

// Levels 返回已配置的反馈类别（升序）。
func (r *Ranker) Levels() []core.PreferenceLevel {
	levels := make([]core.PreferenceLevel, 0, len(r.PreferenceWeights))
	for lvl := range r.PreferenceWeights {
		levels = append(levels, lvl)
	}
	slices.Sort(levels)
	return levels
}

// CriteriaForRound 取阈值不超过 round 的最大键对应的策略列表，并解析度量名。
func (r *Ranker) CriteriaForRound(round int) ([]rerank.Criterion, error) {
	key := -1
	for _, k := range r.criteriaRounds() {
		if k <= round {
			key = k
		}
	}
	if key <= 0 {
		return nil, core.Configurationf(core.ModuleConfig, "selectionCriteriaByRound must contain key 1")
	}

	list := r.SelectionCriteriaByRound[key]
	out := make([]rerank.Criterion, 0, len(list))
	for _, sc := range list {
		diversity, err := metric.LookupDistance(sc.DiversityMetric)
		if err != nil {
			return nil, err
		}
		excludeBelow := math.Inf(-1)
		if sc.ExcludeBelow != nil {
			excludeBelow = *sc.ExcludeBelow
		}
		nth := sc.NthMostDistant
		if nth < 1 {
			nth = 1
		}
		out = append(out, rerank.Criterion{
			MinRoundNumber:  key,
			N:               sc.N,
			SimilarityField: sc.SimilarityMetric,
			Diversity:       diversity,
			DiversityName:   sc.DiversityMetric,
			ExcludeBelow:    excludeBelow,
			Dropout:         sc.Dropout,
			RatedDropout:    sc.RatedDropout,
			NthMostDistant:  nth,
		})
	}
	return out, nil
}

// ExtraSimilarities 返回 round 生效策略引用的非标准相似度（需额外打分的字段）。
func (r *Ranker) ExtraSimilarities(round int) (map[string]metric.Func, error) {
	criteria, err := r.CriteriaForRound(round)
	if err != nil {
		return nil, err
	}
	extra := make(map[string]metric.Func)
	for _, c := range criteria {
		if rank.IsScoreField(c.SimilarityField) {
			continue
		}
		if _, ok := extra[c.SimilarityField]; ok {
			continue
		}
		f, err := metric.LookupSimilarity(c.SimilarityField)
		if err != nil {
			return nil, err
		}
		extra[c.SimilarityField] = f
	}
	return extra, nil
}

// LookbackFor 返回某类别的排除轮数；负数为永久排除，未配置为 0。
func (r *Ranker) LookbackFor(lvl core.PreferenceLevel) int {
	return r.NumRoundsToExclude[lvl]
}
