package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
)

func validRanker() *Ranker {
	r := DefaultRanker()
	r.PreferenceWeights = map[core.PreferenceLevel]float64{1: 1, -1: -0.5, 0: 0}
	r.NumRoundsToExclude = map[core.PreferenceLevel]int{1: -1, 0: 2}
	r.SelectionCriteriaByRound = map[int][]SelectionCriteria{
		1: {{N: 2, SimilarityMetric: "cosine", DiversityMetric: "cosine"}},
		3: {
			{N: 1, SimilarityMetric: "score3", DiversityMetric: "euclideanDistance", NthMostDistant: 2},
			{N: 4, SimilarityMetric: "manhattanDistance", DiversityMetric: "manhattanCosine", ExcludeBelow: ptr(0.2)},
		},
	}
	return r
}

func ptr(f float64) *float64 { return &f }

func TestRanker_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Ranker)
	}{
		{"no preference weights", func(r *Ranker) { r.PreferenceWeights = nil }},
		{"no criteria", func(r *Ranker) { r.SelectionCriteriaByRound = nil }},
		{"missing round 1", func(r *Ranker) { delete(r.SelectionCriteriaByRound, 1) }},
		{"round key 0", func(r *Ranker) { r.SelectionCriteriaByRound[0] = r.SelectionCriteriaByRound[1] }},
		{"empty criteria list", func(r *Ranker) { r.SelectionCriteriaByRound[2] = []SelectionCriteria{} }},
		{"n is zero", func(r *Ranker) { r.SelectionCriteriaByRound[1][0].N = 0 }},
		{"dropout above 1", func(r *Ranker) { r.SelectionCriteriaByRound[1][0].Dropout = 1.5 }},
		{"negative rated dropout", func(r *Ranker) { r.SelectionCriteriaByRound[1][0].RatedDropout = -0.1 }},
		{"unknown diversity metric", func(r *Ranker) { r.SelectionCriteriaByRound[3][0].DiversityMetric = "jaccard" }},
		{"unknown similarity metric", func(r *Ranker) { r.SelectionCriteriaByRound[3][1].SimilarityMetric = "support" }},
		{"exclusion for unknown level", func(r *Ranker) { r.NumRoundsToExclude[5] = 1 }},
		{"result size zero", func(r *Ranker) { r.ResultSize = 0 }},
		{"algorithm out of range", func(r *Ranker) { r.Experiment.Algorithm = 4 }},
		{"negative origin", func(r *Ranker) { r.Experiment.Origin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRanker()
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, core.IsConfiguration(err), "want CONFIGURATION, got %v", err)
		})
	}

	require.NoError(t, validRanker().Validate())
}

func TestRanker_CriteriaForRound(t *testing.T) {
	r := validRanker()
	require.NoError(t, r.Validate())

	tests := []struct {
		round   int
		wantKey int
		wantN   []int
	}{
		{1, 1, []int{2}},
		{2, 1, []int{2}},
		{3, 3, []int{1, 4}},
		{10, 3, []int{1, 4}},
	}
	for _, tt := range tests {
		criteria, err := r.CriteriaForRound(tt.round)
		require.NoError(t, err)
		var ns []int
		for _, c := range criteria {
			assert.Equal(t, tt.wantKey, c.MinRoundNumber)
			ns = append(ns, c.N)
		}
		assert.Equal(t, tt.wantN, ns, "round %d", tt.round)
	}

	criteria, err := r.CriteriaForRound(3)
	require.NoError(t, err)
	assert.Equal(t, 2, criteria[0].NthMostDistant)
	assert.True(t, math.IsInf(criteria[0].ExcludeBelow, -1))
	assert.Equal(t, 1, criteria[1].NthMostDistant)
	assert.Equal(t, 0.2, criteria[1].ExcludeBelow)
	assert.NotNil(t, criteria[1].Diversity)

	_, err = r.CriteriaForRound(0)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}

func TestRanker_ExtraSimilarities(t *testing.T) {
	r := validRanker()

	extra, err := r.ExtraSimilarities(1)
	require.NoError(t, err)
	assert.Empty(t, extra)

	extra, err = r.ExtraSimilarities(3)
	require.NoError(t, err)
	assert.Len(t, extra, 1)
	assert.Contains(t, extra, "manhattanDistance")
}

func TestRanker_LevelsAndLookback(t *testing.T) {
	r := validRanker()
	assert.Equal(t, []core.PreferenceLevel{-1, 0, 1}, r.Levels())
	assert.Equal(t, -1, r.LookbackFor(1))
	assert.Equal(t, 2, r.LookbackFor(0))
	assert.Equal(t, 0, r.LookbackFor(-1))
}

const rankerYAML = `
preferenceWeights:
  1: 1.0
  -1: -0.5
  0: 0
numRoundsToExclude:
  1: -1
  0: 1
selectionCriteriaByRound:
  1:
    - n: 3
      similarityMetric: score3
      diversityMetric: euclideanDistance
      dropout: 0.1
  4:
    - n: 2
      similarityMetric: cosine
      diversityMetric: cosine
      excludeBelow: 0.3
      nthMostDistant: 2
revertToMeanConstant: 0.05
revertToMeanFraction: 0.1
experiment:
  algorithm: 0
  origin: 2
seed: 7
`

const rankerJSON = `{
  "preferenceWeights": {"1": 1.0, "-1": -0.5, "0": 0},
  "numRoundsToExclude": {"1": -1, "0": 1},
  "selectionCriteriaByRound": {
    "1": [{"n": 3, "similarityMetric": "score3", "diversityMetric": "euclideanDistance", "dropout": 0.1}],
    "4": [{"n": 2, "similarityMetric": "cosine", "diversityMetric": "cosine", "excludeBelow": 0.3, "nthMostDistant": 2}]
  },
  "revertToMeanConstant": 0.05,
  "revertToMeanFraction": 0.1,
  "experiment": {"algorithm": 0, "origin": 2},
  "seed": 7
}`

func TestLoadRanker(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "ranker.yaml")
	jsonPath := filepath.Join(dir, "ranker.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(rankerYAML), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(rankerJSON), 0o644))

	for _, path := range []string{yamlPath, jsonPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			r, err := LoadRanker(path)
			require.NoError(t, err)

			assert.Equal(t, map[core.PreferenceLevel]float64{1: 1, -1: -0.5, 0: 0}, r.PreferenceWeights)
			assert.Equal(t, map[core.PreferenceLevel]int{1: -1, 0: 1}, r.NumRoundsToExclude)
			require.Len(t, r.SelectionCriteriaByRound, 2)
			assert.Equal(t, 0.1, r.SelectionCriteriaByRound[1][0].Dropout)
			assert.Nil(t, r.SelectionCriteriaByRound[1][0].ExcludeBelow)
			require.NotNil(t, r.SelectionCriteriaByRound[4][0].ExcludeBelow)
			assert.Equal(t, 0.3, *r.SelectionCriteriaByRound[4][0].ExcludeBelow)
			assert.Equal(t, core.Experiment{Algorithm: 0, Origin: 2}, r.Experiment)
			assert.Equal(t, int64(7), r.Seed)

			// 文件中缺省的字段保留默认值
			assert.Equal(t, 1, r.MinRecentRatings)
			assert.Equal(t, 3, r.MaxRecentRatings)
			assert.Equal(t, 10, r.ResultSize)
		})
	}
}

func TestLoadRanker_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRanker(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("preferenceWeights: [1, 2"), 0o644))
	_, err = LoadRanker(bad)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"preferenceWeights": {"1": 1}}`), 0o644))
	_, err = LoadRanker(invalid)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}
