package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"help", flag.ErrHelp, 0},
		{"bad request", core.BadRequestf(core.ModuleRanker, "x"), 2},
		{"wrapped bad request", fmt.Errorf("round 1: %w", core.BadRequestf(core.ModuleRanker, "x")), 2},
		{"configuration", core.Configurationf(core.ModuleConfig, "x"), 3},
		{"out of range", core.OutOfRangef(core.ModuleSelect, "x"), 3},
		{"other", errors.New("x"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

const testPolicy = `
preferenceWeights:
  1: 1.0
  -1: -1.0
  0: 0
numRoundsToExclude:
  1: -1
  -1: -1
  0: 1
selectionCriteriaByRound:
  1:
    - n: 2
      similarityMetric: cosine
      diversityMetric: euclideanDistance
experiment:
  algorithm: 2
resultSize: 3
seed: 5
`

const testModel = `{
  "latent:users": [1],
  "latent:items": [1, 2, 3, 4],
  "latent:user:1": [1, 0],
  "latent:item:1": [1, 0],
  "latent:item:2": [0, 1],
  "latent:item:3": [0.6, 0.8],
  "latent:item:4": [0.8, 0.6],
  "universe": [
    {"movieId": 1, "support": 5, "title": "A"},
    {"movieId": 2, "support": 50, "title": "B"},
    {"movieId": 3, "support": 20, "title": "C"},
    {"movieId": 4, "support": 10, "title": "D"}
  ]
}`

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	policy := filepath.Join(dir, "ranker.yaml")
	modelFile := filepath.Join(dir, "model.json")
	service := filepath.Join(dir, "service.yaml")

	require.NoError(t, os.WriteFile(policy, []byte(testPolicy), 0o644))
	require.NoError(t, os.WriteFile(modelFile, []byte(testModel), 0o644))
	svc := fmt.Sprintf("logging:\n  level: error\npolicy: %s\nmodel:\n  backend: memory\n  file: %s\n", policy, modelFile)
	require.NoError(t, os.WriteFile(service, []byte(svc), 0o644))
	return service
}

func TestRun_Popular(t *testing.T) {
	service := writeFixtures(t)

	var out bytes.Buffer
	stdin := strings.NewReader(`{"userId": 1, "rounds": [{"4": 1}], "ratedMovies": []}`)
	err := run(context.Background(), []string{"-config", service}, stdin, &out)
	require.NoError(t, err)

	var resp struct {
		Items []struct {
			MovieID int64   `json:"movieId"`
			Support float64 `json:"support"`
			Title   string  `json:"title"`
		} `json:"items"`
		Params    map[string]int `json:"params"`
		RequestID string         `json:"requestId"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	// 物品 4 在第一轮被喜欢，排除后剩余三个按 support 降序
	require.Len(t, resp.Items, 3)
	assert.Equal(t, int64(2), resp.Items[0].MovieID)
	assert.Equal(t, int64(3), resp.Items[1].MovieID)
	assert.Equal(t, int64(1), resp.Items[2].MovieID)
	assert.Equal(t, "B", resp.Items[0].Title)
	assert.NotEmpty(t, resp.RequestID)
}

func TestRun_Errors(t *testing.T) {
	service := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		body string
		code int
	}{
		{"missing user", []string{"-config", service}, `{"rounds": []}`, 2},
		{"malformed body", []string{"-config", service}, `{`, 2},
		{"missing policy", []string{"-config", service, "-policy", filepath.Join(t.TempDir(), "nope.yaml")}, `{"userId": 1}`, 1},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}, `{"userId": 1}`, 3},
		{"unknown flag", []string{"-bogus"}, `{}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader(tt.body), &out)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err), "%v", err)
			assert.Zero(t, out.Len())
		})
	}
}
