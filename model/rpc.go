package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/ephemeral/core"
)

// RPCModel 通过 HTTP 调用外部打分服务的 Predictor 实现。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

type predictRequest struct {
	UserID int64        `json:"userId"`
	Items  []*core.Item `json:"items"`
}

type predictResponse struct {
	Scores []float64 `json:"scores"`
}

// Predict 批量打分。
// 请求格式（JSON）：
//
//	{"userId": 42, "items": [{"movieId": 1, "support": 30, ...}, ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.72, ...]}
func (m *RPCModel) Predict(ctx context.Context, userID int64, items []*core.Item) ([]float64, error) {
	if len(items) == 0 {
		return []float64{}, nil
	}
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: m.Timeout}
	}

	body, err := json.Marshal(predictRequest{UserID: userID, Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "predictor call", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("predictor error: status=%d, body=%s", resp.StatusCode, string(msg)))
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Scores) != len(items) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(items), len(result.Scores))
	}
	return result.Scores, nil
}

var _ Predictor = (*RPCModel)(nil)
