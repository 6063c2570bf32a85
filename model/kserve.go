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

// KServe 协议版本
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServePredictor 通过 KServe 推理协议给 (user, item) 对打分。
//
// 每个候选编码为一行 [userId, movieId]：
//   - V1: POST /v1/models/{name}:predict，{"instances": [[u, i], ...]} -> {"predictions": [...]}
//   - V2: POST /v2/models/{name}[/versions/{v}]/infer，INT64 张量 shape [n, 2] -> outputs[0].data
type KServePredictor struct {
	Endpoint     string
	ModelName    string
	ModelVersion string
	// Protocol: "v1" 或 "v2"，默认 v2
	Protocol string
	// InputName V2 输入张量名，默认 "input0"
	InputName string
	// OutputName V2 输出张量名；为空取 outputs[0]
	OutputName string
	// Token 非空时以 Bearer 认证
	Token string

	Client *http.Client
}

// NewKServePredictor 创建 KServe 打分器。
func NewKServePredictor(endpoint, modelName, protocol string, timeout time.Duration) *KServePredictor {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if protocol != KServeV1 {
		protocol = KServeV2
	}
	return &KServePredictor{
		Endpoint:  endpoint,
		ModelName: modelName,
		Protocol:  protocol,
		InputName: "input0",
		Client:    &http.Client{Timeout: timeout},
	}
}

func (p *KServePredictor) Name() string { return "kserve." + p.ModelName }

func (p *KServePredictor) Predict(ctx context.Context, userID int64, items []*core.Item) ([]float64, error) {
	if len(items) == 0 {
		return []float64{}, nil
	}
	rows := make([][2]int64, len(items))
	for i, it := range items {
		rows[i] = [2]int64{userID, it.ID}
	}

	var (
		url  string
		body any
	)
	if p.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s:predict", p.Endpoint, p.ModelName)
		body = map[string]any{"instances": rows}
	} else {
		path := fmt.Sprintf("%s/v2/models/%s", p.Endpoint, p.ModelName)
		if p.ModelVersion != "" {
			path += "/versions/" + p.ModelVersion
		}
		url = path + "/infer"
		data := make([]int64, 0, 2*len(rows))
		for _, r := range rows {
			data = append(data, r[0], r[1])
		}
		body = map[string]any{
			"inputs": []v2Tensor{{
				Name:     p.InputName,
				Shape:    []int{len(rows), 2},
				Datatype: "INT64",
				Data:     data,
			}},
		}
	}

	raw, err := p.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var scores []float64
	if p.Protocol == KServeV1 {
		scores, err = parseV1Predictions(raw)
	} else {
		scores, err = p.parseV2Outputs(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(scores) != len(items) {
		return nil, fmt.Errorf("kserve %s returned %d scores for %d items", p.Protocol, len(scores), len(items))
	}
	return scores, nil
}

// Ready 检查服务是否就绪：V1 查询模型元信息，V2 查询模型 ready 接口。
func (p *KServePredictor) Ready(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/models/%s/ready", p.Endpoint, p.ModelName)
	if p.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s", p.Endpoint, p.ModelName)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.addAuth(req)
	resp, err := p.client().Do(req)
	if err != nil {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "kserve ready", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("kserve model %s not ready: status=%d", p.ModelName, resp.StatusCode))
	}
	return nil
}

func (p *KServePredictor) post(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.addAuth(req)

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "kserve request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("kserve error: status=%d, body=%s", resp.StatusCode, string(raw)))
	}
	return raw, nil
}

func (p *KServePredictor) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *KServePredictor) addAuth(req *http.Request) {
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
}

type v2Tensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     any    `json:"data"`
}

type v2OutputTensor struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// parseV1Predictions 接受标量或每行一个数组（取第一个元素）。
func parseV1Predictions(raw []byte) ([]float64, error) {
	var out struct {
		Predictions []json.RawMessage `json:"predictions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse kserve v1 response: %w", err)
	}
	scores := make([]float64, 0, len(out.Predictions))
	for i, p := range out.Predictions {
		var f float64
		if err := json.Unmarshal(p, &f); err == nil {
			scores = append(scores, f)
			continue
		}
		var arr []float64
		if err := json.Unmarshal(p, &arr); err != nil || len(arr) == 0 {
			return nil, fmt.Errorf("kserve v1 prediction %d is not a number", i)
		}
		scores = append(scores, arr[0])
	}
	return scores, nil
}

func (p *KServePredictor) parseV2Outputs(raw []byte) ([]float64, error) {
	var out struct {
		Outputs []v2OutputTensor `json:"outputs"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse kserve v2 response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("kserve v2 empty outputs")
	}
	for _, t := range out.Outputs {
		if p.OutputName != "" && t.Name == p.OutputName {
			return t.Data, nil
		}
	}
	return out.Outputs[0].Data, nil
}

var _ Predictor = (*KServePredictor)(nil)
