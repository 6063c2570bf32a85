// Package feast 从 Feast 在线特征服务读取隐向量，作为 model.Loader 的向量后端。
//
// 隐向量以 double_list（或 float_list）特征存储，例如：
//
//	user_factors:vector   实体列 user_id
//	item_factors:vector   实体列 movie_id
package feast

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/model"
	"github.com/rushteam/ephemeral/vector"
)

// Config 是 Feast 向量后端配置。
type Config struct {
	// Endpoint 形如 "localhost:6565" 或 "grpc://localhost:6565"
	Endpoint string `koanf:"endpoint"`
	Project  string `koanf:"project"`
	// Token 非空时使用静态 Token 认证
	Token string `koanf:"token"`

	UserEntity  string `koanf:"user_entity"`
	UserFeature string `koanf:"user_feature"`
	ItemEntity  string `koanf:"item_entity"`
	ItemFeature string `koanf:"item_feature"`
}

type onlineServing interface {
	GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error)
}

// VectorFetcher 实现 model.VectorFetcher。
type VectorFetcher struct {
	client onlineServing
	cfg    Config
}

// NewVectorFetcher 创建基于官方 Go SDK gRPC 客户端的向量后端。
func NewVectorFetcher(cfg Config) (*VectorFetcher, error) {
	host, port := parseEndpoint(cfg.Endpoint)
	if port == 0 {
		port = 6565
	}
	if cfg.Project == "" {
		return nil, core.Configurationf(core.ModuleModel, "feast project is required")
	}
	if cfg.UserEntity == "" {
		cfg.UserEntity = "user_id"
	}
	if cfg.ItemEntity == "" {
		cfg.ItemEntity = "movie_id"
	}
	if cfg.UserFeature == "" || cfg.ItemFeature == "" {
		return nil, core.Configurationf(core.ModuleModel, "feast user_feature and item_feature are required")
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if cfg.Token != "" {
		client, err = feastsdk.NewSecureGrpcClient(host, port, feastsdk.SecurityConfig{
			Credential: feastsdk.NewStaticCredential(cfg.Token),
		})
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "create feast grpc client", err)
	}
	return &VectorFetcher{client: client, cfg: cfg}, nil
}

func (f *VectorFetcher) columns(entity core.EntityType) (string, string, error) {
	switch entity {
	case core.EntityUser:
		return f.cfg.UserEntity, f.cfg.UserFeature, nil
	case core.EntityItem:
		return f.cfg.ItemEntity, f.cfg.ItemFeature, nil
	}
	return "", "", core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
		fmt.Sprintf("unknown entity type %q", entity))
}

// FetchVectors 一次 GetOnlineFeatures 读取一批实体；缺失或为空的特征不出现在结果中。
func (f *VectorFetcher) FetchVectors(ctx context.Context, entity core.EntityType, ids []int64) (map[int64]vector.Vector, error) {
	entityCol, feature, err := f.columns(entity)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[int64]vector.Vector{}, nil
	}

	rows := make([]feastsdk.Row, len(ids))
	for i, id := range ids {
		rows[i] = feastsdk.Row{entityCol: feastsdk.Int64Val(id)}
	}
	resp, err := f.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: []string{feature},
		Entities: rows,
		Project:  f.cfg.Project,
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "feast get online features", err)
	}

	got := resp.Rows()
	if len(got) != len(ids) {
		return nil, fmt.Errorf("feast response row count mismatch: expected %d, got %d", len(ids), len(got))
	}
	out := make(map[int64]vector.Vector, len(ids))
	for i, row := range got {
		if v, ok := toVector(row[feature]); ok {
			out[ids[i]] = v
		}
	}
	return out, nil
}

// toVector 把 double_list / float_list 特征值转换为向量。
func toVector(val *types.Value) (vector.Vector, bool) {
	if val == nil {
		return nil, false
	}
	if dl := val.GetDoubleListVal(); dl != nil && len(dl.GetVal()) > 0 {
		return vector.Vector(dl.GetVal()).Clone(), true
	}
	if fl := val.GetFloatListVal(); fl != nil && len(fl.GetVal()) > 0 {
		out := make(vector.Vector, len(fl.GetVal()))
		for i, x := range fl.GetVal() {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}

// parseEndpoint 解析端点地址，返回 host 和 port（缺省为 0）。
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	host, portStr, found := strings.Cut(endpoint, ":")
	if !found {
		return endpoint, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return endpoint, 0
	}
	return host, port
}

var _ model.VectorFetcher = (*VectorFetcher)(nil)
