package model

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

// StoreVectors 基于 core.Store 的隐向量后端，同时实现 IDLister、VectorFetcher、AverageProvider。
//
// Key 布局：
//   - ID 索引：{KeyPrefix}:users、{KeyPrefix}:items（JSON 整数数组）
//   - 向量：{KeyPrefix}:user:{id}、{KeyPrefix}:item:{id}（JSON 浮点数组）
//   - 用户均值（可选）：{KeyPrefix}:average_user
type StoreVectors struct {
	store core.Store

	KeyPrefix string
}

// NewStoreVectors 创建基于 core.Store 的隐向量后端。
func NewStoreVectors(s core.Store, keyPrefix string) *StoreVectors {
	if keyPrefix == "" {
		keyPrefix = "latent"
	}
	return &StoreVectors{store: s, KeyPrefix: keyPrefix}
}

func (a *StoreVectors) indexKey(entity core.EntityType) string {
	return a.KeyPrefix + ":" + string(entity) + "s"
}

func (a *StoreVectors) vectorKey(entity core.EntityType, id int64) string {
	return a.KeyPrefix + ":" + string(entity) + ":" + strconv.FormatInt(id, 10)
}

func (a *StoreVectors) ListIDs(ctx context.Context, entity core.EntityType) ([]int64, error) {
	data, err := a.store.Get(ctx, a.indexKey(entity))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []int64{}, nil
		}
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.indexKey(entity), err)
	}
	return ids, nil
}

func (a *StoreVectors) FetchVectors(ctx context.Context, entity core.EntityType, ids []int64) (map[int64]vector.Vector, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = a.vectorKey(entity, id)
	}
	raw, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]vector.Vector, len(raw))
	for i, id := range ids {
		data, ok := raw[keys[i]]
		if !ok {
			continue
		}
		var v vector.Vector
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out[id] = v
	}
	return out, nil
}

func (a *StoreVectors) AverageUserVector(ctx context.Context) (vector.Vector, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":average_user")
	if err != nil {
		return nil, err
	}
	var v vector.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode average user vector: %w", err)
	}
	return v, nil
}

// Put 写入一类实体的向量并更新 ID 索引（用于导入与测试）。
func (a *StoreVectors) Put(ctx context.Context, entity core.EntityType, vecs map[int64]vector.Vector) error {
	kvs := make(map[string][]byte, len(vecs)+1)
	ids := make([]int64, 0, len(vecs))
	for id, v := range vecs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s %d: %w", entity, id, err)
		}
		kvs[a.vectorKey(entity, id)] = data
		ids = append(ids, id)
	}
	index, err := json.Marshal(core.NewIDSet(ids...).Sorted())
	if err != nil {
		return fmt.Errorf("encode %s index: %w", entity, err)
	}
	kvs[a.indexKey(entity)] = index
	return a.store.BatchSet(ctx, kvs)
}

var (
	_ IDLister        = (*StoreVectors)(nil)
	_ VectorFetcher   = (*StoreVectors)(nil)
	_ AverageProvider = (*StoreVectors)(nil)
)
