package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

// IDLister 列出某类实体在模型中的全部 ID。
type IDLister interface {
	ListIDs(ctx context.Context, entity core.EntityType) ([]int64, error)
}

// VectorFetcher 批量读取隐向量；结果中不包含缺失的 ID。
type VectorFetcher interface {
	FetchVectors(ctx context.Context, entity core.EntityType, ids []int64) (map[int64]vector.Vector, error)
}

// AverageProvider 由能直接提供用户均值向量的后端实现（可选）。
type AverageProvider interface {
	AverageUserVector(ctx context.Context) (vector.Vector, error)
}

// Loader 从 ID 索引与向量后端组装 LatentModel：用户与物品并行加载，各自按批并发读取。
//
// 常见组合：
//   - IDs、Vectors 都是 StoreVectors（MemoryStore / RedisStore）
//   - IDs 是 StoreVectors，Vectors 是 feast.VectorFetcher
type Loader struct {
	IDs     IDLister
	Vectors VectorFetcher

	// BatchSize 每批读取的 ID 数，默认 500
	BatchSize int
	// Concurrency 单类实体的并发批次数，默认 4
	Concurrency int

	Logger zerolog.Logger
}

// Load 加载完整快照。
func (l *Loader) Load(ctx context.Context) (*LatentModel, error) {
	var users, items map[int64]vector.Vector

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = l.loadEntity(gctx, core.EntityUser)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = l.loadEntity(gctx, core.EntityItem)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := 0
	for _, v := range items {
		dim = len(v)
		break
	}
	if dim == 0 {
		return nil, core.Configurationf(core.ModuleModel, "latent model has no item vectors")
	}

	average, err := l.average(ctx)
	if err != nil {
		return nil, err
	}

	m, err := NewLatentModel(dim, users, items, average)
	if err != nil {
		return nil, err
	}
	l.Logger.Info().Int("users", len(users)).Int("items", len(items)).Int("dimension", dim).Msg("latent model loaded")
	return m, nil
}

// average 依次询问 Vectors、IDs 是否能直接提供均值向量；都不能时返回 nil，由 NewLatentModel 计算。
func (l *Loader) average(ctx context.Context) (vector.Vector, error) {
	for _, backend := range []any{l.Vectors, l.IDs} {
		ap, ok := backend.(AverageProvider)
		if !ok {
			continue
		}
		avg, err := ap.AverageUserVector(ctx)
		switch {
		case err == nil:
			return avg, nil
		case !core.IsNotFound(err):
			return nil, fmt.Errorf("load average user vector: %w", err)
		}
	}
	return nil, nil
}

func (l *Loader) loadEntity(ctx context.Context, entity core.EntityType) (map[int64]vector.Vector, error) {
	ids, err := l.IDs.ListIDs(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", entity, err)
	}

	batch := l.BatchSize
	if batch <= 0 {
		batch = 500
	}
	limit := l.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var mu sync.Mutex
	out := make(map[int64]vector.Vector, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for start := 0; start < len(ids); start += batch {
		chunk := ids[start:min(start+batch, len(ids))]
		g.Go(func() error {
			vecs, err := l.Vectors.FetchVectors(gctx, entity, chunk)
			if err != nil {
				return fmt.Errorf("fetch %s vectors: %w", entity, err)
			}
			mu.Lock()
			for id, v := range vecs {
				out[id] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if missing := len(ids) - len(out); missing > 0 {
		l.Logger.Warn().Str("entity", string(entity)).Int("missing", missing).Msg("indexed ids without vectors")
	}
	return out, nil
}
