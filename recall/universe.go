package recall

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/rushteam/ephemeral/core"
)

// StaticUniverse 返回固定候选集（测试、离线回放）。
type StaticUniverse struct {
	Items []*core.Item
}

func (s *StaticUniverse) Name() string { return "recall.static" }

func (s *StaticUniverse) Recall(_ context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	return s.Items, nil
}

// StoreUniverse 从 core.Store 的一个 key 读取实体 JSON 数组作为候选全集。
//
// 首次读取后缓存解码结果；Refresh 重新读取并原子替换。
type StoreUniverse struct {
	Store core.Store
	Key   string

	cached atomic.Pointer[[]*core.Item]
}

func (s *StoreUniverse) Name() string { return "recall.store." + s.Key }

func (s *StoreUniverse) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if items := s.cached.Load(); items != nil {
		return *items, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return *s.cached.Load(), nil
}

// Refresh 重新从存储读取候选全集。
func (s *StoreUniverse) Refresh(ctx context.Context) error {
	data, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return core.Configurationf(core.ModuleRecall, "universe key %q not found in %s store", s.Key, s.Store.Name())
		}
		return fmt.Errorf("read universe: %w", err)
	}
	var items []*core.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return core.WrapDomainError(core.ModuleRecall, core.ErrorCodeConfiguration, "decode universe "+s.Key, err)
	}
	s.cached.Store(&items)
	return nil
}

var (
	_ Source = (*StaticUniverse)(nil)
	_ Source = (*StoreUniverse)(nil)
)
