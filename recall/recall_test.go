package recall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/store"
)

func ids(items []*core.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestStoreUniverse(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "popular", []byte(`[{"movieId": 1, "support": 10}, {"movieId": 2, "title": "Heat"}]`)))

	u := &StoreUniverse{Store: s, Key: "popular"}
	assert.Equal(t, "recall.store.popular", u.Name())

	got, err := u.Recall(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
	assert.Equal(t, 10.0, got[0].Features["support"])

	// 已缓存：存储变化在 Refresh 之前不可见
	require.NoError(t, s.Set(ctx, "popular", []byte(`[{"movieId": 3}]`)))
	got, err = u.Recall(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))

	require.NoError(t, u.Refresh(ctx))
	got, err = u.Recall(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(got))
}

func TestStoreUniverse_Errors(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "broken", []byte(`[{"title": "no id"}]`)))

	_, err := (&StoreUniverse{Store: s, Key: "missing"}).Recall(ctx, nil)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))

	_, err = (&StoreUniverse{Store: s, Key: "broken"}).Recall(ctx, nil)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}

type stubSource struct {
	name  string
	items []*core.Item
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

func newItems(ids ...int64) []*core.Item {
	out := make([]*core.Item, len(ids))
	for i, id := range ids {
		out[i] = core.NewItem(id)
	}
	return out
}

func TestFanout_MergesInSourceOrder(t *testing.T) {
	a := &stubSource{name: "a", items: newItems(1, 2, 3), delay: 20 * time.Millisecond}
	b := &stubSource{name: "b", items: newItems(3, 4)}

	f := &Fanout{Sources: []Source{a, b}}
	got, err := f.Recall(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(got))
	assert.Equal(t, "a", got[2].Labels["recall_source"].Value)
	assert.Equal(t, "b", got[3].Labels["recall_source"].Value)

	// 源数据不被修改
	assert.Empty(t, a.items[0].Labels)
}

func TestFanout_PartialFailure(t *testing.T) {
	f := &Fanout{
		Sources: []Source{
			&stubSource{name: "slow", items: newItems(9), delay: time.Second},
			&stubSource{name: "broken", err: errors.New("boom")},
			&stubSource{name: "ok", items: newItems(1, 2)},
		},
		Timeout:       50 * time.Millisecond,
		MaxConcurrent: 2,
	}
	got, err := f.Recall(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestFanout_AllFail(t *testing.T) {
	boom := errors.New("boom")
	f := &Fanout{Sources: []Source{
		&stubSource{name: "a", err: boom},
		&stubSource{name: "b", err: errors.New("other")},
	}}
	_, err := f.Recall(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestFanout_SingleSourceNoLabels(t *testing.T) {
	f := &Fanout{Sources: []Source{&StaticUniverse{Items: newItems(5, 6)}}}
	got, err := f.Recall(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, ids(got))
	assert.Empty(t, got[0].Labels)
}
