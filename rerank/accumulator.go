package rerank

import "github.com/rushteam/ephemeral/core"

type scored struct {
	item  *core.Item
	score float64
}

// topAccumulator 保留分数最大的 k 个候选（降序插入缓冲），Pick 返回其中最小者，
// 即见过至少 k 个候选时的第 k 大。容量固定，插入为 O(k)。
type topAccumulator struct {
	k       int
	entries []scored
}

func newTopAccumulator(k int) *topAccumulator {
	if k < 1 {
		k = 1
	}
	return &topAccumulator{k: k, entries: make([]scored, 0, k)}
}

// Put 插入候选；分数相同时先到者排前。
func (a *topAccumulator) Put(item *core.Item, score float64) {
	if len(a.entries) == a.k && score <= a.entries[a.k-1].score {
		return
	}
	pos := len(a.entries)
	for pos > 0 && a.entries[pos-1].score < score {
		pos--
	}
	if len(a.entries) < a.k {
		a.entries = append(a.entries, scored{})
	}
	copy(a.entries[pos+1:], a.entries[pos:len(a.entries)-1])
	a.entries[pos] = scored{item: item, score: score}
}

func (a *topAccumulator) Len() int { return len(a.entries) }

// Pick 返回保留集中分数最小的候选。
func (a *topAccumulator) Pick() (*core.Item, bool) {
	if len(a.entries) == 0 {
		return nil, false
	}
	return a.entries[len(a.entries)-1].item, true
}
