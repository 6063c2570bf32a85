package core

import "slices"

// PreferenceLevel 是用户对一个物品的反馈类别编码（喜欢/不喜欢/跳过等），权重由配置决定。
type PreferenceLevel int

// Round 是一轮展示的反馈：反馈类别 -> 物品 ID 列表。解析后只读。
type Round map[PreferenceLevel][]int64

// Levels 按类别编码升序返回本轮出现的类别，保证遍历顺序确定。
func (r Round) Levels() []PreferenceLevel {
	levels := make([]PreferenceLevel, 0, len(r))
	for lvl := range r {
		levels = append(levels, lvl)
	}
	slices.Sort(levels)
	return levels
}

// ItemIDs 返回本轮出现的全部物品 ID（按类别顺序）。
func (r Round) ItemIDs() []int64 {
	var ids []int64
	for _, lvl := range r.Levels() {
		ids = append(ids, r[lvl]...)
	}
	return ids
}

// IDSet 是物品 ID 集合（排除集、已评分集）。
type IDSet map[int64]struct{}

func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted 返回升序 ID 列表，用于日志与测试。
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
