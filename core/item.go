package core

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/goccy/go-json"
)

// IDField 是实体在 JSON 中的主键字段名。
const IDField = "movieId"

// LabelsField 是 explain 模式下输出 Labels 的字段名。
const LabelsField = "_labels"

// Item 是召回实体的显式记录：主键、数值字段、透传字段与解释标签。
//
//   - Features 保存所有数值字段：召回侧给的 support 等，以及打分阶段写入的
//     cosine、dotProduct、magnitude、score1..score5
//   - Meta 保存其余字段（标题、海报等），原样透传
//   - Score 是排序阶段的主分数（预测分等）
type Item struct {
	ID       int64
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]Label),
	}
}

// Feature 读取数值字段。
func (it *Item) Feature(name string) (float64, bool) {
	if it.Features == nil {
		return 0, false
	}
	v, ok := it.Features[name]
	return v, ok
}

// SetFeature 写入数值字段。
func (it *Item) SetFeature(name string, v float64) {
	if it.Features == nil {
		it.Features = make(map[string]float64)
	}
	it.Features[name] = v
}

// PutLabel 写入 Label；若已存在同名 key，则按 MergeLabel 规则累积。
func (it *Item) PutLabel(key string, lbl Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Clone 深拷贝 map 字段；召回结果可能被多个请求共享，写入前必须拷贝。
func (it *Item) Clone() *Item {
	return &Item{
		ID:       it.ID,
		Score:    it.Score,
		Features: maps.Clone(it.Features),
		Meta:     maps.Clone(it.Meta),
		Labels:   maps.Clone(it.Labels),
	}
}

// CloneItems 拷贝整个列表。
func CloneItems(items []*Item) []*Item {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// MarshalJSON 把记录展开为扁平 JSON 对象：透传字段、数值字段、主键。
func (it *Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Meta)+len(it.Features)+2)
	for k, v := range it.Meta {
		out[k] = v
	}
	for k, v := range it.Features {
		out[k] = v
	}
	if len(it.Labels) > 0 {
		out[LabelsField] = it.Labels
	}
	out[IDField] = it.ID
	return json.Marshal(out)
}

// UnmarshalJSON 解析扁平 JSON 对象：主键必填，数字进入 Features，其余进入 Meta。
func (it *Item) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}
	idRaw, ok := raw[IDField]
	if !ok {
		return fmt.Errorf("item is missing %q", IDField)
	}
	num, ok := idRaw.(json.Number)
	if !ok {
		return fmt.Errorf("item %q must be an integer, got %v", IDField, idRaw)
	}
	id, err := num.Int64()
	if err != nil {
		return fmt.Errorf("item %q must be an integer: %w", IDField, err)
	}

	*it = *NewItem(id)
	for k, v := range raw {
		if k == IDField || k == LabelsField {
			continue
		}
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return fmt.Errorf("item field %q: %w", k, err)
			}
			it.Features[k] = f
			continue
		}
		it.Meta[k] = v
	}
	return nil
}
