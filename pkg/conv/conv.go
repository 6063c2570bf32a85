// Package conv 提供 any 值的数值转换，用于处理 JSON 解码出的动态字段。
package conv

import (
	"strconv"

	"github.com/goccy/go-json"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32、json.Number；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		return f, err == nil
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// Plain 递归地把 json.Number 转为 float64，其余值原样保留（map、slice 会被拷贝）。
// 用于把 UseNumber 解码的透传字段交给表达式引擎。
func Plain(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, ok := ToFloat64(val); ok {
			return f
		}
		return string(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = Plain(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = Plain(x)
		}
		return out
	default:
		return v
	}
}
