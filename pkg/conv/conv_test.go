package conv

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{1.5, 1.5, true},
		{float32(2), 2, true},
		{3, 3, true},
		{int64(4), 4, true},
		{int32(5), 5, true},
		{json.Number("6.25"), 6.25, true},
		{json.Number("x"), 0, false},
		{true, 1, true},
		{false, 0, true},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "%v", tt.in)
		}
	}
}

func TestPlain(t *testing.T) {
	in := map[string]any{
		"n":    json.Number("2"),
		"list": []any{json.Number("1.5"), "a"},
		"s":    "x",
	}
	assert.Equal(t, map[string]any{
		"n":    2.0,
		"list": []any{1.5, "a"},
		"s":    "x",
	}, Plain(in))
}
