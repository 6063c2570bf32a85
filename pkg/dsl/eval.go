// Package dsl 基于 CEL (Common Expression Language) 实现候选筛选表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/pkg/conv"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的布尔表达式，可被并发请求复用。
//
// 可用变量：
//   - item.id / item.score / item.features.<name> / item.meta.<name>
//   - label.<key>：物品标签值
//   - rctx.user_id / rctx.round / rctx.params.<axis>
//
// 示例：
//   - item.features.support >= 20.0
//   - item.meta.genre == "Drama" && rctx.round > 1
//   - label.filtered != null
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式；空表达式恒为 true。
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return &Expr{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Expr{src: expr, prg: prg}, nil
}

func (e *Expr) String() string { return e.src }

// Match 对单个物品求值。
func (e *Expr) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if e.prg == nil {
		return true, nil
	}
	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.src, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	features := make(map[string]any, len(item.Features))
	for k, v := range item.Features {
		features[k] = v
	}

	in := map[string]any{
		"item": map[string]any{
			"id":       item.ID,
			"score":    item.Score,
			"features": features,
			"meta":     conv.Plain(map[string]any(item.Meta)),
		},
		"label": labels,
	}

	params := make(map[string]any)
	r := map[string]any{"params": params}
	if rctx != nil {
		for k, v := range rctx.Params {
			params[k] = int64(v)
		}
		r["user_id"] = rctx.UserID
		r["round"] = int64(rctx.CurrentRound())
	}
	in["rctx"] = r
	return in
}
