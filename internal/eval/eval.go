// Package eval implements read-time override evaluation: given a config's
// ordered override rules and a caller-supplied context, it picks the first
// rule whose condition tree matches and returns its value.
//
// Evaluation sits on the hot path serving SDK reads, so it never returns an
// error: an unknown operator, malformed tree, unresolvable reference, or
// bad path makes that leaf evaluate to non-matching. Correctness problems
// are caught at write time by model validation.
package eval

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/groblegark/kconfig/internal/model"
)

// Resolver looks up the current stored base value of another config in the
// same project. Reference operands are resolved through it at read time;
// proposals and drafts are never used as reference targets.
type Resolver interface {
	Resolve(ctx context.Context, projectID, configName string) (json.RawMessage, error)
}

// Result reports which override (if any) determined the effective value.
type Result struct {
	Value    json.RawMessage
	Override string
	Matched  bool
}

// Evaluate walks overrides in array order and returns the value of the
// first override whose condition tree matches the evaluation context.
// When no override matches, Matched is false and the caller falls back to
// the stored base/variant value.
func Evaluate(ctx context.Context, overrides []model.Override, evalCtx map[string]any, r Resolver) Result {
	for _, o := range overrides {
		if o.Conditions == nil {
			continue
		}
		if evalCondition(ctx, o.Conditions, evalCtx, r) {
			return Result{Value: o.Value, Override: o.Name, Matched: true}
		}
	}
	return Result{}
}

func evalCondition(ctx context.Context, c *model.Condition, evalCtx map[string]any, r Resolver) bool {
	switch c.Kind {
	case model.CondAnd:
		if len(c.Children) == 0 {
			return false
		}
		for _, child := range c.Children {
			if !evalCondition(ctx, child, evalCtx, r) {
				return false
			}
		}
		return true
	case model.CondOr:
		for _, child := range c.Children {
			if evalCondition(ctx, child, evalCtx, r) {
				return true
			}
		}
		return false
	case model.CondEquals:
		have, operand, ok := leafOperands(ctx, c, evalCtx, r)
		return ok && deepEqual(have, operand)
	case model.CondIn:
		have, operand, ok := leafOperands(ctx, c, evalCtx, r)
		if !ok {
			return false
		}
		members, isList := operand.([]any)
		if !isList {
			return false
		}
		for _, m := range members {
			if deepEqual(have, m) {
				return true
			}
		}
		return false
	}
	// Unknown operator: fail closed.
	return false
}

// leafOperands fetches the context value and the resolved right-hand
// operand for a leaf comparison. ok is false when the attribute is absent
// or the operand cannot be resolved.
func leafOperands(ctx context.Context, c *model.Condition, evalCtx map[string]any, r Resolver) (have, operand any, ok bool) {
	have, present := evalCtx[c.Attribute]
	if !present || c.Operand == nil {
		return nil, nil, false
	}
	operand, ok = resolveOperand(ctx, c.Operand, r)
	if !ok {
		return nil, nil, false
	}
	return normalize(have), operand, true
}

func resolveOperand(ctx context.Context, op *model.Operand, r Resolver) (any, bool) {
	switch op.Type {
	case model.OperandLiteral:
		var v any
		if err := json.Unmarshal(op.Value, &v); err != nil {
			return nil, false
		}
		return v, true
	case model.OperandReference:
		if r == nil {
			return nil, false
		}
		raw, err := r.Resolve(ctx, op.ProjectID, op.ConfigName)
		if err != nil || len(raw) == 0 {
			return nil, false
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false
		}
		return navigatePath(v, op.Path)
	}
	return nil, false
}

// navigatePath walks a dotted path through decoded JSON: object fields by
// key, array elements by decimal index. An empty path returns the value
// itself.
func navigatePath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	for _, seg := range strings.Split(path, ".") {
		switch cur := v.(type) {
		case map[string]any:
			next, ok := cur[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur) {
				return nil, false
			}
			v = cur[idx]
		default:
			return nil, false
		}
	}
	return v, true
}

// normalize maps Go numeric context values onto the JSON data model
// (float64) so that a caller passing int compares equal to a stored JSON
// number. No cross-type coercion happens: strings stay strings, bools stay
// bools.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

// deepEqual compares two decoded JSON values by exact type and value.
// reflect.DeepEqual is not used because it distinguishes numeric Go types
// that are identical in the JSON data model.
func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, present := bv[k]
			if !present || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	}
	return false
}
