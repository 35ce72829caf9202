// Package expr implements the tiny runtime argument-resolution mini-language
// used by size/count/choice expressions: a dot-path grammar, a
// space-separated +/- arithmetic grammar, and a comma-separated list
// grammar. Anything outside +, -, numeric literals, and dot-paths is
// denied, which is why this is a one-pass evaluator over stdlib primitives
// rather than a general-purpose expression engine.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/binspecgo/binspec/descriptor"
)

// ErrReference is ReferenceError's sentinel.
var ErrReference = errors.New("expr: segment not found")

// ReferenceError is raised when a path segment cannot be resolved.
type ReferenceError struct {
	Path    string
	Segment string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("expr: %q: segment %q not found", e.Path, e.Segment)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// ResolvePath evaluates a dot-separated property/index chain against an
// instance, e.g. "a.b.count" or "a.b.2".
func ResolvePath(path string, inst *descriptor.Instance) (any, error) {
	segs := strings.Split(path, ".")
	var cur any = inst
	for idx, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, &ReferenceError{Path: path, Segment: strings.Join(segs[:idx+1], ".")}
		}
		cur = next
	}
	return cur, nil
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case *descriptor.Instance:
		return v.Get(seg)
	case []any:
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 || n >= len(v) {
			return nil, false
		}
		return v[n], true
	default:
		return nil, false
	}
}

// ResolveList evaluates a comma-separated list of paths into an ordered
// list of values, used to forward constructor arguments.
func ResolveList(expr string, inst *descriptor.Instance) ([]any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	parts := strings.Split(expr, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := ResolvePath(strings.TrimSpace(p), inst)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ResolveArithmetic evaluates a space-separated sequence of numeric
// literals/paths joined by '+' or '-', e.g. "a.b.count - 1".
func ResolveArithmetic(expr string, inst *descriptor.Instance) (float64, error) {
	tokens := strings.Fields(expr)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("expr: empty arithmetic expression")
	}

	result, err := numericToken(tokens[0], expr, inst)
	if err != nil {
		return 0, err
	}

	i := 1
	for i < len(tokens) {
		op := tokens[i]
		if op != "+" && op != "-" {
			return 0, fmt.Errorf("expr: %q: expected '+' or '-', got %q", expr, op)
		}
		if i+1 >= len(tokens) {
			return 0, fmt.Errorf("expr: %q: dangling operator %q", expr, op)
		}
		operand, err := numericToken(tokens[i+1], expr, inst)
		if err != nil {
			return 0, err
		}
		if op == "+" {
			result += operand
		} else {
			result -= operand
		}
		i += 2
	}
	return result, nil
}

func numericToken(tok, whole string, inst *descriptor.Instance) (float64, error) {
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return n, nil
	}
	v, err := ResolvePath(tok, inst)
	if err != nil {
		return 0, err
	}
	n, ok := toFloat(v)
	if !ok {
		return 0, &ReferenceError{Path: whole, Segment: tok}
	}
	return n, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// AsInt converts a resolved numeric expression result to an int, used by
// controllers that need an item count or byte size.
func AsInt[T constraints.Integer | constraints.Float](v T) int {
	return int(v)
}

// IntExpr is an integer-valued argument that may be a literal, a dot-path,
// or an arithmetic expression: the shape Count's n takes, reused by the
// pre/post engine for Offset/EnsureSize/Padding.
type IntExpr struct {
	lit    int
	isLit  bool
	source string
}

// Int builds a literal IntExpr.
func Int(n int) IntExpr { return IntExpr{lit: n, isLit: true} }

// Path builds an IntExpr evaluated as a path (no spaces) or an arithmetic
// expression (spaces, tokens joined by + / -).
func Path(s string) IntExpr { return IntExpr{source: s} }

// Eval resolves the IntExpr against inst.
func (e IntExpr) Eval(inst *descriptor.Instance) (int, error) {
	if e.isLit {
		return e.lit, nil
	}
	if !strings.ContainsAny(e.source, " ") {
		v, err := ResolvePath(e.source, inst)
		if err != nil {
			return 0, err
		}
		n, ok := toFloat(v)
		if !ok {
			return 0, &ReferenceError{Path: e.source, Segment: e.source}
		}
		return int(n), nil
	}
	f, err := ResolveArithmetic(e.source, inst)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
