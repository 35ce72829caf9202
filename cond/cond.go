// Package cond implements the condition engine: the runtime
// pick of a field's concrete base relation among IfThen/Else/Choice/Select
// annotations.
package cond

import (
	"errors"
	"fmt"

	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
)

// ErrNoConditionMatched is the sentinel of the *NoConditionMatchedError that
// Resolve returns when a field has conditions but none of them match (there
// is no Else). This implementation
// throws rather than silently leaving the property unset,
// because a declared-but-unsatisfied condition set is almost always an
// authoring error in the format description and silently producing a
// partially-populated instance makes that bug much harder to find.
var ErrNoConditionMatched = errors.New("cond: no condition matched")

// NoConditionMatchedError carries the property that failed to resolve.
type NoConditionMatchedError struct {
	Property string
}

func (e *NoConditionMatchedError) Error() string {
	return fmt.Sprintf("binspec: %s: no condition matched", e.Property)
}

func (e *NoConditionMatchedError) Unwrap() error { return ErrNoConditionMatched }

// TypeRef is what a matched condition resolves a field to: a primitive tag,
// a nested type (with constructor args), or Absent (the field is skipped).
type TypeRef struct {
	kind   descriptor.BaseKind
	prim   cursor.Tag
	nested descriptor.LazyType
	args   descriptor.ArgsResolver
}

// Kind reports the resolved base kind.
func (r TypeRef) Kind() descriptor.BaseKind { return r.kind }

// Primitive reports the resolved primitive tag (valid when Kind() is
// descriptor.BasePrimitive).
func (r TypeRef) Primitive() cursor.Tag { return r.prim }

// Nested reports the resolved nested type and args (valid when Kind() is
// descriptor.BaseNested).
func (r TypeRef) Nested() (descriptor.LazyType, descriptor.ArgsResolver) { return r.nested, r.args }

// AsPrimitive builds a TypeRef that resolves to a primitive tag.
func AsPrimitive(tag cursor.Tag) TypeRef {
	return TypeRef{kind: descriptor.BasePrimitive, prim: tag}
}

// AsNested builds a TypeRef that resolves to a nested type.
func AsNested(t descriptor.LazyType, args descriptor.ArgsResolver) TypeRef {
	return TypeRef{kind: descriptor.BaseNested, nested: t, args: args}
}

// Absent is the TypeRef meaning "skip this field", the usual Choice
// default.
var Absent = TypeRef{kind: descriptor.BaseUnknown}

type payload interface {
	tryResolve(inst *descriptor.Instance) (TypeRef, bool, error)
}

type ifThenPayload struct {
	pred func(*descriptor.Instance) bool
	then TypeRef
}

func (p *ifThenPayload) tryResolve(inst *descriptor.Instance) (TypeRef, bool, error) {
	if p.pred(inst) {
		return p.then, true, nil
	}
	return TypeRef{}, false, nil
}

type elsePayload struct{ then TypeRef }

func (p *elsePayload) tryResolve(*descriptor.Instance) (TypeRef, bool, error) {
	return p.then, true, nil
}

// Selector picks a key out of the instance for Choice to compare against
// case keys, either by path expression or by a Go function.
type Selector struct {
	path string
	fn   func(*descriptor.Instance) any
}

// BySelectorPath builds a Selector that evaluates a dot-path expression.
func BySelectorPath(path string) Selector { return Selector{path: path} }

// BySelectorFunc builds a Selector from an instance -> any function.
func BySelectorFunc(fn func(*descriptor.Instance) any) Selector { return Selector{fn: fn} }

func (s Selector) eval(inst *descriptor.Instance, resolvePath func(string, *descriptor.Instance) (any, error)) (any, error) {
	if s.fn != nil {
		return s.fn(inst), nil
	}
	return resolvePath(s.path, inst)
}

// Case is one key/type entry of a Choice table; the table expands into an
// ordered list of equality conditions, tried in declaration order.
type Case struct {
	Key  any
	Type TypeRef
}

type choicePayload struct {
	selector    Selector
	cases       []Case
	defaultType TypeRef
	resolvePath func(string, *descriptor.Instance) (any, error)
}

func (p *choicePayload) tryResolve(inst *descriptor.Instance) (TypeRef, bool, error) {
	key, err := p.selector.eval(inst, p.resolvePath)
	if err != nil {
		return TypeRef{}, false, err
	}
	want := fmt.Sprintf("%v", key)
	for _, c := range p.cases {
		if fmt.Sprintf("%v", c.Key) == want {
			return c.Type, true, nil
		}
	}
	return p.defaultType, true, nil
}

// selectPayload is handled specially by Resolve: it overrides all other
// conditions on the property.
type selectPayload struct {
	fn func(*descriptor.Instance) *descriptor.TypeDescriptor
}

func (p *selectPayload) tryResolve(inst *descriptor.Instance) (TypeRef, bool, error) {
	t := p.fn(inst)
	return AsNested(func() *descriptor.TypeDescriptor { return t }, nil), true, nil
}

// IfThen matches when pred(instance) is true.
func IfThen(pred func(*descriptor.Instance) bool, then TypeRef) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindCondition, "IfThen", &ifThenPayload{pred: pred, then: then})
	}
}

// Else always matches; must be declared after any IfThen on the same field.
func Else(then TypeRef) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindCondition, "Else", &elsePayload{then: then})
	}
}

// Choice selects among cases by comparing stringify(selector(instance)) to
// stringify(case.Key); falls back to def when nothing matches.
func Choice(selector Selector, cases []Case, def TypeRef) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindCondition, "Choice", &choicePayload{
			selector: selector, cases: cases, defaultType: def, resolvePath: defaultPathResolver,
		})
	}
}

// Select is a dynamic condition that overrides any other condition on the
// same property. Used for recursive/forward type references.
func Select(fn func(*descriptor.Instance) *descriptor.TypeDescriptor) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindCondition, "Select", &selectPayload{fn: fn})
	}
}

// defaultPathResolver is swapped in by the engine package at init time.
// Package cond does not import package expr: Choice's path selectors reach
// the expression resolver through this indirection instead, which keeps
// package cond's dependency surface minimal.
var defaultPathResolver = func(path string, inst *descriptor.Instance) (any, error) {
	return nil, fmt.Errorf("cond: path resolver not installed")
}

// SetPathResolver installs the path-expression evaluator used by Choice
// selectors built from BySelectorPath. Called once by the engine package.
func SetPathResolver(fn func(string, *descriptor.Instance) (any, error)) {
	defaultPathResolver = fn
}

// Resolve picks the concrete TypeRef for a field: a dynamic Select wins
// outright; otherwise conditions are tried in declaration order and the
// first match wins.
func Resolve(f *descriptor.FieldDescriptor, inst *descriptor.Instance) (TypeRef, bool, error) {
	records := f.Records(descriptor.KindCondition)
	if len(records) == 0 {
		return TypeRef{}, false, nil
	}

	for _, rec := range records {
		if sp, ok := rec.Payload.(*selectPayload); ok {
			ref, _, err := sp.tryResolve(inst)
			return ref, true, err
		}
	}

	for _, rec := range records {
		p, ok := rec.Payload.(payload)
		if !ok {
			continue
		}
		ref, matched, err := p.tryResolve(inst)
		if err != nil {
			return TypeRef{}, false, err
		}
		if matched {
			return ref, true, nil
		}
	}
	return TypeRef{}, false, &NoConditionMatchedError{Property: f.Name}
}
