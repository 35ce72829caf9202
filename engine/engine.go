// Package engine implements the read loop and write loop: the
// orchestrator that walks a type descriptor's fields and drives the
// condition, controller, transformer, validator, pre/post, bit-field, and
// context engines around a single cursor.
package engine

import (
	"fmt"

	"github.com/binspecgo/binspec/bctx"
	"github.com/binspecgo/binspec/bitfield"
	"github.com/binspecgo/binspec/cond"
	"github.com/binspecgo/binspec/ctrl"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/expr"
	"github.com/binspecgo/binspec/hook"
	"github.com/binspecgo/binspec/valid"
	"github.com/binspecgo/binspec/xform"
)

func init() {
	// Installs the expression resolver for cond.Choice's path-based
	// selector: cond does not import expr and only learns about it through
	// this indirection (see cond.go's own comment).
	cond.SetPathResolver(expr.ResolvePath)
}

// Diagnostics is implemented by runtime error types that can report what
// was expected against what was actually observed;
// *valid.TestFailedError is the built-in example.
type Diagnostics interface {
	Expected() string
	Actual() string
}

// Options configures a single Read or Write call.
type Options struct {
	Context *bctx.Context
}

// Option mutates Options.
type Option func(*Options)

// WithContext attaches a shared context engine scratchpad,
// visible to every nested read/write in the call tree.
func WithContext(g *bctx.Context) Option {
	return func(o *Options) { o.Context = g }
}

func buildOptions(opts []Option) Options {
	o := Options{}
	for _, apply := range opts {
		apply(&o)
	}
	if o.Context == nil {
		o.Context = bctx.New()
	}
	return o
}

// Read parses data under the root type descriptor t and returns the
// resulting instance graph.
func Read(t *descriptor.TypeDescriptor, data []byte, endian cursor.Endian, opts ...Option) (*descriptor.Instance, error) {
	o := buildOptions(opts)
	cur := cursor.NewReader(data, endian)
	return readType(t, nil, cur, o.Context, nil, nil)
}

// Write serializes inst back to bytes under its own type descriptor.
func Write(t *descriptor.TypeDescriptor, inst *descriptor.Instance, endian cursor.Endian, opts ...Option) ([]byte, error) {
	o := buildOptions(opts)
	cur := cursor.NewWriter(endian)
	if err := writeType(t, inst, cur, o.Context, nil); err != nil {
		return nil, err
	}
	return cur.Bytes(), nil
}

// argName is the synthetic field name a resolved constructor argument is
// exposed under on a freshly-built nested instance, so the nested type's
// own field expressions can reference it by path (e.g. "_arg0") exactly as
// they would reference any other already-set sibling field.
func argName(i int) string { return fmt.Sprintf("_arg%d", i) }

// readType implements step 1-4 of the read loop for one instance of t.
// shareFrom, when non-nil, is the enclosing instance whose already-set
// fields SharePropertiesWithRelation injects before T's own fields are
// populated. args are the nested field's resolved constructor arguments,
// exposed on the new instance under synthetic "_argN" names.
func readType(t *descriptor.TypeDescriptor, parent *descriptor.Instance, cur *cursor.Cursor, g *bctx.Context, shareFrom *descriptor.Instance, args []any) (*descriptor.Instance, error) {
	inst := descriptor.NewInstance(t, parent)
	if shareFrom != nil {
		for _, name := range shareFrom.Fields() {
			v, _ := shareFrom.Get(name)
			inst.Set(name, v)
		}
	}
	for i, a := range args {
		inst.Set(argName(i), a)
	}

	if err := hook.RunClass(descriptor.KindPre, t, inst, cur); err != nil {
		return nil, err
	}

	if t.IsBitfieldClass() {
		if err := bitfield.Populate(t, inst, cur); err != nil {
			return nil, err
		}
		if err := hook.RunClass(descriptor.KindPost, t, inst, cur); err != nil {
			return nil, err
		}
		return inst, nil
	}

	for _, f := range t.Fields {
		if err := readField(f, inst, cur, g); err != nil {
			return nil, err
		}
	}

	if err := hook.RunClass(descriptor.KindPost, t, inst, cur); err != nil {
		return nil, err
	}
	return inst, nil
}

func readField(f *descriptor.FieldDescriptor, inst *descriptor.Instance, cur *cursor.Cursor, g *bctx.Context) error {
	if err := hook.RunField(descriptor.KindPre, f, inst, cur); err != nil {
		return err
	}
	if err := bctx.RunGet(f, g, inst); err != nil {
		return err
	}

	base, primTag, nested, nestedArgs, skip, err := resolveField(f, inst)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}
	if err := checkSelfReference(f, inst, base, nested); err != nil {
		return err
	}

	shareFrom := shareSource(f, inst)
	xrecs := xform.Records(f)
	primXform := xform.ByLevel(xrecs, xform.PrimitiveTransformer)

	readOnce := func(item any) (any, error) {
		var v any
		var rerr error
		switch base {
		case descriptor.BasePrimitive:
			v, rerr = cur.Read(primTag)
		case descriptor.BaseNested:
			args := resolveArgs(nestedArgs, inst)
			v, rerr = readType(nested(), inst, cur, g, shareFrom, args)
		default:
			return nil, &descriptor.RelationNotDefinedError{Type: inst.Type.Name, Property: f.Name}
		}
		if rerr != nil {
			return nil, rerr
		}
		// Primitive-level transforms run here, on each element as it is
		// read, not on the aggregated controller result.
		return xform.ApplyRead(primXform, v, inst)
	}

	rc := &ctrl.ReadCtx{Cursor: cur, Instance: inst, StartOffset: cur.Offset()}
	records := ctrl.Records(f)
	raw, err := ctrl.Run(records, rc, readOnce)
	if err != nil {
		return err
	}

	transformed, err := xform.ApplyRead(xform.ByLevel(xrecs, xform.Normal), raw, inst)
	if err != nil {
		return err
	}

	if err := valid.Check(valid.Records(f), f.Name, transformed, inst, cur.Offset()); err != nil {
		return err
	}

	inst.Set(f.Name, transformed)

	bctx.RunSet(f, g, inst)
	bctx.RunAppend(f, g, inst)

	if err := hook.RunField(descriptor.KindPost, f, inst, cur); err != nil {
		return err
	}
	return nil
}

// writeType mirrors readType: class pre, then each
// field in declared order, then class post. The instance already exists and
// is read-only except for ValueSet, which this package does not special-case:
// hook.ValueSet is a field post hook, so it runs after the field is written
// just as it runs after the field is read.
func writeType(t *descriptor.TypeDescriptor, inst *descriptor.Instance, cur *cursor.Cursor, g *bctx.Context, args []any) error {
	for i, a := range args {
		if _, already := inst.Get(argName(i)); !already {
			inst.Set(argName(i), a)
		}
	}

	if err := hook.RunClass(descriptor.KindPre, t, inst, cur); err != nil {
		return err
	}

	if t.IsBitfieldClass() {
		if err := bitfield.Write(t, inst, cur); err != nil {
			return err
		}
		return hook.RunClass(descriptor.KindPost, t, inst, cur)
	}

	for _, f := range t.Fields {
		if err := writeField(f, inst, cur, g); err != nil {
			return err
		}
	}
	return hook.RunClass(descriptor.KindPost, t, inst, cur)
}

func writeField(f *descriptor.FieldDescriptor, inst *descriptor.Instance, cur *cursor.Cursor, g *bctx.Context) error {
	if err := hook.RunField(descriptor.KindPre, f, inst, cur); err != nil {
		return err
	}
	// Context-get fires on both directions, so a field whose value lives in
	// the shared context (or a write-side controller expression that paths
	// through it) is seeded the same way it is on read.
	if err := bctx.RunGet(f, g, inst); err != nil {
		return err
	}

	base, primTag, nested, nestedArgs, skip, err := resolveField(f, inst)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	if err := checkSelfReference(f, inst, base, nested); err != nil {
		return err
	}

	stored, _ := inst.Get(f.Name)

	if err := valid.Check(valid.Records(f), f.Name, stored, inst, cur.Offset()); err != nil {
		return err
	}

	xrecs := xform.Records(f)
	primXform := xform.ByLevel(xrecs, xform.PrimitiveTransformer)

	raw, err := xform.ApplyWrite(xform.ByLevel(xrecs, xform.Normal), stored, inst)
	if err != nil {
		return err
	}

	shareFrom := shareSource(f, inst)

	writeOnce := func(item any, v any) error {
		// Primitive-level transforms invert here, on each element as it is
		// written, mirroring their per-element position on the read side.
		v, werr := xform.ApplyWrite(primXform, v, inst)
		if werr != nil {
			return werr
		}
		switch base {
		case descriptor.BasePrimitive:
			return cur.Write(primTag, v)
		case descriptor.BaseNested:
			nt := nested()
			nestedInst, ok := v.(*descriptor.Instance)
			if !ok {
				return fmt.Errorf("binspec: %s: expected a nested instance, got %T", f.Name, v)
			}
			if shareFrom != nil {
				for _, name := range shareFrom.Fields() {
					sv, _ := shareFrom.Get(name)
					if _, already := nestedInst.Get(name); !already {
						nestedInst.Set(name, sv)
					}
				}
			}
			return writeType(nt, nestedInst, cur, g, resolveArgs(nestedArgs, inst))
		default:
			return &descriptor.RelationNotDefinedError{Type: inst.Type.Name, Property: f.Name}
		}
	}

	wc := &ctrl.WriteCtx{Cursor: cur, Instance: inst, StartOffset: cur.Offset()}
	if err := ctrl.RunWrite(ctrl.Records(f), wc, raw, writeOnce); err != nil {
		return err
	}

	bctx.RunSet(f, g, inst)
	bctx.RunAppend(f, g, inst)

	return hook.RunField(descriptor.KindPost, f, inst, cur)
}

// resolveField implements read-loop step 3c: pick F's concrete base
// relation, either statically declared or resolved dynamically by the
// condition engine.
func resolveField(f *descriptor.FieldDescriptor, inst *descriptor.Instance) (base descriptor.BaseKind, primTag cursor.Tag, nested descriptor.LazyType, nestedArgs descriptor.ArgsResolver, skip bool, err error) {
	if f.HasKind(descriptor.KindCondition) {
		ref, matched, rerr := cond.Resolve(f, inst)
		if rerr != nil {
			return 0, 0, nil, nil, false, rerr
		}
		if !matched || ref.Kind() == descriptor.BaseUnknown {
			return 0, 0, nil, nil, true, nil
		}
		switch ref.Kind() {
		case descriptor.BasePrimitive:
			return descriptor.BasePrimitive, ref.Primitive(), nil, nil, false, nil
		case descriptor.BaseNested:
			nt, args := ref.Nested()
			return descriptor.BaseNested, 0, nt, args, false, nil
		default:
			return 0, 0, nil, nil, true, nil
		}
	}

	switch f.Base {
	case descriptor.BasePrimitive:
		return descriptor.BasePrimitive, f.PrimitiveTag, nil, nil, false, nil
	case descriptor.BaseNested:
		return descriptor.BaseNested, 0, f.NestedType, f.NestedArgs, false, nil
	default:
		return 0, 0, nil, nil, true, nil
	}
}

// checkSelfReference rejects an unconditional nested field whose lazy type
// resolves to its own declaring type. Such a field recurses forever: every
// element read re-enters the same type, and with no condition on the field
// nothing can ever pick a different branch. The check runs here rather
// than at declaration time because the usual forward-declared-var idiom
// means the lazy func only resolves once the declaring type exists.
func checkSelfReference(f *descriptor.FieldDescriptor, inst *descriptor.Instance, base descriptor.BaseKind, nested descriptor.LazyType) error {
	if base != descriptor.BaseNested || f.HasKind(descriptor.KindCondition) {
		return nil
	}
	if nested() == inst.Type {
		return &descriptor.SelfReferringFieldError{Type: inst.Type.Name, Property: f.Name}
	}
	return nil
}

// shareSource reports the enclosing instance to inject into a nested
// field's instance when SharePropertiesWithRelation is attached as a
// field-level pre hook (hook.SharePropertiesWithRelation).
func shareSource(f *descriptor.FieldDescriptor, inst *descriptor.Instance) *descriptor.Instance {
	for _, ar := range f.Records(descriptor.KindPre) {
		if hook.IsShareMarker(ar) {
			return inst
		}
	}
	return nil
}

func resolveArgs(resolver descriptor.ArgsResolver, inst *descriptor.Instance) []any {
	if resolver == nil {
		return nil
	}
	return resolver(inst)
}
