// Package hook implements the pre/post engine: field- and
// class-level side effects that run immediately before or after a field (or
// every field of a type) is read/written, used for seeking, padding,
// endianness switches, and propagating properties into relations.
package hook

import (
	"fmt"

	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/expr"
)

// Fn is a single pre/post action. inst is the instance the hook runs
// against (the field's enclosing instance for a field hook, the instance
// itself for a class hook); cur is the active cursor, shared for both the
// read and write loop.
type Fn func(inst *descriptor.Instance, cur *cursor.Cursor) error

// Options configure a hook record.
type Options struct {
	Once bool
}

// Option mutates Options.
type Option func(*Options)

// WithOnce marks a hook to remove itself from its owner after it fires
// once, the shape Peek uses internally to restore position exactly once.
func WithOnce() Option { return func(o *Options) { o.Once = true } }

func buildOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Record is one attached pre/post hook.
type Record struct {
	Name string
	Fn   Fn
	Opts Options
}

// Pre attaches a field-level pre-read/pre-write hook.
func Pre(fn Fn, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindPre, "Pre", &Record{Name: "Pre", Fn: fn, Opts: buildOptions(opts)})
	}
}

// Post attaches a field-level post-read/post-write hook.
func Post(fn Fn, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindPost, "Post", &Record{Name: "Post", Fn: fn, Opts: buildOptions(opts)})
	}
}

// ClassPre attaches a type-level pre hook, run once before the type's first
// field.
func ClassPre(name string, fn Fn, opts ...Option) descriptor.TypeOption {
	return func(t *descriptor.TypeDescriptor) error {
		return t.AddClassHook(descriptor.KindPre, &descriptor.AnnotationRecord{
			ID: descriptor.NextID(), Kind: descriptor.KindPre, Name: name,
			Payload: &Record{Name: name, Fn: fn, Opts: buildOptions(opts)},
		})
	}
}

// ClassPost attaches a type-level post hook, run once after the type's last
// field.
func ClassPost(name string, fn Fn, opts ...Option) descriptor.TypeOption {
	return func(t *descriptor.TypeDescriptor) error {
		return t.AddClassHook(descriptor.KindPost, &descriptor.AnnotationRecord{
			ID: descriptor.NextID(), Kind: descriptor.KindPost, Name: name,
			Payload: &Record{Name: name, Fn: fn, Opts: buildOptions(opts)},
		})
	}
}

// RunField executes every hook of kind (KindPre or KindPost) attached to f,
// in attachment order, self-removing any marked Once after it fires.
func RunField(kind descriptor.Kind, f *descriptor.FieldDescriptor, inst *descriptor.Instance, cur *cursor.Cursor) error {
	for _, ar := range f.Records(kind) {
		rec, ok := ar.Payload.(*Record)
		if !ok {
			continue
		}
		if err := rec.Fn(inst, cur); err != nil {
			return fmt.Errorf("hook: %s: %w", rec.Name, err)
		}
		if rec.Opts.Once {
			f.RemoveRecord(kind, ar.ID)
		}
	}
	return nil
}

// RunClass executes every class-level hook of kind attached to t.
func RunClass(kind descriptor.Kind, t *descriptor.TypeDescriptor, inst *descriptor.Instance, cur *cursor.Cursor) error {
	var list []*descriptor.AnnotationRecord
	switch kind {
	case descriptor.KindPre:
		list = t.ClassPre
	case descriptor.KindPost:
		list = t.ClassPost
	}
	for _, ar := range list {
		rec, ok := ar.Payload.(*Record)
		if !ok {
			continue
		}
		if err := rec.Fn(inst, cur); err != nil {
			return fmt.Errorf("hook: %s: %w", rec.Name, err)
		}
		if rec.Opts.Once {
			t.RemoveClassHook(kind, ar.ID)
		}
	}
	return nil
}

// Offset seeks the cursor to an absolute byte position before the field is
// read/written.
func Offset(n expr.IntExpr) descriptor.FieldOption {
	fn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
		pos, err := n.Eval(inst)
		if err != nil {
			return err
		}
		cur.Move(pos)
		return nil
	}
	return Pre(fn)
}

// Peek seeks to an absolute offset for one field, restoring the prior
// cursor position immediately afterward. The saved offset lives in the
// instance's private scratch space, keyed by the annotation's own id, so
// concurrent parses of cloned descriptors never share mutable state
// through a closure variable.
func Peek(n expr.IntExpr) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		var preID int
		preFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			key := fmt.Sprintf("hook.peek.%d", preID)
			inst.SetScratch(key, cur.Offset())
			pos, err := n.Eval(inst)
			if err != nil {
				return err
			}
			cur.Move(pos)

			// The restore hook is injected fresh on every firing and removes
			// itself after it runs, so a descriptor parsed repeatedly (or a
			// peeked field inside a counted nested type) restores the cursor
			// every time, not just on the first pass.
			postFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
				saved, ok := inst.Scratch(key)
				if !ok {
					return fmt.Errorf("hook: Peek: no saved offset for field %q", f.Name)
				}
				cur.Move(saved.(int))
				return nil
			}
			descriptor.AddAnnotation(f, descriptor.KindPost, "Peek", &Record{Name: "Peek", Fn: postFn, Opts: Options{Once: true}})
			return nil
		}
		preAR := descriptor.AddAnnotation(f, descriptor.KindPre, "Peek", &Record{Name: "Peek", Fn: preFn})
		preID = preAR.ID
	}
}

// EnsureSize corrects the cursor to land exactly n bytes past the field's
// start, truncating or skipping whatever the field's own read/write
// actually consumed. A corrective seek, not a validation check.
func EnsureSize(n expr.IntExpr) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		startKey := fmt.Sprintf("hook.ensuresize.%s", f.Name)
		preFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			inst.SetScratch(startKey, cur.Offset())
			return nil
		}
		postFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			start, ok := inst.Scratch(startKey)
			if !ok {
				return fmt.Errorf("hook: EnsureSize: no recorded start for field %q", f.Name)
			}
			want, err := n.Eval(inst)
			if err != nil {
				return err
			}
			if cur.Offset()-start.(int) != want {
				cur.Move(start.(int) + want)
			}
			return nil
		}
		descriptor.AddAnnotation(f, descriptor.KindPre, "EnsureSize", &Record{Name: "EnsureSize", Fn: preFn})
		descriptor.AddAnnotation(f, descriptor.KindPost, "EnsureSize", &Record{Name: "EnsureSize", Fn: postFn})
	}
}

// Padding aligns the cursor to the next multiple of n bytes relative to the
// field's start offset.
func Padding(n expr.IntExpr) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		startKey := fmt.Sprintf("hook.padding.%s", f.Name)
		preFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			inst.SetScratch(startKey, cur.Offset())
			return nil
		}
		postFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			start, ok := inst.Scratch(startKey)
			if !ok {
				return fmt.Errorf("hook: Padding: no recorded start for field %q", f.Name)
			}
			modulus, err := n.Eval(inst)
			if err != nil {
				return err
			}
			if modulus <= 0 {
				return nil
			}
			consumed := cur.Offset() - start.(int)
			pad := (modulus - consumed%modulus) % modulus
			if pad == 0 {
				return nil
			}
			if cur.IsWriter() {
				cur.WriteBytes(make([]byte, pad))
				return nil
			}
			cur.Forward(pad)
			return nil
		}
		descriptor.AddAnnotation(f, descriptor.KindPre, "Padding", &Record{Name: "Padding", Fn: preFn})
		descriptor.AddAnnotation(f, descriptor.KindPost, "Padding", &Record{Name: "Padding", Fn: postFn})
	}
}

// Endian switches byte order for this one field, restoring the previous
// order once the field has been processed. LittleEndian/BigEndian are the
// class-level forms, which set the order without restoring it.
func Endian(e cursor.Endian) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		var savedKey string
		preFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			savedKey = fmt.Sprintf("hook.endian.%s", f.Name)
			inst.SetScratch(savedKey, cur.GetEndian())
			cur.SetEndian(e)
			return nil
		}
		postFn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			saved, ok := inst.Scratch(savedKey)
			if ok {
				cur.SetEndian(saved.(cursor.Endian))
			}
			return nil
		}
		descriptor.AddAnnotation(f, descriptor.KindPre, "Endian", &Record{Name: "Endian", Fn: preFn})
		descriptor.AddAnnotation(f, descriptor.KindPost, "Endian", &Record{Name: "Endian", Fn: postFn})
	}
}

// LittleEndian sets the byte order for the scoped type and everything after
// it, class-level. Unlike the field-level Endian hook there is no restore:
// the switch is permanent for the rest of the stream.
func LittleEndian() descriptor.TypeOption {
	return classEndian(cursor.LittleEndian)
}

// BigEndian is LittleEndian's big-endian counterpart, equally permanent.
func BigEndian() descriptor.TypeOption {
	return classEndian(cursor.BigEndian)
}

func classEndian(e cursor.Endian) descriptor.TypeOption {
	return func(t *descriptor.TypeDescriptor) error {
		fn := func(inst *descriptor.Instance, cur *cursor.Cursor) error {
			cur.SetEndian(e)
			return nil
		}
		return t.AddClassHook(descriptor.KindPre, &descriptor.AnnotationRecord{
			ID: descriptor.NextID(), Kind: descriptor.KindPre, Name: "Endian", Payload: &Record{Name: "Endian", Fn: fn},
		})
	}
}

// ValueSet runs fn purely for its side effect on inst, computing and
// storing a derived property without consuming any bytes; typically
// bctx.Context.Set or inst.Set under the hood.
func ValueSet(fn func(inst *descriptor.Instance) error) descriptor.FieldOption {
	wrapped := func(inst *descriptor.Instance, _ *cursor.Cursor) error { return fn(inst) }
	return Post(wrapped)
}

// SharePropertiesWithRelation copies every currently-set property of the
// enclosing instance into the nested instance the field produces, so the
// nested type's own conditions/controllers can reference the parent's
// already-read fields by name. It must run as a pre-hook on the
// nested field, before the nested type's own fields are read, and is
// therefore implemented at the engine level rather than through Fn alone;
// this constructor returns the marker the engine recognizes.
func SharePropertiesWithRelation() descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindPre, "SharePropertiesWithRelation", &shareMarker{})
	}
}

// shareMarker is recognized by package engine; it carries no behavior of
// its own because sharing properties requires engine-level access to the
// not-yet-constructed nested instance, which this package cannot see.
type shareMarker struct{}

// IsShareMarker reports whether an annotation record is a
// SharePropertiesWithRelation marker, and is used by package engine to
// special-case it instead of invoking it as a plain Fn.
func IsShareMarker(ar *descriptor.AnnotationRecord) bool {
	_, ok := ar.Payload.(*shareMarker)
	return ok
}
