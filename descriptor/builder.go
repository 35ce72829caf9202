package descriptor

import "github.com/binspecgo/binspec/cursor"

// FieldOption mutates a FieldDescriptor while it is being declared. Every
// annotation family (cond, ctrl, xform, valid, hook, bctx) exposes
// constructors that return a FieldOption, so a declaration composes
// annotations the same way regardless of which family they come from.
type FieldOption func(*FieldDescriptor)

// TypeOption mutates a TypeDescriptor after its fields are declared: the
// class-level counterpart of FieldOption, used for class pre/post hooks and
// the permanent byte-order scope (hook.ClassPre/ClassPost,
// hook.LittleEndian/BigEndian).
type TypeOption func(*TypeDescriptor) error

// NewTypeWith builds a type descriptor like NewType and then applies
// class-level options to it.
func NewTypeWith(name string, opts []TypeOption, fields ...*FieldDescriptor) (*TypeDescriptor, error) {
	t, err := NewType(name, fields...)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewBitfieldTypeWith builds a bit-field class like NewBitfieldType and then
// applies class-level options to it, so a bit-field carrier can be scoped
// LittleEndian/BigEndian like any regular type.
func NewBitfieldTypeWith(name string, opts []TypeOption, members ...any) (*TypeDescriptor, error) {
	t, err := NewBitfieldType(name, members...)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Field declares a primitive-typed field.
func Field(name string, tag cursor.Tag, opts ...FieldOption) *FieldDescriptor {
	f := newField(name)
	f.Base = BasePrimitive
	f.PrimitiveTag = tag
	f.hasRelation = true
	apply(f, opts)
	return f
}

// NestedField declares a field whose value is itself parsed by another type
// descriptor. typ is lazy so that forward/recursive references
// can be declared before the referenced type exists.
func NestedField(name string, typ LazyType, args ArgsResolver, opts ...FieldOption) *FieldDescriptor {
	f := newField(name)
	f.Base = BaseNested
	f.NestedType = typ
	f.NestedArgs = args
	f.hasRelation = true
	apply(f, opts)
	return f
}

// UnknownField declares a field with no static base relation; a Condition
// annotation (typically Select) must resolve its concrete descriptor at
// read/write time. NewType rejects an UnknownField that carries no
// condition; when conditions are attached but none matches, the read/write
// fails with cond.NoConditionMatchedError. The property is left unset only
// when the matching condition resolves to cond.Absent.
func UnknownField(name string, opts ...FieldOption) *FieldDescriptor {
	f := newField(name)
	f.Base = BaseUnknown
	apply(f, opts)
	return f
}

func apply(f *FieldDescriptor, opts []FieldOption) {
	for _, opt := range opts {
		opt(f)
	}
}

// AddAnnotation appends a new annotation record of the given kind to a
// field and returns it, for use by annotation-family packages implementing
// FieldOption constructors.
func AddAnnotation(f *FieldDescriptor, kind Kind, name string, payload any) *AnnotationRecord {
	rec := &AnnotationRecord{ID: NextID(), Kind: kind, Name: name, Property: f.Name, Payload: payload}
	f.annotations[kind] = append(f.annotations[kind], rec)
	return rec
}
