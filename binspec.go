package binspec

import (
	"github.com/binspecgo/binspec/bctx"
	"github.com/binspecgo/binspec/bitfield"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/engine"
)

// Re-exported data model types, so a format declaration only needs this
// package's import.
type (
	TypeDescriptor  = descriptor.TypeDescriptor
	FieldDescriptor = descriptor.FieldDescriptor
	FieldOption     = descriptor.FieldOption
	TypeOption      = descriptor.TypeOption
	Instance        = descriptor.Instance
	LazyType        = descriptor.LazyType
	ArgsResolver    = descriptor.ArgsResolver
	Endian          = cursor.Endian
	Context         = bctx.Context
	Option          = engine.Option
)

// Byte order constants, forwarded from package cursor.
const (
	LittleEndian = cursor.LittleEndian
	BigEndian    = cursor.BigEndian
)

// NewType builds a regular type descriptor from an ordered field list.
func NewType(name string, fields ...*FieldDescriptor) (*TypeDescriptor, error) {
	return descriptor.NewType(name, fields...)
}

// NewTypeWith builds a regular type descriptor and applies class-level
// options (class pre/post hooks, a permanent LittleEndian/BigEndian scope).
func NewTypeWith(name string, opts []TypeOption, fields ...*FieldDescriptor) (*TypeDescriptor, error) {
	return descriptor.NewTypeWith(name, opts, fields...)
}

// NewBitfieldType builds a bit-field class from an ordered member list.
func NewBitfieldType(name string, members ...bitfield.Member) (*TypeDescriptor, error) {
	raw := make([]any, len(members))
	for i, m := range members {
		raw[i] = m
	}
	return descriptor.NewBitfieldType(name, raw...)
}

// NewBitfieldTypeWith builds a bit-field class and applies class-level
// options to it.
func NewBitfieldTypeWith(name string, opts []TypeOption, members ...bitfield.Member) (*TypeDescriptor, error) {
	raw := make([]any, len(members))
	for i, m := range members {
		raw[i] = m
	}
	return descriptor.NewBitfieldTypeWith(name, opts, raw...)
}

// Field declares a primitive-typed field.
func Field(name string, tag cursor.Tag, opts ...FieldOption) *FieldDescriptor {
	return descriptor.Field(name, tag, opts...)
}

// Nested declares a field whose value is parsed by another type descriptor.
func Nested(name string, typ LazyType, args ArgsResolver, opts ...FieldOption) *FieldDescriptor {
	return descriptor.NestedField(name, typ, args, opts...)
}

// Unknown declares a field with no static base relation; a condition
// annotation must resolve its concrete descriptor at read/write time.
func Unknown(name string, opts ...FieldOption) *FieldDescriptor {
	return descriptor.UnknownField(name, opts...)
}

// WithContext attaches a shared context engine scratchpad to a Read/Write
// call.
func WithContext(g *Context) Option { return engine.WithContext(g) }

// NewContext returns an empty context engine scratchpad.
func NewContext() *Context { return bctx.New() }

// Read parses data under the root type descriptor t.
func Read(t *TypeDescriptor, data []byte, endian Endian, opts ...Option) (*Instance, error) {
	return engine.Read(t, data, endian, opts...)
}

// Write serializes inst back to bytes under its own type descriptor.
func Write(t *TypeDescriptor, inst *Instance, endian Endian, opts ...Option) ([]byte, error) {
	return engine.Write(t, inst, endian, opts...)
}
