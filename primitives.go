package binspec

import (
	"github.com/binspecgo/binspec/ctrl"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/xform"
)

// Primitive-typed field constructors, one per cursor.Tag, so a format
// declaration rarely has to spell out the tag directly.

func Uint8(name string, opts ...FieldOption) *FieldDescriptor  { return Field(name, cursor.U8, opts...) }
func Uint16(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.U16, opts...) }
func Uint32(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.U32, opts...) }
func Uint64(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.U64, opts...) }

func Int8(name string, opts ...FieldOption) *FieldDescriptor  { return Field(name, cursor.I8, opts...) }
func Int16(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.I16, opts...) }
func Int32(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.I32, opts...) }
func Int64(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.I64, opts...) }

func Float32(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.F32, opts...) }
func Float64(name string, opts ...FieldOption) *FieldDescriptor { return Field(name, cursor.F64, opts...) }

// Char declares a u8 field decorated with the int<->ASCII transform.
func Char(name string, opts ...FieldOption) *FieldDescriptor {
	return Field(name, cursor.Char, append([]FieldOption{xform.CharTransform()}, opts...)...)
}

// Ascii declares a Count-driven run of bytes converted to runes one at a
// time, then joined into a Go string.
// CharTransform runs with WithEach so it maps over the aggregated byte
// sequence instead of expecting a single scalar; Join then collapses that
// sequence into a string.
func Ascii(name string, n ctrl.IntExpr, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Count(n),
		xform.CharTransform(xform.WithEach()),
		xform.JoinTransform(),
	}, opts...)
	return Field(name, cursor.U8, full...)
}

// Utf8 declares a byte run decoded/encoded as UTF-8.
func Utf8(name string, size ctrl.IntExpr, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Size(size),
		xform.Utf8Transform(),
	}, opts...)
	return Field(name, cursor.U8, full...)
}

// Utf16 declares a byte run decoded/encoded as UTF-16 of the given byte order.
func Utf16(name string, size ctrl.IntExpr, bigEndian bool, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Size(size),
		xform.Utf16Transform(bigEndian),
	}, opts...)
	return Field(name, cursor.U8, full...)
}

// Utf32 declares a byte run decoded/encoded as UTF-32 of the given byte order.
func Utf32(name string, size ctrl.IntExpr, bigEndian bool, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Size(size),
		xform.Utf32Transform(bigEndian),
	}, opts...)
	return Field(name, cursor.U8, full...)
}

// NullTerminated declares a byte run read until a NUL sentinel, with the
// trailing NUL kept in the element sequence.
func NullTerminated(name string, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Until(byte(0)),
	}, opts...)
	return Field(name, cursor.U8, full...)
}

// NullTerminatedString is NullTerminated joined into a Go string, with the
// sentinel byte stripped on read / re-appended on write.
func NullTerminatedString(name string, opts ...FieldOption) *FieldDescriptor {
	full := append([]FieldOption{
		ctrl.Until(byte(0)),
		xform.NullTerminatedTransform(),
	}, opts...)
	return Field(name, cursor.U8, full...)
}
