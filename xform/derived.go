package xform

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/binspecgo/binspec/descriptor"
)

// Derived decorators composed from the primitive transformer engine:
// Char, Ascii, Utf8/16/32, NullTerminated, TransformScale,
// TransformOffset, Flatten.

// CharTransform converts a read byte to a Go rune and back, the "Char = u8 +
// transform(int<->ascii)" decorator.
func CharTransform(opts ...Option) descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		b, ok := toByte(v)
		if !ok {
			return nil, fmt.Errorf("xform: Char: value %v is not byte-like", v)
		}
		return rune(b), nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		r, ok := v.(rune)
		if !ok {
			if b, ok := toByte(v); ok {
				return b, nil
			}
			return nil, fmt.Errorf("xform: Char: value %v is not a rune", v)
		}
		return byte(r), nil
	}
	return TransformRW("Char", read, write, opts...)
}

// Utf8Transform decodes the byte/char sequence as UTF-8 on read, and
// re-encodes the string to bytes on write. It accepts the controller's raw
// element sequence, a []byte, or an already-joined string, so it pairs
// directly with a Size or UntilEOF controller as binspec.Utf8 does.
func Utf8Transform() descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		s, err := toText(v)
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("xform: Utf8: invalid UTF-8")
		}
		return s, nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("xform: Utf8: value %v is not a string", v)
		}
		return []byte(s), nil
	}
	return TransformRW("Utf8", read, write)
}

// Utf16Transform decodes/encodes UTF-16 using golang.org/x/text/encoding/unicode;
// together with Utf32Transform it is one of the two places in this codebase
// that need a real multi-byte text codec rather than a 1:1 byte mapping.
func Utf16Transform(bigEndian bool) descriptor.FieldOption {
	endian := unicode.LittleEndian
	if bigEndian {
		endian = unicode.BigEndian
	}
	enc := unicode.UTF16(endian, unicode.IgnoreBOM)

	read := func(v any, _ *descriptor.Instance) (any, error) {
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return nil, fmt.Errorf("xform: Utf16: %w", err)
		}
		return string(out), nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("xform: Utf16: value %v is not a string", v)
		}
		out, err := enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("xform: Utf16: %w", err)
		}
		return out, nil
	}
	return TransformRW("Utf16", read, write)
}

// Utf32Transform decodes/encodes UTF-32 using
// golang.org/x/text/encoding/unicode/utf32, the same family of codec used
// by Utf16Transform.
func Utf32Transform(bigEndian bool) descriptor.FieldOption {
	endian := utf32.LittleEndian
	if bigEndian {
		endian = utf32.BigEndian
	}
	enc := utf32.UTF32(endian, utf32.IgnoreBOM)

	read := func(v any, _ *descriptor.Instance) (any, error) {
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return nil, fmt.Errorf("xform: Utf32: %w", err)
		}
		return string(out), nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("xform: Utf32: value %v is not a string", v)
		}
		out, err := enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("xform: Utf32: %w", err)
		}
		return out, nil
	}
	return TransformRW("Utf32", read, write)
}

// JoinTransform collapses a sequence of bytes/runes/strings into a single
// Go string on read, and splits a string back into a per-rune sequence on
// write, pairing with a per-element transform like CharTransform(WithEach())
// to build derived decorators such as Ascii.
func JoinTransform() descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		return toText(v)
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("xform: Join: value %v is not a string", v)
		}
		out := make([]any, 0, len(s))
		for _, r := range s {
			out = append(out, r)
		}
		return out, nil
	}
	return TransformRW("Join", read, write)
}

// NullTerminatedTransform strips a trailing NUL on read (appending one back
// on write), meant to pair with ctrl.Until(byte(0)).
func NullTerminatedTransform() descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		s, err := toText(v)
		if err != nil {
			return nil, err
		}
		if len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return s, nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("xform: NullTerminated: value %v is not a string", v)
		}
		return s + "\x00", nil
	}
	return TransformRW("NullTerminated", read, write)
}

// ScaleTransform multiplies by k on read and divides by k on write.
func ScaleTransform(k float64) descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		n, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return n * k, nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		n, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return n / k, nil
	}
	return TransformRW("TransformScale", read, write)
}

// OffsetTransform adds k on read and subtracts k on write.
func OffsetTransform(k float64) descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		n, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return n + k, nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		n, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return n - k, nil
	}
	return TransformRW("TransformOffset", read, write)
}

// FlattenTransform reads a nested value as T then picks property p out of
// it; on write it
// rebuilds a T instance with p set to the scalar, so the nested field's own
// write path (engine.writeType, which asserts its value is a
// *descriptor.Instance) sees exactly what it expects. t is the same lazy
// type the decorated field's Nested relation already names; it is passed
// here too because package xform has no other way to reach the field's own
// NestedType when the write func runs.
func FlattenTransform(t descriptor.LazyType, property string) descriptor.FieldOption {
	read := func(v any, _ *descriptor.Instance) (any, error) {
		inst, ok := v.(*descriptor.Instance)
		if !ok {
			return nil, fmt.Errorf("xform: Flatten: value is not a nested instance")
		}
		picked, ok := inst.Get(property)
		if !ok {
			return nil, fmt.Errorf("xform: Flatten: property %q not set on nested instance", property)
		}
		return picked, nil
	}
	write := func(v any, _ *descriptor.Instance) (any, error) {
		inst := descriptor.NewInstance(t(), nil)
		inst.Set(property, v)
		return inst, nil
	}
	return TransformRW("Flatten", read, write)
}

func toByte(v any) (byte, bool) {
	switch b := v.(type) {
	case byte:
		return b, true
	case rune:
		return byte(b), true
	default:
		return 0, false
	}
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []any:
		b := make([]byte, 0, len(s))
		for _, e := range s {
			bb, ok := toByte(e)
			if !ok {
				return "", fmt.Errorf("xform: sequence element %v is not byte-like", e)
			}
			b = append(b, bb)
		}
		return string(b), nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("xform: value %v is not text-like", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case []any:
		out := make([]byte, 0, len(b))
		for _, e := range b {
			bb, ok := toByte(e)
			if !ok {
				return nil, fmt.Errorf("xform: sequence element %v is not byte-like", e)
			}
			out = append(out, bb)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("xform: value %v is not byte-like", v)
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("xform: value %v is not numeric", v)
	}
}
