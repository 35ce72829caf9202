package binspec_test

import (
	"fmt"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/binspecgo/binspec"
	"github.com/binspecgo/binspec/bitfield"
	"github.com/binspecgo/binspec/cond"
	"github.com/binspecgo/binspec/ctrl"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/xform"
)

// instanceFields flattens an Instance's own declared-order fields into a
// plain map for structural comparison with go-cmp, so a test doesn't have to
// know about Instance's private order/scratch bookkeeping.
func instanceFields(inst *binspec.Instance) map[string]any {
	out := map[string]any{}
	for _, name := range inst.Fields() {
		v, _ := inst.Get(name)
		if nested, ok := v.(*binspec.Instance); ok {
			out[name] = instanceFields(nested)
			continue
		}
		out[name] = v
	}
	return out
}

// TestTwoUint8FieldsRoundTrip covers the smallest useful format: a type
// with two independent u8 fields.
func TestTwoUint8FieldsRoundTrip(t *testing.T) {
	typ, err := binspec.NewType("Pair",
		binspec.Uint8("a"),
		binspec.Uint8("b"),
	)
	require.NoError(t, err)

	data := []byte{10, 20}
	inst, err := binspec.Read(typ, data, binspec.LittleEndian)
	require.NoError(t, err)

	want := map[string]any{"a": uint8(10), "b": uint8(20)}
	require.True(t, cmp.Equal(instanceFields(inst), want), cmp.Diff(instanceFields(inst), want))

	out, err := binspec.Write(typ, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, data, out)

	snaps.MatchSnapshot(t, "two_uint8_wire_bytes", fmt.Sprintf("% x", out))
}

// TestNestedCoordRoundTrip reads a Line built from two Coord{x, y}
// sub-instances and writes it back.
func TestNestedCoordRoundTrip(t *testing.T) {
	coord, err := binspec.NewType("Coord",
		binspec.Uint8("x"),
		binspec.Uint8("y"),
	)
	require.NoError(t, err)

	line, err := binspec.NewType("Line",
		binspec.Nested("from", func() *binspec.TypeDescriptor { return coord }, nil),
		binspec.Nested("to", func() *binspec.TypeDescriptor { return coord }, nil),
	)
	require.NoError(t, err)

	data := []byte{1, 1, 9, 9}
	inst, err := binspec.Read(line, data, binspec.LittleEndian)
	require.NoError(t, err)

	want := map[string]any{
		"from": map[string]any{"x": uint8(1), "y": uint8(1)},
		"to":   map[string]any{"x": uint8(9), "y": uint8(9)},
	}
	require.Empty(t, cmp.Diff(want, instanceFields(inst)))

	out, err := binspec.Write(line, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

// TestCountByReferenceBufferRoundTrip parses a length-prefixed byte
// buffer whose count comes from an earlier field.
func TestCountByReferenceBufferRoundTrip(t *testing.T) {
	typ, err := binspec.NewType("Buffer",
		binspec.Uint8("length"),
		binspec.Uint8("payload", ctrl.Count(ctrl.Expr("length"))),
	)
	require.NoError(t, err)

	data := []byte{4, 1, 2, 3, 4}
	inst, err := binspec.Read(typ, data, binspec.LittleEndian)
	require.NoError(t, err)

	payload, ok := inst.Get("payload")
	require.True(t, ok)
	require.Equal(t, []any{uint8(1), uint8(2), uint8(3), uint8(4)}, payload)

	out, err := binspec.Write(typ, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

// TestBitfieldByteUnpacksToThreeMembers unpacks 0x11 (0b00010001) to
// {flag1: 0, flag2: 0, rest: 17} under a 1/1/6-bit MSB-first layout.
func TestBitfieldByteUnpacksToThreeMembers(t *testing.T) {
	typ, err := binspec.NewBitfieldType("Flags",
		bitfield.Bit("flag1", 1),
		bitfield.Bit("flag2", 1),
		bitfield.Bit("rest", 6),
	)
	require.NoError(t, err)

	inst, err := binspec.Read(typ, []byte{0x11}, binspec.LittleEndian)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(
		map[string]any{"flag1": uint64(0), "flag2": uint64(0), "rest": uint64(0x11)},
		instanceFields(inst),
	))

	out, err := binspec.Write(typ, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{0x11}, out)
}

// TestChoiceSeedScenarioDispatchesByTag checks that a tag byte selects
// among payload shapes.
func TestChoiceSeedScenarioDispatchesByTag(t *testing.T) {
	small, err := binspec.NewType("Small", binspec.Uint8("v"))
	require.NoError(t, err)
	large, err := binspec.NewType("Large", binspec.Uint16("v"))
	require.NoError(t, err)

	msg, err := binspec.NewType("Message",
		binspec.Uint8("tag"),
		binspec.Unknown("body",
			cond.Choice(
				cond.BySelectorPath("tag"),
				[]cond.Case{
					{Key: uint8(0), Type: cond.AsNested(func() *binspec.TypeDescriptor { return small }, nil)},
					{Key: uint8(1), Type: cond.AsNested(func() *binspec.TypeDescriptor { return large }, nil)},
				},
				cond.Absent,
			),
		),
	)
	require.NoError(t, err)

	data := []byte{1, 0x34, 0x12}
	inst, err := binspec.Read(msg, data, binspec.LittleEndian)
	require.NoError(t, err)
	body := instanceFields(inst)["body"].(map[string]any)
	require.Equal(t, uint16(0x1234), body["v"])

	out, err := binspec.Write(msg, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

// TestUntilEOFUtf8ParagraphRoundTrip consumes the remainder of the buffer
// as a UTF-8 paragraph with no length prefix.
func TestUntilEOFUtf8ParagraphRoundTrip(t *testing.T) {
	typ, err := binspec.NewType("Document",
		binspec.Uint8("version"),
		binspec.Field("paragraph", cursor.U8,
			ctrl.UntilEOF(),
			xform.Utf8Transform(),
		),
	)
	require.NoError(t, err)

	data := append([]byte{1}, []byte("hello, world")...)
	inst, err := binspec.Read(typ, data, binspec.LittleEndian)
	require.NoError(t, err)

	paragraph, ok := inst.Get("paragraph")
	require.True(t, ok)
	require.Equal(t, "hello, world", paragraph)

	out, err := binspec.Write(typ, inst, binspec.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, data, out)
}
