package engine_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binspecgo/binspec/bctx"
	"github.com/binspecgo/binspec/bitfield"
	"github.com/binspecgo/binspec/cond"
	"github.com/binspecgo/binspec/ctrl"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/engine"
	"github.com/binspecgo/binspec/expr"
	"github.com/binspecgo/binspec/hook"
	"github.com/binspecgo/binspec/xform"
)

func TestReadWritePreservesDeclarationOrder(t *testing.T) {
	typ, err := descriptor.NewType("Pair",
		descriptor.Field("a", cursor.U8),
		descriptor.Field("b", cursor.U8),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{1, 2}, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, inst.Fields())

	out, err := engine.Write(typ, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, out)
}

func TestNestedFieldProducesChildInstance(t *testing.T) {
	coord, err := descriptor.NewType("Coord",
		descriptor.Field("x", cursor.U8),
		descriptor.Field("y", cursor.U8),
	)
	require.NoError(t, err)

	line, err := descriptor.NewType("Line",
		descriptor.NestedField("from", func() *descriptor.TypeDescriptor { return coord }, nil),
		descriptor.NestedField("to", func() *descriptor.TypeDescriptor { return coord }, nil),
	)
	require.NoError(t, err)

	inst, err := engine.Read(line, []byte{1, 2, 3, 4}, cursor.LittleEndian)
	require.NoError(t, err)

	from, ok := inst.Get("from")
	require.True(t, ok)
	fromInst := from.(*descriptor.Instance)
	x, _ := fromInst.Get("x")
	y, _ := fromInst.Get("y")
	require.Equal(t, uint8(1), x)
	require.Equal(t, uint8(2), y)

	out, err := engine.Write(line, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestFlattenTransformRoundTripsThroughNestedWrite(t *testing.T) {
	box, err := descriptor.NewType("Box", descriptor.Field("v", cursor.U8))
	require.NoError(t, err)
	lazyBox := func() *descriptor.TypeDescriptor { return box }

	wrapper, err := descriptor.NewType("Wrapper",
		descriptor.NestedField("v", lazyBox, nil, xform.FlattenTransform(lazyBox, "v")),
	)
	require.NoError(t, err)

	inst, err := engine.Read(wrapper, []byte{42}, cursor.LittleEndian)
	require.NoError(t, err)
	v, ok := inst.Get("v")
	require.True(t, ok)
	require.Equal(t, uint8(42), v, "Flatten picks the nested instance's v property straight through")

	out, err := engine.Write(wrapper, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{42}, out, "Flatten's write side rebuilds a real nested instance for writeType to consume")
}

func TestCountByReferenceRoundTrip(t *testing.T) {
	typ, err := descriptor.NewType("Buf",
		descriptor.Field("n", cursor.U8),
		descriptor.Field("items", cursor.U8, ctrl.Count(ctrl.Expr("n"))),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{3, 10, 20, 30, 99}, cursor.LittleEndian)
	require.NoError(t, err)
	items, _ := inst.Get("items")
	require.Equal(t, []any{uint8(10), uint8(20), uint8(30)}, items)

	out, err := engine.Write(typ, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 10, 20, 30}, out)
}

func TestBitfieldLayoutMSBFirst(t *testing.T) {
	// 0x11 == 0b00010001: a 2-bit carrier-top member, then two 1-bit flags,
	// then a 4-bit trailer (2 + 1 + 1 + 4 = 8 bits total).
	typ, err := descriptor.NewBitfieldType("Flags",
		bitfield.Bit("top", 2),
		bitfield.Bit("a", 1),
		bitfield.Bit("b", 1),
		bitfield.Bit("rest", 4),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{0x11}, cursor.LittleEndian)
	require.NoError(t, err)

	top, _ := inst.Get("top")
	a, _ := inst.Get("a")
	b, _ := inst.Get("b")
	rest, _ := inst.Get("rest")
	require.Equal(t, uint64(0), top)
	require.Equal(t, uint64(0), a)
	require.Equal(t, uint64(1), b)
	require.Equal(t, uint64(1), rest)

	out, err := engine.Write(typ, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{0x11}, out)
}

func TestChoiceDispatchesOnTagByte(t *testing.T) {
	intPayload, err := descriptor.NewType("IntPayload", descriptor.Field("v", cursor.U8))
	require.NoError(t, err)
	strPayload, err := descriptor.NewType("StrPayload", descriptor.Field("v", cursor.U8))
	require.NoError(t, err)

	envelope, err := descriptor.NewType("Envelope",
		descriptor.Field("tag", cursor.U8),
		descriptor.UnknownField("body",
			cond.Choice(
				cond.BySelectorPath("tag"),
				[]cond.Case{
					{Key: uint8(1), Type: cond.AsNested(func() *descriptor.TypeDescriptor { return intPayload }, nil)},
					{Key: uint8(2), Type: cond.AsNested(func() *descriptor.TypeDescriptor { return strPayload }, nil)},
				},
				cond.Absent,
			),
		),
	)
	require.NoError(t, err)

	inst, err := engine.Read(envelope, []byte{2, 42}, cursor.LittleEndian)
	require.NoError(t, err)
	body, ok := inst.Get("body")
	require.True(t, ok)
	bodyInst := body.(*descriptor.Instance)
	require.Equal(t, strPayload, bodyInst.Type)

	out, err := engine.Write(envelope, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 42}, out)
}

func TestUntilEOFDoesNotPropagateEndOfInput(t *testing.T) {
	typ, err := descriptor.NewType("Paragraph",
		descriptor.Field("text", cursor.U8, ctrl.UntilEOF()),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte("hi"), cursor.LittleEndian)
	require.NoError(t, err)
	text, _ := inst.Get("text")
	require.Equal(t, []any{uint8('h'), uint8('i')}, text)
}

func TestUnconditionalSelfReferenceFailsAtReadTime(t *testing.T) {
	var node *descriptor.TypeDescriptor
	var err error
	node, err = descriptor.NewType("Node",
		descriptor.Field("val", cursor.U8),
		descriptor.NestedField("next", func() *descriptor.TypeDescriptor { return node }, nil),
	)
	require.NoError(t, err, "construction succeeds; the cycle is only observable once the lazy type resolves")

	_, err = engine.Read(node, []byte{1, 2, 3}, cursor.LittleEndian)
	require.Error(t, err)
	var selfRef *descriptor.SelfReferringFieldError
	require.ErrorAs(t, err, &selfRef)
	require.Equal(t, "next", selfRef.Property)
	require.ErrorIs(t, err, descriptor.ErrSelfReferringField)
}

func TestConditionedRecursiveTypeTerminates(t *testing.T) {
	// A linked list of u8 values: each node carries a has-next flag, and the
	// recursive field only resolves while the flag is set.
	var node *descriptor.TypeDescriptor
	var err error
	node, err = descriptor.NewType("Node",
		descriptor.Field("val", cursor.U8),
		descriptor.Field("hasNext", cursor.U8),
		descriptor.UnknownField("next",
			cond.IfThen(func(inst *descriptor.Instance) bool {
				v, _ := inst.Get("hasNext")
				return v == uint8(1)
			}, cond.AsNested(func() *descriptor.TypeDescriptor { return node }, nil)),
			cond.Else(cond.Absent),
		),
	)
	require.NoError(t, err)

	inst, err := engine.Read(node, []byte{10, 1, 20, 0}, cursor.LittleEndian)
	require.NoError(t, err)
	next, ok := inst.Get("next")
	require.True(t, ok)
	tail := next.(*descriptor.Instance)
	val, _ := tail.Get("val")
	require.Equal(t, uint8(20), val)
	_, ok = tail.Get("next")
	require.False(t, ok, "the terminal node's recursive field stays unset")

	out, err := engine.Write(node, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{10, 1, 20, 0}, out)
}

func TestPeekRestoresOffsetAfterOneField(t *testing.T) {
	typ, err := descriptor.NewType("T",
		descriptor.Field("peeked", cursor.U8, hook.Peek(expr.Int(2))),
		descriptor.Field("first", cursor.U8),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{10, 20, 30}, cursor.LittleEndian)
	require.NoError(t, err)
	peeked, _ := inst.Get("peeked")
	first, _ := inst.Get("first")
	require.Equal(t, uint8(30), peeked)
	require.Equal(t, uint8(10), first, "cursor position is restored to before the peeked field")
}

func TestPeekRestoresOffsetOnEveryParse(t *testing.T) {
	typ, err := descriptor.NewType("T",
		descriptor.Field("peeked", cursor.U8, hook.Peek(expr.Int(2))),
		descriptor.Field("first", cursor.U8),
	)
	require.NoError(t, err)

	// The restore hook re-arms itself each firing, so the same descriptor
	// parses correctly more than once.
	for i := 0; i < 2; i++ {
		inst, err := engine.Read(typ, []byte{10, 20, 30}, cursor.LittleEndian)
		require.NoError(t, err)
		peeked, _ := inst.Get("peeked")
		first, _ := inst.Get("first")
		require.Equal(t, uint8(30), peeked)
		require.Equal(t, uint8(10), first)
	}
}

func TestEnsureSizeCorrectsUnderConsumption(t *testing.T) {
	typ, err := descriptor.NewType("Padded",
		descriptor.Field("a", cursor.U8, hook.EnsureSize(expr.Int(4))),
		descriptor.Field("b", cursor.U8),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{1, 0, 0, 0, 99}, cursor.LittleEndian)
	require.NoError(t, err)
	a, _ := inst.Get("a")
	b, _ := inst.Get("b")
	require.Equal(t, uint8(1), a)
	require.Equal(t, uint8(99), b, "EnsureSize forwarded the cursor past the 4-byte slot")
}

func TestEndianHookRestoresPreviousOrder(t *testing.T) {
	typ, err := descriptor.NewType("Mixed",
		descriptor.Field("be", cursor.U16, hook.Endian(cursor.BigEndian)),
		descriptor.Field("le", cursor.U16),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{0x00, 0x01, 0x01, 0x00}, cursor.LittleEndian)
	require.NoError(t, err)
	be, _ := inst.Get("be")
	le, _ := inst.Get("le")
	require.Equal(t, uint16(1), be, "read as big-endian while the hook is active")
	require.Equal(t, uint16(1), le, "endian is restored to little for the next field")
}

func TestClassBigEndianIsPermanentForTheRestOfTheStream(t *testing.T) {
	inner, err := descriptor.NewTypeWith("Inner",
		[]descriptor.TypeOption{hook.BigEndian()},
		descriptor.Field("v", cursor.U16),
	)
	require.NoError(t, err)

	root, err := descriptor.NewType("Root",
		descriptor.NestedField("in", func() *descriptor.TypeDescriptor { return inner }, nil),
		descriptor.Field("after", cursor.U16),
	)
	require.NoError(t, err)

	inst, err := engine.Read(root, []byte{0x00, 0x01, 0x00, 0x02}, cursor.LittleEndian)
	require.NoError(t, err)
	in := inst.MustGet("in").(*descriptor.Instance)
	v, _ := in.Get("v")
	require.Equal(t, uint16(1), v, "the scoped type itself reads big-endian")
	after, _ := inst.Get("after")
	require.Equal(t, uint16(2), after, "unlike the field-level Endian hook, the class scope does not restore")

	out, err := engine.Write(root, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x01, 0x00, 0x02}, out)
}

func TestClassHooksFireAroundTheFieldList(t *testing.T) {
	var calls []string
	typ, err := descriptor.NewTypeWith("T",
		[]descriptor.TypeOption{
			hook.ClassPre("mark", func(*descriptor.Instance, *cursor.Cursor) error {
				calls = append(calls, "class-pre")
				return nil
			}),
			hook.ClassPost("mark", func(*descriptor.Instance, *cursor.Cursor) error {
				calls = append(calls, "class-post")
				return nil
			}),
		},
		descriptor.Field("x", cursor.U8, hook.Pre(func(*descriptor.Instance, *cursor.Cursor) error {
			calls = append(calls, "field-pre")
			return nil
		})),
	)
	require.NoError(t, err)

	_, err = engine.Read(typ, []byte{1}, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []string{"class-pre", "field-pre", "class-post"}, calls)
}

func TestContextGetSeedsTheWritePath(t *testing.T) {
	typ, err := descriptor.NewType("T",
		descriptor.Field("n", cursor.U8, bctx.Get("shared.n")),
	)
	require.NoError(t, err)

	// The instance deliberately has no value for n; context-get must supply
	// it before the write, just as it does before a read.
	inst := descriptor.NewInstance(typ, nil)
	g := bctx.New()
	g.Set("shared.n", uint8(7))

	out, err := engine.Write(typ, inst, cursor.LittleEndian, engine.WithContext(g))
	require.NoError(t, err)
	require.Equal(t, []byte{7}, out)
}

func TestPrimitiveLevelTransformRunsPerElement(t *testing.T) {
	// The read fn asserts it receives a scalar: were the transform applied to
	// the aggregated []any instead, the assertion would fail the parse.
	typ, err := descriptor.NewType("T",
		descriptor.Field("xs", cursor.U8,
			ctrl.Count(ctrl.N(3)),
			xform.TransformRW("shift",
				func(v any, _ *descriptor.Instance) (any, error) {
					b, ok := v.(uint8)
					if !ok {
						return nil, fmt.Errorf("expected a scalar element, got %T", v)
					}
					return b + 1, nil
				},
				func(v any, _ *descriptor.Instance) (any, error) {
					return v.(uint8) - 1, nil
				},
				xform.WithPrimitiveLevel()),
		),
	)
	require.NoError(t, err)

	inst, err := engine.Read(typ, []byte{1, 2, 3}, cursor.LittleEndian)
	require.NoError(t, err)
	xs, _ := inst.Get("xs")
	require.Equal(t, []any{uint8(2), uint8(3), uint8(4)}, xs)

	out, err := engine.Write(typ, inst, cursor.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, out, "the write side inverts per element too")
}
