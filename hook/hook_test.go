package hook_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/expr"
	"github.com/binspecgo/binspec/hook"
)

func newInst(t *testing.T) *descriptor.Instance {
	t.Helper()
	typ, err := descriptor.NewType("T", descriptor.Field("_", cursor.U8))
	require.NoError(t, err)
	return descriptor.NewInstance(typ, nil)
}

func TestOffsetSeeksCursor(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, hook.Offset(expr.Int(3)))
	cur := cursor.NewReader([]byte{0, 0, 0, 42}, cursor.LittleEndian)
	inst := newInst(t)
	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	require.Equal(t, 3, cur.Offset())
}

func TestPeekRestoresPositionOnce(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, hook.Peek(expr.Int(1)))
	cur := cursor.NewReader([]byte{0, 9, 0}, cursor.LittleEndian)
	inst := newInst(t)

	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	require.Equal(t, 1, cur.Offset())
	cur.Forward(1)
	require.NoError(t, hook.RunField(descriptor.KindPost, f, inst, cur))
	require.Equal(t, 0, cur.Offset(), "post restores the pre-peek offset")

	// A second post run has nothing left to restore from (the post hook
	// self-removed), so the cursor should be untouched by a no-op.
	cur.Move(5)
	require.NoError(t, hook.RunField(descriptor.KindPost, f, inst, cur))
	require.Equal(t, 5, cur.Offset())
}

func TestEnsureSizeForwardsOnUnderConsumption(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, hook.EnsureSize(expr.Int(4)))
	cur := cursor.NewReader(make([]byte, 8), cursor.LittleEndian)
	inst := newInst(t)

	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	cur.Forward(1) // field itself only consumes 1 byte
	require.NoError(t, hook.RunField(descriptor.KindPost, f, inst, cur))
	require.Equal(t, 4, cur.Offset())
}

func TestPaddingAlignsToModulus(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, hook.Padding(expr.Int(4)))
	cur := cursor.NewReader(make([]byte, 8), cursor.LittleEndian)
	inst := newInst(t)

	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	cur.Forward(3)
	require.NoError(t, hook.RunField(descriptor.KindPost, f, inst, cur))
	require.Equal(t, 4, cur.Offset())
}

func TestEndianHookRestoresOnPost(t *testing.T) {
	f := descriptor.Field("x", cursor.U16, hook.Endian(cursor.BigEndian))
	cur := cursor.NewReader(make([]byte, 4), cursor.LittleEndian)
	inst := newInst(t)

	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	require.Equal(t, cursor.BigEndian, cur.GetEndian())
	require.NoError(t, hook.RunField(descriptor.KindPost, f, inst, cur))
	require.Equal(t, cursor.LittleEndian, cur.GetEndian())
}

func TestOnceHookRemovesItselfAfterFiring(t *testing.T) {
	calls := 0
	f := descriptor.Field("x", cursor.U8, hook.Pre(func(*descriptor.Instance, *cursor.Cursor) error {
		calls++
		return nil
	}, hook.WithOnce()))
	cur := cursor.NewReader([]byte{0}, cursor.LittleEndian)
	inst := newInst(t)

	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	require.NoError(t, hook.RunField(descriptor.KindPre, f, inst, cur))
	require.Equal(t, 1, calls)
}

func TestSharePropertiesWithRelationMarker(t *testing.T) {
	f := descriptor.Field("nested", cursor.U8, hook.SharePropertiesWithRelation())
	recs := f.Records(descriptor.KindPre)
	require.Len(t, recs, 1)
	require.True(t, hook.IsShareMarker(recs[0]))
}
