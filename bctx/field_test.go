package bctx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binspecgo/binspec/bctx"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
)

func TestRunGetSeedsFieldFromContext(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, bctx.Get("shared.count"))
	typ, err := descriptor.NewType("T", f)
	require.NoError(t, err)
	inst := descriptor.NewInstance(typ, nil)

	g := bctx.New()
	g.Set("shared.count", uint8(5))
	require.NoError(t, bctx.RunGet(f, g, inst))

	v, ok := inst.Get("x")
	require.True(t, ok)
	require.Equal(t, uint8(5), v)
}

func TestRunGetThrowsOnMissingKeyWithNoDefault(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, bctx.Get("missing"))
	typ, err := descriptor.NewType("T", f)
	require.NoError(t, err)
	inst := descriptor.NewInstance(typ, nil)

	require.Error(t, bctx.RunGet(f, bctx.New(), inst))
}

func TestGetDefaultFallsBackWhenKeyAbsent(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, bctx.GetDefault("missing", uint8(9)))
	typ, err := descriptor.NewType("T", f)
	require.NoError(t, err)
	inst := descriptor.NewInstance(typ, nil)

	require.NoError(t, bctx.RunGet(f, bctx.New(), inst))
	v, _ := inst.Get("x")
	require.Equal(t, uint8(9), v)
}

func TestRunSetPushesFieldValueIntoContext(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, bctx.Set("shared.x"))
	typ, err := descriptor.NewType("T", f)
	require.NoError(t, err)
	inst := descriptor.NewInstance(typ, nil)
	inst.Set("x", uint8(3))

	g := bctx.New()
	bctx.RunSet(f, g, inst)
	v, ok := g.Get("shared.x")
	require.True(t, ok)
	require.Equal(t, uint8(3), v)
}

func TestRunAppendAccumulatesAcrossRepeatedFields(t *testing.T) {
	f := descriptor.Field("x", cursor.U8, bctx.Append("shared.list"))
	typ, err := descriptor.NewType("T", f)
	require.NoError(t, err)
	inst := descriptor.NewInstance(typ, nil)
	g := bctx.New()

	inst.Set("x", uint8(1))
	bctx.RunAppend(f, g, inst)
	inst.Set("x", uint8(2))
	bctx.RunAppend(f, g, inst)

	v, ok := g.Get("shared.list")
	require.True(t, ok)
	require.Equal(t, []any{uint8(1), uint8(2)}, v)
}
