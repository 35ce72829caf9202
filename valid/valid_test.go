package valid_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/valid"
)

func TestMatchScalarPasses(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Match(uint8(5)))
	err := valid.Check(valid.Records(f), "x", uint8(5), nil, 0)
	require.NoError(t, err)
}

func TestMatchScalarFailsReturnsTestFailedError(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Match(uint8(5)))
	err := valid.Check(valid.Records(f), "x", uint8(6), nil, 3)
	require.Error(t, err)
	var failed *valid.TestFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, "x", failed.Property)
	require.Equal(t, 3, failed.Offset)
	require.True(t, errors.Is(err, valid.ErrTestFailed))
}

func TestMatchListIsMembershipForScalarValue(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Match([]any{uint8(1), uint8(2), uint8(3)}))
	require.NoError(t, valid.Check(valid.Records(f), "x", uint8(2), nil, 0))
	require.Error(t, valid.Check(valid.Records(f), "x", uint8(9), nil, 0))
}

func TestEnumAcceptsOnlyDeclaredKeys(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Enum([]any{"a", "b"}))
	require.NoError(t, valid.Check(valid.Records(f), "x", "b", nil, 0))
	require.Error(t, valid.Check(valid.Records(f), "x", "c", nil, 0))
}

func TestOptionalSuppressesFailure(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Match(uint8(5), valid.WithOptional()))
	require.NoError(t, valid.Check(valid.Records(f), "x", uint8(9), nil, 0))
}

func TestEachAppliesPerElement(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Validate(func(v any, _ *descriptor.Instance) (bool, error) {
		return v.(uint8) < 10, nil
	}, valid.WithEach()))
	require.NoError(t, valid.Check(valid.Records(f), "x", []any{uint8(1), uint8(2)}, nil, 0))
	require.Error(t, valid.Check(valid.Records(f), "x", []any{uint8(1), uint8(20)}, nil, 0))
}

func TestCustomMessageIsUsedInError(t *testing.T) {
	f := descriptor.Field("x", 0, valid.Match(uint8(5), valid.WithMessage("must be five")))
	err := valid.Check(valid.Records(f), "x", uint8(9), nil, 0)
	require.ErrorContains(t, err, "must be five")
}

func TestCELValidatesWithDeclarativeExpression(t *testing.T) {
	f := descriptor.Field("x", 0, valid.CEL("value > 0 && value < 100"))
	require.NoError(t, valid.Check(valid.Records(f), "x", 50, nil, 0))
	require.Error(t, valid.Check(valid.Records(f), "x", 500, nil, 0))
}
