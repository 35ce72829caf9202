// Package bitfield implements the bit-field engine: packing a
// sequence of declared bit widths into a single 8/16/32-bit carrier, most
// significant member first.
package bitfield

import (
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
)

// Member is one named, fixed-width bit-field member.
type Member struct {
	Name  string
	Width int
}

// Bit declares a bit-field member, used as an argument to
// descriptor.NewBitfieldType.
func Bit(name string, width int) Member { return Member{Name: name, Width: width} }

// Members extracts the typed bit-field member list from a bit-field class
// type descriptor.
func Members(t *descriptor.TypeDescriptor) ([]Member, error) {
	if !t.IsBitfieldClass() {
		return nil, &descriptor.WrongBitfieldClassImplementationError{Type: t.Name, Reason: "type has no bit-field members"}
	}
	out := make([]Member, 0, len(t.BitFields))
	for _, raw := range t.BitFields {
		m, ok := raw.(Member)
		if !ok {
			return nil, &descriptor.WrongBitfieldClassImplementationError{Type: t.Name, Reason: "BitFields entry is not a bitfield.Member"}
		}
		if m.Width <= 0 {
			return nil, &descriptor.WrongBitfieldClassImplementationError{Type: t.Name, Reason: "member " + m.Name + " has non-positive width"}
		}
		out = append(out, m)
	}
	return out, nil
}

// TotalWidth sums the declared member widths.
func TotalWidth(members []Member) int {
	total := 0
	for _, m := range members {
		total += m.Width
	}
	return total
}

func carrierTag(total int, typeName string) (cursor.Tag, error) {
	switch total {
	case 8:
		return cursor.U8, nil
	case 16:
		return cursor.U16, nil
	case 32:
		return cursor.U32, nil
	default:
		return 0, &descriptor.WrongBitfieldClassImplementationError{
			Type: typeName, Reason: "total member width must be 8, 16, or 32 bits",
		}
	}
}

// Populate reads one carrier value and unpacks it into the members of an
// already-constructed instance, the top-most declared member occupying the
// most significant bits. inst is supplied by the caller (the read loop)
// rather than created here, so class-level pre hooks and
// SharePropertiesWithRelation injection can run on it first.
func Populate(t *descriptor.TypeDescriptor, inst *descriptor.Instance, cur *cursor.Cursor) error {
	members, err := Members(t)
	if err != nil {
		return err
	}
	total := TotalWidth(members)
	tag, err := carrierTag(total, t.Name)
	if err != nil {
		return err
	}
	raw, err := cur.Read(tag)
	if err != nil {
		return err
	}
	carrier := toUint64(raw)

	shift := total
	for _, m := range members {
		shift -= m.Width
		mask := uint64(1)<<uint(m.Width) - 1
		inst.Set(m.Name, (carrier>>uint(shift))&mask)
	}
	return nil
}

// Write packs every member of inst back into a single carrier and writes it.
func Write(t *descriptor.TypeDescriptor, inst *descriptor.Instance, cur *cursor.Cursor) error {
	members, err := Members(t)
	if err != nil {
		return err
	}
	total := TotalWidth(members)
	tag, err := carrierTag(total, t.Name)
	if err != nil {
		return err
	}

	var carrier uint64
	shift := total
	for _, m := range members {
		shift -= m.Width
		v, _ := inst.Get(m.Name)
		mask := uint64(1)<<uint(m.Width) - 1
		carrier |= (toUint64(v) & mask) << uint(shift)
	}
	return cur.Write(tag, carrier)
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case int:
		return uint64(n)
	case int8:
		return uint64(uint8(n))
	case int16:
		return uint64(uint16(n))
	case int32:
		return uint64(uint32(n))
	case int64:
		return uint64(n)
	default:
		return 0
	}
}
