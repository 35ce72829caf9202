package descriptor

import (
	"fmt"
	"sync/atomic"
)

var idCounter int64

// NextID allocates the next monotonic annotation-record id, the stable
// handle a self-removing hook deletes itself by.
func NextID() int {
	return int(atomic.AddInt64(&idCounter, 1))
}

// TypeDescriptor is the per-type metadata record the engine interprets.
// A TypeDescriptor is either a regular type (non-empty Fields,
// empty BitFields) or a bit-field class (empty Fields, non-empty
// BitFields) — never both, enforced by the constructors below.
type TypeDescriptor struct {
	Name string

	Fields     []*FieldDescriptor
	fieldIndex map[string]*FieldDescriptor

	// BitFields holds bitfield.Member payloads, in declaration order
	// top-to-bottom. Interpreted by package bitfield.
	BitFields []any

	ClassPre  []*AnnotationRecord
	ClassPost []*AnnotationRecord
}

// NewType builds a regular (non-bit-field) type descriptor. Declaration
// order of fields becomes on-wire order for both read and write.
func NewType(name string, fields ...*FieldDescriptor) (*TypeDescriptor, error) {
	t := &TypeDescriptor{Name: name, fieldIndex: map[string]*FieldDescriptor{}}
	for _, f := range fields {
		if _, dup := t.fieldIndex[f.Name]; dup {
			return nil, &RelationAlreadyDefinedError{Type: name, Property: f.Name}
		}
		if f.Base == BaseUnknown && f.NestedType == nil && !f.HasKind(KindCondition) {
			// A field with no primitive/nested base and no condition to
			// eventually resolve one can never produce a value.
			return nil, &UnknownPropertyTypeError{Type: name, Property: f.Name}
		}
		t.fieldIndex[f.Name] = f
		t.Fields = append(t.Fields, f)
	}
	return t, nil
}

// NewBitfieldType builds a bit-field class: zero field descriptors, a
// non-empty ordered list of bitfield.Member payloads.
func NewBitfieldType(name string, members ...any) (*TypeDescriptor, error) {
	if len(members) == 0 {
		return nil, &WrongBitfieldClassImplementationError{Type: name, Reason: "no bit-field members declared"}
	}
	return &TypeDescriptor{Name: name, BitFields: members, fieldIndex: map[string]*FieldDescriptor{}}, nil
}

// IsBitfieldClass reports whether t is a bit-field class.
func (t *TypeDescriptor) IsBitfieldClass() bool { return len(t.BitFields) > 0 }

// Field looks up a field descriptor by name.
func (t *TypeDescriptor) Field(name string) (*FieldDescriptor, bool) {
	f, ok := t.fieldIndex[name]
	return f, ok
}

// AddClassHook appends a class-level pre or post record. kind must be
// KindPre or KindPost.
func (t *TypeDescriptor) AddClassHook(kind Kind, rec *AnnotationRecord) error {
	switch kind {
	case KindPre:
		t.ClassPre = append(t.ClassPre, rec)
	case KindPost:
		t.ClassPost = append(t.ClassPost, rec)
	default:
		return fmt.Errorf("binspec: class hooks must be Pre or Post, got %v", kind)
	}
	return nil
}

// RemoveClassHook removes a self-deleting ("once") class hook by id.
func (t *TypeDescriptor) RemoveClassHook(kind Kind, id int) {
	remove := func(list []*AnnotationRecord) []*AnnotationRecord {
		for i, r := range list {
			if r.ID == id {
				return append(list[:i:i], list[i+1:]...)
			}
		}
		return list
	}
	switch kind {
	case KindPre:
		t.ClassPre = remove(t.ClassPre)
	case KindPost:
		t.ClassPost = remove(t.ClassPost)
	}
}
