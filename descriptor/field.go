package descriptor

import "github.com/binspecgo/binspec/cursor"

// Kind tags the nine annotation families a field can carry.
// Records of a given Kind are applied in the order they were attached,
// except KindCondition, which is always *tried* first-declared-first at
// resolution time regardless of attachment order relative to other kinds.
type Kind int

const (
	KindCondition Kind = iota
	KindController
	KindTransformer
	KindValidator
	KindPre
	KindPost
	KindContextGet
	KindContextSet
	KindContextAppend
)

func (k Kind) String() string {
	switch k {
	case KindCondition:
		return "condition"
	case KindController:
		return "controller"
	case KindTransformer:
		return "transformer"
	case KindValidator:
		return "validator"
	case KindPre:
		return "pre"
	case KindPost:
		return "post"
	case KindContextGet:
		return "context-get"
	case KindContextSet:
		return "context-set"
	case KindContextAppend:
		return "context-append"
	default:
		return "kind(?)"
	}
}

// AnnotationRecord is one attached annotation. Payload is owned and
// interpreted by the annotation-family package matching Kind (one of cond's
// condition payloads, a *ctrl.Record, ...); descriptor itself never inspects it, which keeps this
// package free of cycles back into the annotation-family packages.
type AnnotationRecord struct {
	ID       int
	Kind     Kind
	Name     string
	Property string
	Payload  any
}

// BaseKind discriminates a field's base relation.
type BaseKind int

const (
	BasePrimitive BaseKind = iota
	BaseNested
	BaseUnknown
)

// ArgsResolver computes constructor arguments for a nested field from the
// partially-populated enclosing instance.
type ArgsResolver func(instance *Instance) []any

// LazyType defers resolution of a nested type, used by Select and by
// recursive/forward type references.
type LazyType func() *TypeDescriptor

// FieldDescriptor is one field of a TypeDescriptor.
type FieldDescriptor struct {
	Name string
	Base BaseKind

	// Valid when Base == BasePrimitive.
	PrimitiveTag cursor.Tag

	// Valid when Base == BaseNested.
	NestedType LazyType
	NestedArgs ArgsResolver

	annotations map[Kind][]*AnnotationRecord
	hasRelation bool
}

func newField(name string) *FieldDescriptor {
	return &FieldDescriptor{Name: name, Base: BaseUnknown, annotations: map[Kind][]*AnnotationRecord{}}
}

// Records returns the ordered annotation list for kind on this field.
func (f *FieldDescriptor) Records(kind Kind) []*AnnotationRecord {
	return f.annotations[kind]
}

// HasKind reports whether any annotation of kind is attached.
func (f *FieldDescriptor) HasKind(kind Kind) bool {
	return len(f.annotations[kind]) > 0
}

// RemoveRecord deletes the record with the given id from kind's list; used
// by self-removing ("once") pre/post hooks.
func (f *FieldDescriptor) RemoveRecord(kind Kind, id int) {
	list := f.annotations[kind]
	for i, r := range list {
		if r.ID == id {
			f.annotations[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
