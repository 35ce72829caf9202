package descriptor

import (
	"errors"
	"fmt"
)

// Declaration errors describe a faulty type description. Most are raised
// while a TypeDescriptor is being built; SelfReferringFieldError and
// RelationNotDefinedError are raised by the engine during a read or write,
// the first time the faulty field is resolved. Each has a package-level
// sentinel so callers can test its kind with errors.Is without caring about
// the Type/Property it carries.

// ErrRelationAlreadyDefined is RelationAlreadyDefinedError's sentinel.
var ErrRelationAlreadyDefined = errors.New("descriptor: relation already defined")

// RelationAlreadyDefinedError is raised when two primitive/nested relations
// are declared on the same property.
type RelationAlreadyDefinedError struct {
	Type     string
	Property string
}

func (e *RelationAlreadyDefinedError) Error() string {
	return fmt.Sprintf("binspec: %s.%s: relation already defined", e.Type, e.Property)
}

func (e *RelationAlreadyDefinedError) Unwrap() error { return ErrRelationAlreadyDefined }

// ErrRelationNotDefined is RelationNotDefinedError's sentinel.
var ErrRelationNotDefined = errors.New("descriptor: no relation defined")

// RelationNotDefinedError is raised when an operation needs a base relation
// that a property does not have.
type RelationNotDefinedError struct {
	Type     string
	Property string
}

func (e *RelationNotDefinedError) Error() string {
	return fmt.Sprintf("binspec: %s.%s: no relation defined", e.Type, e.Property)
}

func (e *RelationNotDefinedError) Unwrap() error { return ErrRelationNotDefined }

// ErrWrongBitfieldClassImplementation is WrongBitfieldClassImplementationError's sentinel.
var ErrWrongBitfieldClassImplementation = errors.New("descriptor: invalid bit-field class")

// WrongBitfieldClassImplementationError is raised when a bit-field class has
// no members, a member that is not a bitfield.Member or has a non-positive
// width, or member widths that sum to something other than 8, 16, or 32
// bits. Mixing regular fields and bit-field members cannot be expressed
// through the constructors, so it is never checked.
type WrongBitfieldClassImplementationError struct {
	Type   string
	Reason string
}

func (e *WrongBitfieldClassImplementationError) Error() string {
	return fmt.Sprintf("binspec: %s: invalid bit-field class: %s", e.Type, e.Reason)
}

func (e *WrongBitfieldClassImplementationError) Unwrap() error {
	return ErrWrongBitfieldClassImplementation
}

// ErrSelfReferringField is SelfReferringFieldError's sentinel.
var ErrSelfReferringField = errors.New("descriptor: field directly refers to its own declaring type")

// SelfReferringFieldError is raised when an unconditional nested field's
// lazy type resolves to the very type that declares it. Nothing could ever
// stop that recursion, so the engine rejects the field the first time it
// resolves instead of reading until the stack runs out. Legitimate
// recursive types break the cycle with a Select/IfThen/Else condition on
// the recursive field.
type SelfReferringFieldError struct {
	Type     string
	Property string
}

func (e *SelfReferringFieldError) Error() string {
	return fmt.Sprintf("binspec: %s.%s: field directly refers to its own declaring type", e.Type, e.Property)
}

func (e *SelfReferringFieldError) Unwrap() error { return ErrSelfReferringField }

// ErrUnknownPropertyType is UnknownPropertyTypeError's sentinel.
var ErrUnknownPropertyType = errors.New("descriptor: unknown property type")

// UnknownPropertyTypeError is raised by NewType when a field has an Unknown
// base kind, no nested type, and no condition that could resolve one.
type UnknownPropertyTypeError struct {
	Type     string
	Property string
}

func (e *UnknownPropertyTypeError) Error() string {
	return fmt.Sprintf("binspec: %s.%s: unknown property type", e.Type, e.Property)
}

func (e *UnknownPropertyTypeError) Unwrap() error { return ErrUnknownPropertyType }
