// Package valid implements the validator engine: value checks
// against constants, enums, and predicates, applied after transformers on
// read and before transformers on write.
package valid

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/binspecgo/binspec/descriptor"
)

// Fn is a single validator predicate.
type Fn func(value any, inst *descriptor.Instance) (bool, error)

// Options configure a validator record.
type Options struct {
	Each     bool
	Optional bool
	// PrimitiveCheck documents that a validator only ever runs against a
	// field whose base relation already resolved to primitive or nested,
	// for the same reason ctrl.Options.PrimitiveCheck does; kept for parity
	// with the annotation record's declared option set rather than as a
	// separate runtime check.
	PrimitiveCheck bool
	Message        string
}

// Option mutates Options.
type Option func(*Options)

func WithEach() Option              { return func(o *Options) { o.Each = true } }
func WithOptional() Option          { return func(o *Options) { o.Optional = true } }
func WithPrimitiveCheck() Option    { return func(o *Options) { o.PrimitiveCheck = true } }
func WithMessage(msg string) Option { return func(o *Options) { o.Message = msg } }

func buildOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Record is one attached validator.
type Record struct {
	Name string
	Fn   Fn
	Opts Options
}

func attach(f *descriptor.FieldDescriptor, rec *Record) {
	descriptor.AddAnnotation(f, descriptor.KindValidator, rec.Name, rec)
}

// Match checks value equality; when want is a slice and the value is a
// slice, comparison is pairwise; when want is a slice and the value is a
// scalar, it is a membership test.
func Match(want any, opts ...Option) descriptor.FieldOption {
	fn := func(value any, _ *descriptor.Instance) (bool, error) {
		wantList, wantIsList := want.([]any)
		valueList, valueIsList := value.([]any)
		switch {
		case wantIsList && valueIsList:
			if len(wantList) != len(valueList) {
				return false, nil
			}
			for i := range wantList {
				if !reflect.DeepEqual(wantList[i], valueList[i]) {
					return false, nil
				}
			}
			return true, nil
		case wantIsList && !valueIsList:
			for _, w := range wantList {
				if reflect.DeepEqual(w, value) {
					return true, nil
				}
			}
			return false, nil
		default:
			return reflect.DeepEqual(want, value), nil
		}
	}
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: "Match", Fn: fn, Opts: buildOptions(opts)})
	}
}

// Enum checks that value equals one of the allowed keys.
func Enum(keys []any, opts ...Option) descriptor.FieldOption {
	fn := func(value any, _ *descriptor.Instance) (bool, error) {
		for _, k := range keys {
			if reflect.DeepEqual(k, value) {
				return true, nil
			}
		}
		return false, nil
	}
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: "Enum", Fn: fn, Opts: buildOptions(opts)})
	}
}

// Validate wraps an arbitrary predicate.
func Validate(fn Fn, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: "Validate", Fn: fn, Opts: buildOptions(opts)})
	}
}

// Records returns the validator records attached to f.
func Records(f *descriptor.FieldDescriptor) []*Record {
	recs := f.Records(descriptor.KindValidator)
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if rec, ok := r.Payload.(*Record); ok {
			out = append(out, rec)
		}
	}
	return out
}

// ErrTestFailed is TestFailedError's sentinel.
var ErrTestFailed = errors.New("binspec: validation test failed")

// TestFailedError reports a value that failed one of its property's
// validators.
type TestFailedError struct {
	Name     string
	Property string
	Value    any
	Message  string
	Offset   int
}

func (e *TestFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("value %v failed %s", e.Value, e.Name)
	}
	return fmt.Sprintf("binspec: %s: %s (offset %d)", e.Property, msg, e.Offset)
}

func (e *TestFailedError) Unwrap() error { return ErrTestFailed }

// Expected and Actual satisfy engine.Diagnostics: the failed check's name
// against the value that failed it.
func (e *TestFailedError) Expected() string { return e.Name }
func (e *TestFailedError) Actual() string   { return fmt.Sprintf("%v", e.Value) }

// Check runs every validator record against value, in attachment order,
// returning the first failure (unless Optional suppresses it).
func Check(records []*Record, property string, value any, inst *descriptor.Instance, offset int) error {
	for _, r := range records {
		ok, err := runOne(r, value, inst)
		if err != nil {
			return err
		}
		if !ok && !r.Opts.Optional {
			return &TestFailedError{Name: r.Name, Property: property, Value: value, Message: r.Opts.Message, Offset: offset}
		}
	}
	return nil
}

func runOne(r *Record, value any, inst *descriptor.Instance) (bool, error) {
	if !r.Opts.Each {
		return r.Fn(value, inst)
	}
	list, ok := value.([]any)
	if !ok {
		return r.Fn(value, inst)
	}
	for _, elem := range list {
		ok, err := r.Fn(elem, inst)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}
