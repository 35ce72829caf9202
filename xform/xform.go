// Package xform implements the transformer engine: value-level
// maps applied after a field's controller finishes on read, or before it
// runs on write.
package xform

import (
	"fmt"

	"github.com/binspecgo/binspec/descriptor"
)

// Scope controls which direction(s) a transformer's functions run in.
type Scope int

const (
	OnRead Scope = iota
	OnWrite
	OnBoth
)

// Level distinguishes a transform applied to the aggregated controller
// result (Normal) from one applied to each primitive as it is
// read/written (PrimitiveTransformer). The engine runs PrimitiveTransformer
// records inside the controller's per-element callback, so they see every
// scalar the moment it crosses the cursor; Normal records run once, after
// the controller has finished (read) or before it starts (write). Each is
// different again: a Normal transform that maps over the finished sequence.
type Level int

const (
	Normal Level = iota
	PrimitiveTransformer
)

// Fn is a single-direction value transform.
type Fn func(value any, inst *descriptor.Instance) (any, error)

// Options configure a transformer record.
type Options struct {
	Each          bool
	DeepTransform bool
	Scope         Scope
	Level         Level
}

// Option mutates Options.
type Option func(*Options)

func WithEach() Option           { return func(o *Options) { o.Each = true } }
func WithDeepTransform() Option  { return func(o *Options) { o.DeepTransform = true } }
func WithScope(s Scope) Option   { return func(o *Options) { o.Scope = s } }
func WithPrimitiveLevel() Option { return func(o *Options) { o.Level = PrimitiveTransformer } }

func buildOptions(opts []Option) Options {
	o := Options{Scope: OnBoth}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Record is one attached transformer.
type Record struct {
	Name    string
	ReadFn  Fn
	WriteFn Fn
	Opts    Options
}

func attach(f *descriptor.FieldDescriptor, rec *Record) {
	descriptor.AddAnnotation(f, descriptor.KindTransformer, rec.Name, rec)
}

// Transform attaches a single function used symmetrically on both read and
// write, unless overridden with WithScope.
func Transform(name string, fn Fn, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: name, ReadFn: fn, WriteFn: fn, Opts: buildOptions(opts)})
	}
}

// TransformRW attaches an asymmetric read/write function pair, e.g.
// "decode bytes to a character on read, encode back to bytes on write".
func TransformRW(name string, readFn, writeFn Fn, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: name, ReadFn: readFn, WriteFn: writeFn, Opts: buildOptions(opts)})
	}
}

// ByLevel filters records to those attached at the given level, preserving
// registration order.
func ByLevel(records []*Record, level Level) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if r.Opts.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Records returns the transformer records attached to f in attachment order.
func Records(f *descriptor.FieldDescriptor) []*Record {
	recs := f.Records(descriptor.KindTransformer)
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if rec, ok := r.Payload.(*Record); ok {
			out = append(out, rec)
		}
	}
	return out
}

// ApplyRead applies every record's ReadFn in registration order to raw.
func ApplyRead(records []*Record, raw any, inst *descriptor.Instance) (any, error) {
	v := raw
	for _, r := range records {
		if r.Opts.Scope == OnWrite {
			continue
		}
		nv, err := applyOne(r.ReadFn, v, inst, r.Opts)
		if err != nil {
			return nil, fmt.Errorf("xform: %s: %w", r.Name, err)
		}
		v = nv
	}
	return v, nil
}

// ApplyWrite applies every record's WriteFn in reverse registration order to
// stored, producing the raw value the controller/primitive write should
// consume.
func ApplyWrite(records []*Record, stored any, inst *descriptor.Instance) (any, error) {
	v := stored
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Opts.Scope == OnRead {
			continue
		}
		nv, err := applyOne(r.WriteFn, v, inst, r.Opts)
		if err != nil {
			return nil, fmt.Errorf("xform: %s: %w", r.Name, err)
		}
		v = nv
	}
	return v, nil
}

func applyOne(fn Fn, v any, inst *descriptor.Instance, opts Options) (any, error) {
	if fn == nil {
		return v, nil
	}
	if !opts.Each {
		return fn(v, inst)
	}
	list, ok := v.([]any)
	if !ok {
		return fn(v, inst)
	}
	out := make([]any, len(list))
	for i, elem := range list {
		if opts.DeepTransform {
			if nested, ok := elem.([]any); ok {
				nv, err := applyOne(fn, nested, inst, opts)
				if err != nil {
					return nil, err
				}
				out[i] = nv
				continue
			}
		}
		nv, err := fn(elem, inst)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}
