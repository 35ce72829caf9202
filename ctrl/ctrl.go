// Package ctrl implements the controller engine: iteration
// strategies that turn a single primitive/nested read into a sequence.
package ctrl

import (
	"errors"
	"reflect"
	"strings"

	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/expr"
)

// ReadOnce performs one element read. item is non-nil only under MapTo,
// where it is the driving table entry; every other controller passes nil.
type ReadOnce func(item any) (any, error)

// WriteOnce performs one element write, symmetric to ReadOnce.
type WriteOnce func(item any, v any) error

// ReadCtx is the ambient state available to a controller while reading.
type ReadCtx struct {
	Cursor      *cursor.Cursor
	Instance    *descriptor.Instance
	StartOffset int
}

// WriteCtx is the ambient state available to a controller while writing.
type WriteCtx struct {
	Cursor      *cursor.Cursor
	Instance    *descriptor.Instance
	StartOffset int
}

// Options are the cross-cutting knobs every built-in controller honors.
type Options struct {
	// PrimitiveCheck documents that a controller only ever runs against a
	// field whose base relation already resolved to primitive or nested
	// (package engine skips the field entirely otherwise), so there is no
	// separate runtime check to perform here; kept for
	// parity with the annotation record's declared option set.
	PrimitiveCheck bool
	TargetType     string // "" or "string"
	Alignment      int
	Peek           bool
}

// Option mutates Options.
type Option func(*Options)

func WithPrimitiveCheck() Option   { return func(o *Options) { o.PrimitiveCheck = true } }
func WithTargetTypeString() Option { return func(o *Options) { o.TargetType = "string" } }
func WithAlignment(n int) Option   { return func(o *Options) { o.Alignment = n } }
func WithPeek() Option             { return func(o *Options) { o.Peek = true } }

func buildOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// IntExpr is a count/size argument that may be a literal, a dot-path, or an
// arithmetic expression; it is expr.IntExpr directly so the same literal
// or path argument can also be passed to hook.Offset/EnsureSize/Padding.
type IntExpr = expr.IntExpr

// N builds a literal IntExpr.
func N(n int) IntExpr { return expr.Int(n) }

// Expr builds an IntExpr evaluated as a path (no spaces) or an arithmetic
// expression (spaces, tokens joined by + / -).
func Expr(s string) IntExpr { return expr.Path(s) }

// Record is one attached controller annotation.
type Record struct {
	kind kind
	opts Options

	count IntExpr

	whilePred func(value any, count int, inst *descriptor.Instance, offset, startOffset int) bool

	untilSentinel any
	untilIsEOF    bool

	size IntExpr

	mapItems func(inst *descriptor.Instance) ([]any, error)
}

type kind int

const (
	kindCount kind = iota
	kindWhile
	kindUntil
	kindSize
	kindMapTo
)

func attach(f *descriptor.FieldDescriptor, rec *Record) {
	descriptor.AddAnnotation(f, descriptor.KindController, kindName(rec.kind), rec)
}

func kindName(k kind) string {
	switch k {
	case kindCount:
		return "Count"
	case kindWhile:
		return "While"
	case kindUntil:
		return "Until"
	case kindSize:
		return "Size"
	case kindMapTo:
		return "MapTo"
	default:
		return "Controller"
	}
}

// Count reads exactly n items; n<=0 yields an empty sequence.
func Count(n IntExpr, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindCount, count: n, opts: buildOptions(opts)})
	}
}

// While reads, appends, then tests pred; it does not evaluate pred before
// the first read.
func While(pred func(value any, count int, inst *descriptor.Instance, offset, startOffset int) bool, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindWhile, whilePred: pred, opts: buildOptions(opts)})
	}
}

// Until reads, appends, and stops once the read value equals sentinel
// (included in the result unless Peek is set).
func Until(sentinel any, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindUntil, untilSentinel: sentinel, opts: buildOptions(opts)})
	}
}

// UntilEOF reads until end of input; the EOF signal is absorbed rather
// than propagated.
func UntilEOF(opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindUntil, untilIsEOF: true, opts: buildOptions(opts)})
	}
}

// Size reads repeatedly until offset-startOffset >= n bytes.
func Size(n IntExpr, opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindSize, size: n, opts: buildOptions(opts)})
	}
}

// MapTo calls readOnce(item) for each item produced by items; used for
// table-driven decoding.
func MapTo(items func(inst *descriptor.Instance) ([]any, error), opts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{kind: kindMapTo, mapItems: items, opts: buildOptions(opts)})
	}
}

// Matrix(w,h) is sugar for an outer Count(h) composed with an inner
// Count(w, alignment...), which reads the same bytes as a synthetic
// row-type rewrite would without the SharePropertiesWithRelation detour.
func Matrix(w, h IntExpr, innerOpts ...Option) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		Count(h)(f)
		Count(w, innerOpts...)(f)
	}
}

// Records returns the controller records attached to f, outermost first.
func Records(f *descriptor.FieldDescriptor) []*Record {
	recs := f.Records(descriptor.KindController)
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if rec, ok := r.Payload.(*Record); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Run chains the controller records (outermost first) around a base
// read/write pair and executes the read side, returning the built sequence
// (or, when no controllers are attached, the single raw value).
func Run(records []*Record, rc *ReadCtx, raw ReadOnce) (any, error) {
	if len(records) == 0 {
		return raw(nil)
	}
	return runRead(records, 0, rc, raw)
}

func runRead(records []*Record, idx int, rc *ReadCtx, raw ReadOnce) (any, error) {
	rec := records[idx]
	inner := raw
	if idx+1 < len(records) {
		inner = func(item any) (any, error) { return runRead(records, idx+1, rc, raw) }
	}
	return rec.read(rc, inner)
}

// RunWrite mirrors Run for the write path.
func RunWrite(records []*Record, wc *WriteCtx, value any, raw WriteOnce) error {
	if len(records) == 0 {
		return raw(nil, value)
	}
	return runWrite(records, 0, wc, value, raw)
}

func runWrite(records []*Record, idx int, wc *WriteCtx, value any, raw WriteOnce) error {
	rec := records[idx]
	inner := raw
	if idx+1 < len(records) {
		inner = func(item any, v any) error { return runWrite(records, idx+1, wc, v, raw) }
	}
	return rec.write(wc, value, inner)
}

func (r *Record) read(rc *ReadCtx, inner ReadOnce) (any, error) {
	start := rc.Cursor.Offset()
	var out []any

	switch r.kind {
	case kindCount:
		n, err := r.count.Eval(rc.Instance)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			v, err := inner(nil)
			if err != nil {
				return r.finish(rc, start, out, err)
			}
			out = append(out, v)
		}

	case kindWhile:
		for {
			preRead := rc.Cursor.Offset()
			v, err := inner(nil)
			if err != nil {
				return r.finish(rc, start, out, err)
			}
			out = append(out, v)
			if !r.whilePred(v, len(out), rc.Instance, rc.Cursor.Offset(), start) {
				if r.opts.Peek {
					out = out[:len(out)-1]
					rc.Cursor.Move(preRead)
				}
				break
			}
		}

	case kindUntil:
		for {
			preRead := rc.Cursor.Offset()
			v, err := inner(nil)
			if err != nil {
				if r.untilIsEOF && isEOF(err) {
					var eof *cursor.ErrEndOfInput
					if errors.As(err, &eof) && eof.Partial != nil {
						out = append(out, eof.Partial)
					}
					return r.finish(rc, start, out, nil)
				}
				return r.finish(rc, start, out, err)
			}
			stop := !r.untilIsEOF && valuesEqual(v, r.untilSentinel)
			if stop {
				if r.opts.Peek {
					rc.Cursor.Move(preRead)
					break
				}
				out = append(out, v)
				break
			}
			out = append(out, v)
		}

	case kindSize:
		n, err := r.size.Eval(rc.Instance)
		if err != nil {
			return nil, err
		}
		for rc.Cursor.Offset()-start < n {
			v, err := inner(nil)
			if err != nil {
				return r.finish(rc, start, out, err)
			}
			out = append(out, v)
		}

	case kindMapTo:
		items, err := r.mapItems(rc.Instance)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			v, err := inner(item)
			if err != nil {
				return r.finish(rc, start, out, err)
			}
			out = append(out, v)
		}
	}

	return r.finish(rc, start, out, nil)
}

func (r *Record) finish(rc *ReadCtx, start int, out []any, err error) (any, error) {
	if err != nil {
		built := joinOrSlice(r.opts.TargetType, out)
		// Truncation errors carry whatever this controller had built so far,
		// so an enclosing UntilEOF can still recover a usable value.
		var eof *cursor.ErrEndOfInput
		if errors.As(err, &eof) {
			eof.Partial = built
		}
		return built, err
	}
	if r.opts.Alignment > 0 {
		rel := rc.Cursor.Offset() - start
		if rem := rel % r.opts.Alignment; rem != 0 {
			rc.Cursor.Forward(r.opts.Alignment - rem)
		}
	}
	return joinOrSlice(r.opts.TargetType, out), nil
}

func (r *Record) write(wc *WriteCtx, value any, inner WriteOnce) error {
	start := wc.Cursor.Offset()
	items, err := toSlice(value)
	if err != nil {
		return err
	}

	switch r.kind {
	case kindMapTo:
		table, err := r.mapItems(wc.Instance)
		if err != nil {
			return err
		}
		for i, item := range table {
			if i >= len(items) {
				break
			}
			if err := inner(item, items[i]); err != nil {
				return err
			}
		}
	default:
		for _, v := range items {
			if err := inner(nil, v); err != nil {
				return err
			}
		}
	}

	if r.opts.Alignment > 0 {
		rel := wc.Cursor.Offset() - start
		if rem := rel % r.opts.Alignment; rem != 0 {
			wc.Cursor.WriteBytes(make([]byte, r.opts.Alignment-rem))
		}
	}
	return nil
}

func joinOrSlice(targetType string, out []any) any {
	if targetType == "string" {
		var b strings.Builder
		for _, v := range out {
			switch c := v.(type) {
			case rune:
				b.WriteRune(c)
			case byte:
				b.WriteByte(c)
			case string:
				b.WriteString(c)
			default:
				b.WriteString(reflect.ValueOf(v).String())
			}
		}
		return b.String()
	}
	return out
}

func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case string:
		out := make([]any, 0, len(v))
		for _, r := range v {
			out = append(out, r)
		}
		return out, nil
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func isEOF(err error) bool {
	var eof *cursor.ErrEndOfInput
	return errors.As(err, &eof)
}
