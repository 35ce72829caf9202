// Package yamlspec loads a *descriptor.TypeDescriptor graph from a
// Kaitai-Struct-flavored YAML document, as sugar over the programmatic
// builder API in package descriptor/binspec. It understands a deliberately
// small subset of what a real Kaitai .ksy describes: named types, an
// ordered seq of fields, primitive/derived scalar types, size/count
// controllers, and a truthy "if" condition, each mapped onto this
// engine's annotation model.
package yamlspec

import (
	"fmt"
	"strings"

	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v3"

	"github.com/binspecgo/binspec/cond"
	"github.com/binspecgo/binspec/ctrl"
	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/expr"
	"github.com/binspecgo/binspec/xform"
)

// Document is the top-level shape of a format description.
type Document struct {
	Root  string              `yaml:"root"`
	Types map[string]TypeSpec `yaml:"types"`
}

// TypeSpec is one named type: an ordered sequence of fields, matching
// Kaitai's "seq" list.
type TypeSpec struct {
	Seq []FieldSpec `yaml:"seq"`
}

// FieldSpec is one seq entry. Type is either a primitive/derived type name
// (u8, u16, u32, u64, i8, i16, i32, i64, f32, f64, char, ascii, utf8,
// utf16, utf16be, utf32, utf32be, nullterm, strz) or the name of another
// type declared in the same document's Types map.
type FieldSpec struct {
	ID        string   `yaml:"id"`
	Type      string   `yaml:"type"`
	Size      *intExpr `yaml:"size,omitempty"`
	Count     *intExpr `yaml:"count,omitempty"`
	If        string   `yaml:"if,omitempty"`
	Args      string   `yaml:"args,omitempty"`
	BigEndian bool     `yaml:"be,omitempty"`
}

// intExpr decodes either a bare YAML integer or a string expression
// (dot-path or "a + b - c" arithmetic) into a ctrl.IntExpr.
type intExpr struct {
	val ctrl.IntExpr
	set bool
}

func (e *intExpr) UnmarshalYAML(node *yaml.Node) error {
	var n int
	if err := node.Decode(&n); err == nil {
		e.val, e.set = ctrl.N(n), true
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("yamlspec: size/count must be an int or an expression string: %w", err)
	}
	e.val, e.set = ctrl.Expr(s), true
	return nil
}

// Load parses a YAML format description and builds the root type
// descriptor it names, resolving nested type references lazily so
// recursive and forward-declared types work without special
// handling: a type is only actually built the first time something asks
// for it by name.
func Load(data []byte) (*descriptor.TypeDescriptor, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlspec: %w", err)
	}
	if strings.TrimSpace(doc.Root) == "" {
		return nil, fmt.Errorf("yamlspec: document has no root type")
	}
	b := &builder{doc: &doc, cache: map[string]*descriptor.TypeDescriptor{}}
	return b.resolve(doc.Root)
}

type builder struct {
	doc   *Document
	cache map[string]*descriptor.TypeDescriptor
}

func (b *builder) resolve(name string) (*descriptor.TypeDescriptor, error) {
	if t, ok := b.cache[name]; ok {
		return t, nil
	}
	spec, ok := b.doc.Types[name]
	if !ok {
		return nil, fmt.Errorf("yamlspec: type %q is not declared", name)
	}

	fields := make([]*descriptor.FieldDescriptor, 0, len(spec.Seq))
	for _, fs := range spec.Seq {
		f, err := b.buildField(fs)
		if err != nil {
			return nil, fmt.Errorf("yamlspec: %s.%s: %w", name, fs.ID, err)
		}
		fields = append(fields, f)
	}

	t, err := descriptor.NewType(name, fields...)
	if err != nil {
		return nil, err
	}
	b.cache[name] = t
	return t, nil
}

// lazy returns a descriptor.LazyType that resolves name against b the first
// time it is invoked. Building the closure never itself calls resolve, so a
// type that refers to itself (directly or through a cycle) never recurses
// during Load — only later, the first time the engine actually walks into
// that branch of the instance graph.
func (b *builder) lazy(name string) descriptor.LazyType {
	return func() *descriptor.TypeDescriptor {
		t, err := b.resolve(name)
		if err != nil {
			panic(err)
		}
		return t
	}
}

func (b *builder) buildField(fs FieldSpec) (*descriptor.FieldDescriptor, error) {
	name := strcase.SnakeCase(fs.ID)
	if name == "" {
		return nil, fmt.Errorf("field has no id")
	}

	var argsResolver descriptor.ArgsResolver
	if strings.TrimSpace(fs.Args) != "" {
		argsExpr := fs.Args
		argsResolver = func(inst *descriptor.Instance) []any {
			args, err := expr.ResolveList(argsExpr, inst)
			if err != nil {
				return nil
			}
			return args
		}
	}

	tag, isPrimitive, opts, err := b.primitiveSpec(name, fs)
	if err != nil {
		return nil, err
	}

	var ref cond.TypeRef
	var lazyType descriptor.LazyType
	if isPrimitive {
		ref = cond.AsPrimitive(tag)
	} else {
		if _, declared := b.doc.Types[fs.Type]; !declared {
			return nil, fmt.Errorf("field %q: type %q is neither a built-in nor a declared type", name, fs.Type)
		}
		lazyType = b.lazy(fs.Type)
		ref = cond.AsNested(lazyType, argsResolver)
		if fs.Count != nil {
			opts = append(opts, ctrl.Count(fs.Count.val))
		} else if fs.Size != nil {
			opts = append(opts, ctrl.Size(fs.Size.val))
		}
	}

	if fs.If != "" {
		pred, err := buildPredicate(fs.If)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cond.IfThen(pred, ref), cond.Else(cond.Absent))
		return descriptor.UnknownField(name, opts...), nil
	}

	if isPrimitive {
		return descriptor.Field(name, tag, opts...), nil
	}
	return descriptor.NestedField(name, lazyType, argsResolver, opts...), nil
}

// primitiveSpec resolves fs.Type to either a primitive tag with its derived
// transformer/controller options, or reports that it names another
// document type (isPrimitive == false), in which case the caller builds a
// nested field instead.
func (b *builder) primitiveSpec(name string, fs FieldSpec) (tag cursor.Tag, isPrimitive bool, opts []descriptor.FieldOption, err error) {
	switch strings.ToLower(fs.Type) {
	case "u8":
		return cursor.U8, true, countOrSizeOpts(fs), nil
	case "u16":
		return cursor.U16, true, countOrSizeOpts(fs), nil
	case "u32":
		return cursor.U32, true, countOrSizeOpts(fs), nil
	case "u64":
		return cursor.U64, true, countOrSizeOpts(fs), nil
	case "i8":
		return cursor.I8, true, countOrSizeOpts(fs), nil
	case "i16":
		return cursor.I16, true, countOrSizeOpts(fs), nil
	case "i32":
		return cursor.I32, true, countOrSizeOpts(fs), nil
	case "i64":
		return cursor.I64, true, countOrSizeOpts(fs), nil
	case "f32":
		return cursor.F32, true, countOrSizeOpts(fs), nil
	case "f64":
		return cursor.F64, true, countOrSizeOpts(fs), nil
	case "char":
		return cursor.Char, true, append([]descriptor.FieldOption{xform.CharTransform()}, countOrSizeOpts(fs)...), nil
	case "ascii":
		if fs.Count == nil {
			return 0, false, nil, fmt.Errorf("ascii field %q needs count", name)
		}
		return cursor.U8, true, []descriptor.FieldOption{
			ctrl.Count(fs.Count.val),
			xform.CharTransform(xform.WithEach()),
			xform.JoinTransform(),
		}, nil
	case "utf8":
		if fs.Size == nil {
			return 0, false, nil, fmt.Errorf("utf8 field %q needs size", name)
		}
		return cursor.U8, true, []descriptor.FieldOption{ctrl.Size(fs.Size.val), xform.Utf8Transform()}, nil
	case "utf16", "utf16be":
		if fs.Size == nil {
			return 0, false, nil, fmt.Errorf("utf16 field %q needs size", name)
		}
		big := fs.BigEndian || strings.EqualFold(fs.Type, "utf16be")
		return cursor.U8, true, []descriptor.FieldOption{ctrl.Size(fs.Size.val), xform.Utf16Transform(big)}, nil
	case "utf32", "utf32be":
		if fs.Size == nil {
			return 0, false, nil, fmt.Errorf("utf32 field %q needs size", name)
		}
		big := fs.BigEndian || strings.EqualFold(fs.Type, "utf32be")
		return cursor.U8, true, []descriptor.FieldOption{ctrl.Size(fs.Size.val), xform.Utf32Transform(big)}, nil
	case "nullterm":
		return cursor.U8, true, []descriptor.FieldOption{ctrl.Until(byte(0))}, nil
	case "strz":
		return cursor.U8, true, []descriptor.FieldOption{ctrl.Until(byte(0)), xform.NullTerminatedTransform()}, nil
	default:
		return 0, false, nil, nil
	}
}

func countOrSizeOpts(fs FieldSpec) []descriptor.FieldOption {
	switch {
	case fs.Count != nil:
		return []descriptor.FieldOption{ctrl.Count(fs.Count.val)}
	case fs.Size != nil:
		return []descriptor.FieldOption{ctrl.Size(fs.Size.val)}
	default:
		return nil
	}
}

// buildPredicate turns an "if" path expression into a truthy test, the same
// boolean coercion the Kaitai interpreter this is grounded on applies to a
// CEL result before deciding whether to skip a field.
func buildPredicate(path string) (func(*descriptor.Instance) bool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("yamlspec: empty if expression")
	}
	return func(inst *descriptor.Instance) bool {
		v, err := expr.ResolvePath(path, inst)
		if err != nil {
			return false
		}
		return truthy(v)
	}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
