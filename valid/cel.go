package valid

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/binspecgo/binspec/descriptor"
)

// CEL attaches a declarative predicate validator written in Common
// Expression Language, evaluated against the read/written value bound to
// the name "value". cel-go gives format descriptions a declarative
// alternative to a hand-written Go predicate for simple range and
// shape checks.
func CEL(expr string, opts ...Option) descriptor.FieldOption {
	prg, err := compileCEL(expr)
	fn := func(value any, _ *descriptor.Instance) (bool, error) {
		if err != nil {
			return false, fmt.Errorf("valid: CEL %q: %w", expr, err)
		}
		out, _, evalErr := prg.Eval(map[string]any{"value": value})
		if evalErr != nil {
			return false, fmt.Errorf("valid: CEL %q: %w", expr, evalErr)
		}
		b, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("valid: CEL %q: expression did not evaluate to a bool", expr)
		}
		return b, nil
	}
	return func(f *descriptor.FieldDescriptor) {
		attach(f, &Record{Name: "CEL(" + expr + ")", Fn: fn, Opts: buildOptions(opts)})
	}
}

func compileCEL(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.DynType))
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	return env.Program(ast)
}
