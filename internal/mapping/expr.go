package mapping

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/a3tai/visa-pdf-filler/internal/fields"
	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// exprEvaluator compiles and runs CEL expressions over a record context.
// Compiled programs are cached by source text.
type exprEvaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func newExprEvaluator() *exprEvaluator {
	return &exprEvaluator{
		cache: make(map[string]cel.Program),
	}
}

func newExprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(records.ScopeApplicant, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(records.ScopeTraveler, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(records.ScopeDependent, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(records.ScopeQuestions, cel.MapType(cel.StringType, cel.StringType)),
		ext.Strings(),
	)
}

// compileExpr compiles expr and rejects results that are neither string nor bool.
func compileExpr(expr string) (cel.Program, error) {
	env, err := newExprEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.StringType) && !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("CEL expression %q must return string or bool, got %s", expr, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

func (e *exprEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return prg, nil
	}

	prg, err := compileExpr(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// run evaluates a compiled expression against rc. An empty string result is
// reported as unset.
func run(prg cel.Program, expr string, rc records.Context) (fields.Value, bool, error) {
	dependent, _ := rc.Dependent()
	out, _, err := prg.Eval(map[string]interface{}{
		records.ScopeApplicant: rc.Applicant().Map(),
		records.ScopeTraveler:  rc.Traveler().Map(),
		records.ScopeDependent: dependent.Map(),
		records.ScopeQuestions: rc.Questions().Map(),
	})
	if err != nil {
		return fields.Value{}, false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	switch v := out.Value().(type) {
	case bool:
		return fields.Bool(v), true, nil
	case string:
		if v == "" {
			return fields.Value{}, false, nil
		}
		return fields.Text(v), true, nil
	default:
		return fields.Value{}, false, fmt.Errorf("CEL expression %q returned %T, want string or bool", expr, v)
	}
}

func (e *exprEvaluator) size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
