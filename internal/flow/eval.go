package flow

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// EvalCondition evaluates a boolean expression against the variable map.
// {{identifier}} templates are resolved in serialized form before
// evaluation, and bare identifiers are looked up in the variable map
// directly. Expressions run in the expr sandbox, never as host code.
//
// An empty expression is true. Compile or runtime failures report false
// along with the error so callers fail closed.
func EvalCondition(expression string, vars map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	resolved := interpolateExpr(expression, vars)

	env := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		env[k] = v
	}
	// Unresolved templates become the literal token `undefined`; binding it
	// to nil makes comparisons against it evaluate cleanly to false.
	if _, ok := env["undefined"]; !ok {
		env["undefined"] = nil
	}

	program, err := expr.Compile(resolved, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", expression, err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}

	return isTruthy(result), nil
}

// isTruthy converts an expression result to a boolean.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
