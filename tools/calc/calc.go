// Package calc evaluates arithmetic expressions for the math step.
package calc

import (
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
)

var constParams = map[string]interface{}{
	"pi":      math.Pi,
	"e":       math.E,
	"phi":     math.Phi,
	"sqrt2":   math.Sqrt2,
	"sqrte":   math.SqrtE,
	"sqrtpi":  math.SqrtPi,
	"sqrtphi": math.SqrtPhi,
	"ln2":     math.Ln2,
	"log2e":   math.Log2E,
	"ln10":    math.Ln10,
	"log10e":  math.Log10E,
}

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"ln":    unary(math.Log),
	"log":   unary(math.Log10),
	"exp":   unary(math.Exp),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("pow expects numeric arguments")
		}
		return math.Pow(a, b), nil
	},
}

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected numeric argument")
		}
		return f(v), nil
	}
}

// Evaluator evaluates single-line arithmetic expressions. Failures come back
// as readable error strings, never error values, so the pipeline can feed
// them straight into synthesis context.
type Evaluator struct{}

// New creates an Evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate computes the expression and returns formatted input and result.
func (e *Evaluator) Evaluate(expression string) string {
	expr := normalize(expression)
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return "Error: could not parse expression. Use a single-line arithmetic string, e.g., (2+3)^2 or sqrt(2)."
	}
	result, err := parsed.Evaluate(constParams)
	if err != nil {
		return fmt.Sprintf("Error: could not evaluate expression: %v", err)
	}
	return fmt.Sprintf("Input: %s\nResult: %v", strings.TrimSpace(expression), result)
}

// normalize rewrites caret exponentiation to the evaluator's ** operator.
func normalize(expression string) string {
	return strings.ReplaceAll(strings.TrimSpace(expression), "^", "**")
}
