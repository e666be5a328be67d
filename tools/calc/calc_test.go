package calc

import (
	"strings"
	"testing"
)

func TestEvaluateSimpleSum(t *testing.T) {
	out := New().Evaluate("2+3")
	if !strings.Contains(out, "Result: 5") {
		t.Fatalf("output = %q, want a Result: 5 line", out)
	}
	if !strings.Contains(out, "Input: 2+3") {
		t.Fatalf("output should echo the input, got %q", out)
	}
}

func TestEvaluateCaretExponent(t *testing.T) {
	out := New().Evaluate("(2+3)^2")
	if !strings.Contains(out, "Result: 25") {
		t.Fatalf("caret should mean exponentiation, got %q", out)
	}
}

func TestEvaluateFunctions(t *testing.T) {
	cases := map[string]string{
		"sqrt(16)":   "Result: 4",
		"abs(-3)":    "Result: 3",
		"floor(2.7)": "Result: 2",
		"pow(2, 10)": "Result: 1024",
	}
	e := New()
	for expr, want := range cases {
		out := e.Evaluate(expr)
		if !strings.Contains(out, want) {
			t.Fatalf("Evaluate(%q) = %q, want %q", expr, out, want)
		}
	}
}

func TestEvaluateConstants(t *testing.T) {
	out := New().Evaluate("floor(pi)")
	if !strings.Contains(out, "Result: 3") {
		t.Fatalf("pi should be bound, got %q", out)
	}
}

func TestEvaluateParseError(t *testing.T) {
	out := New().Evaluate("2 +* 3")
	if !strings.HasPrefix(out, "Error: could not parse expression") {
		t.Fatalf("output = %q, want a parse error string", out)
	}
}

func TestEvaluateEvaluationError(t *testing.T) {
	out := New().Evaluate("sqrt(1, 2)")
	if !strings.HasPrefix(out, "Error: could not evaluate expression") {
		t.Fatalf("output = %q, want an evaluation error string", out)
	}
}

func TestEvaluateTrimsInput(t *testing.T) {
	out := New().Evaluate("  12.5 * 4  ")
	if !strings.Contains(out, "Input: 12.5 * 4") {
		t.Fatalf("input should be trimmed in the echo, got %q", out)
	}
	if !strings.Contains(out, "Result: 50") {
		t.Fatalf("output = %q", out)
	}
}
