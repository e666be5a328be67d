package core

import (
	"io"
	"log"
	"reflect"
	"testing"
)

func testPlanner(opts PlannerOptions) *Planner {
	return NewPlanner(log.New(io.Discard, "", 0), opts)
}

func TestBuildTrivialArithmeticPlan(t *testing.T) {
	p := testPlanner(PlannerOptions{})
	plan := p.Build("2+3?")

	tools := planTools(plan)
	want := []Tool{ToolMath, ToolSynthesize}
	if !reflect.DeepEqual(tools, want) {
		t.Fatalf("plan tools = %v, want %v", tools, want)
	}
	if plan.Steps[0].Math == nil || plan.Steps[0].Math.Expression != "2+3" {
		t.Fatalf("math step expression = %+v", plan.Steps[0].Math)
	}
}

func TestBuildCodePlanExcludesLiterature(t *testing.T) {
	p := testPlanner(PlannerOptions{})
	plan := p.Build("Please analyze the code file 'pkg/sort/quick.go' and answer this question: how does partitioning work?")

	codeSteps, litSteps := 0, 0
	for _, s := range plan.Steps {
		switch s.Tool {
		case ToolCodeAnalysis:
			codeSteps++
			if s.Code.Path != "pkg/sort/quick.go" {
				t.Fatalf("code step path = %q", s.Code.Path)
			}
		case ToolLiterature:
			litSteps++
		}
	}
	if codeSteps != 1 {
		t.Fatalf("expected exactly one code_analysis step, got %d", codeSteps)
	}
	if litSteps != 0 {
		t.Fatalf("expected no literature step, got %d", litSteps)
	}
}

func TestBuildAlwaysEndsWithSingleSynthesize(t *testing.T) {
	p := testPlanner(PlannerOptions{NotesEnabled: true})
	questions := []string{
		"2+3?",
		"asdkjhqwpoix",
		"explain quantum entanglement with a diagram",
		"prove a convergence bound for gradient descent",
		"Please analyze the code file 'main.go' and answer this question: what does it do?",
	}
	for _, q := range questions {
		plan := p.Build(q)
		count := 0
		for _, s := range plan.Steps {
			if s.Tool == ToolSynthesize {
				count++
			}
			if s.Tool == ToolVisualize {
				t.Fatalf("%q: visualize must never be planned up front", q)
			}
		}
		if count != 1 {
			t.Fatalf("%q: expected exactly one synthesize step, got %d", q, count)
		}
		if plan.Steps[len(plan.Steps)-1].Tool != ToolSynthesize {
			t.Fatalf("%q: synthesize must be last, got %v", q, planTools(plan))
		}
	}
}

func TestBuildGibberishStartsWithClarify(t *testing.T) {
	p := testPlanner(PlannerOptions{})
	plan := p.Build("asdkjhqwpoix")
	if plan.Steps[0].Tool != ToolClarify {
		t.Fatalf("expected clarify first, got %v", planTools(plan))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	p := testPlanner(PlannerOptions{NotesEnabled: true, NotesTopK: 3, LiteratureMaxResults: 7})
	a := p.Build("explain eigenvectors with a diagram")
	b := p.Build("explain eigenvectors with a diagram")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical input produced different plans:\n%+v\n%+v", a, b)
	}
}

func TestBuildStepIndexesAreMonotonic(t *testing.T) {
	p := testPlanner(PlannerOptions{NotesEnabled: true})
	plan := p.Build("prove a convergence bound for gradient descent")
	for i, s := range plan.Steps {
		if s.Index != i {
			t.Fatalf("step %d has index %d", i, s.Index)
		}
	}
}

func TestBuildTraceCoversEveryCandidateTool(t *testing.T) {
	p := testPlanner(PlannerOptions{})
	plan := p.Build("explain quantum entanglement")

	seen := make(map[Tool]bool)
	for _, e := range plan.Trace {
		seen[e.Tool] = true
	}
	for _, tool := range []Tool{ToolClarify, ToolCodeAnalysis, ToolMath, ToolNotes, ToolLiterature, ToolSynthesize, ToolVisualize} {
		if !seen[tool] {
			t.Fatalf("trace missing entry for %s", tool)
		}
	}
}

func TestBuildNotesOnlyWhenEnabled(t *testing.T) {
	question := "explain quantum entanglement"

	without := testPlanner(PlannerOptions{}).Build(question)
	for _, s := range without.Steps {
		if s.Tool == ToolNotes {
			t.Fatalf("notes step planned without a corpus")
		}
	}

	with := testPlanner(PlannerOptions{NotesEnabled: true, NotesTopK: 4}).Build(question)
	found := false
	for _, s := range with.Steps {
		if s.Tool == ToolNotes {
			found = true
			if s.Notes.TopK != 4 {
				t.Fatalf("notes step top_k = %d, want 4", s.Notes.TopK)
			}
		}
	}
	if !found {
		t.Fatalf("expected a notes step when the corpus is configured")
	}
}

func planTools(plan Plan) []Tool {
	out := make([]Tool, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		out = append(out, s.Tool)
	}
	return out
}
