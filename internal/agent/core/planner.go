package core

import (
	"fmt"
	"log"
	"strings"
)

// Planner turns a classified request into a deterministic plan. The same
// request text always yields the same plan; nothing here consults execution
// state.
type Planner struct {
	logger *log.Logger

	litMaxResults int
	notesEnabled  bool
	notesTopK     int
}

// PlannerOptions carry the per-tool knobs the planner bakes into step
// arguments.
type PlannerOptions struct {
	LiteratureMaxResults int
	NotesEnabled         bool
	NotesTopK            int
}

// NewPlanner creates a planner.
func NewPlanner(logger *log.Logger, opts PlannerOptions) *Planner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
	}
	if opts.LiteratureMaxResults <= 0 {
		opts.LiteratureMaxResults = 5
	}
	if opts.NotesTopK <= 0 {
		opts.NotesTopK = 5
	}
	return &Planner{
		logger:        logger,
		litMaxResults: opts.LiteratureMaxResults,
		notesEnabled:  opts.NotesEnabled,
		notesTopK:     opts.NotesTopK,
	}
}

// Build constructs the plan for a request. Step order is fixed: clarify,
// code_analysis, math, notes, literature, then exactly one synthesize step
// last. Visualize is never planned here; it is decided after synthesis.
func (p *Planner) Build(question string) Plan {
	signals := Classify(question)

	var steps []Step
	var trace []TraceEntry
	i := 0

	if signals.NeedsClarification {
		steps = append(steps, ClarifyStep(i, "input looks ambiguous; ask exactly one concise follow-up", question))
		i++
		trace = append(trace, TraceEntry{Tool: ToolClarify, Included: true, Reason: "near-meaningless input"})
	} else {
		trace = append(trace, TraceEntry{Tool: ToolClarify, Included: false, Reason: "question is intelligible"})
	}

	if signals.CodePath != "" {
		steps = append(steps, CodeAnalysisStep(i, "code file provided; analyze and answer the question", signals.CodePath, question))
		i++
		trace = append(trace, TraceEntry{Tool: ToolCodeAnalysis, Included: true, Reason: "embedded code path: " + signals.CodePath})
	} else {
		trace = append(trace, TraceEntry{Tool: ToolCodeAnalysis, Included: false, Reason: "no embedded code path"})
	}

	if signals.IsMath {
		expr := ExtractMathExpr(question)
		if expr == "" {
			expr = question
		}
		steps = append(steps, MathStep(i, "math-like query; verify with the expression evaluator", expr))
		i++
		trace = append(trace, TraceEntry{Tool: ToolMath, Included: true, Reason: "math keywords or operator symbols present"})
	} else {
		trace = append(trace, TraceEntry{Tool: ToolMath, Included: false, Reason: "no math signals"})
	}

	if p.notesEnabled && !signals.IsTrivialMath && signals.CodePath == "" {
		steps = append(steps, NotesStep(i, "local corpus configured; retrieve related notes", question, p.notesTopK))
		i++
		trace = append(trace, TraceEntry{Tool: ToolNotes, Included: true, Reason: "notes corpus configured"})
	} else {
		reason := "notes corpus not configured"
		if p.notesEnabled {
			reason = "trivial arithmetic or code question; local notes add nothing"
		}
		trace = append(trace, TraceEntry{Tool: ToolNotes, Included: false, Reason: reason})
	}

	if signals.WantsLiterature {
		steps = append(steps, LiteratureStep(i, "research-style query; fetch literature context", question, p.litMaxResults))
		i++
		trace = append(trace, TraceEntry{Tool: ToolLiterature, Included: true, Reason: "open-ended or theory question"})
	} else {
		trace = append(trace, TraceEntry{Tool: ToolLiterature, Included: false, Reason: "code path, trivial arithmetic, or non-theory math"})
	}

	steps = append(steps, SynthesizeStep(i, "synthesize final explanation plus visual brief", question))
	trace = append(trace, TraceEntry{Tool: ToolSynthesize, Included: true, Reason: "always runs, exactly once, last"})
	trace = append(trace, TraceEntry{Tool: ToolVisualize, Included: false, Reason: "decided after synthesis"})

	plan := Plan{Question: question, Signals: signals, Steps: steps, Trace: trace}
	p.logPlan(plan)
	return plan
}

func (p *Planner) logPlan(plan Plan) {
	var b strings.Builder
	b.WriteString("execution plan:")
	for _, e := range plan.Trace {
		mark := "skip"
		if e.Included {
			mark = "run"
		}
		fmt.Fprintf(&b, "\n  %-4s %-13s %s", mark, e.Tool, e.Reason)
	}
	p.logger.Println(b.String())
	for _, s := range plan.Steps {
		p.logger.Printf("step %d: %s (%s)", s.Index, s.Tool, s.Rationale)
	}
}
