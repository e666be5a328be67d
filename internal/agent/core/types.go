package core

import (
	"context"
	"errors"

	"github.com/viso-study/visocode/provider"
)

// Tool identifies a pipeline capability. The set is closed; the planner only
// ever emits these values and the executor rejects anything else.
type Tool string

const (
	ToolClarify      Tool = "clarify"
	ToolMath         Tool = "math"
	ToolLiterature   Tool = "literature"
	ToolNotes        Tool = "notes"
	ToolCodeAnalysis Tool = "code_analysis"
	ToolSynthesize   Tool = "synthesize"
	ToolVisualize    Tool = "visualize"
)

// ErrUnknownTool indicates a plan named a tool the executor has no handler
// for. This is a planner defect, not a runtime condition, and is the only
// error Run propagates.
var ErrUnknownTool = errors.New("unknown tool in plan")

// ClarifyArgs carries the question a follow-up should be generated for.
type ClarifyArgs struct {
	Question string
}

// MathArgs carries the expression isolated from the request text.
type MathArgs struct {
	Expression string
}

// LiteratureArgs carries the literature search query and result cap.
type LiteratureArgs struct {
	Query      string
	MaxResults int
}

// NotesArgs carries the local corpus retrieval query.
type NotesArgs struct {
	Query string
	TopK  int
}

// CodeAnalysisArgs carries the extracted file path and the original question.
type CodeAnalysisArgs struct {
	Path     string
	Question string
}

// SynthesizeArgs carries the question synthesis should answer.
type SynthesizeArgs struct {
	Question string
}

// Step is one tool invocation in a plan. Exactly one argument field is
// non-nil, matching Tool; use the constructors below rather than building
// literals so arguments and tool name cannot drift apart.
type Step struct {
	Index     int
	Tool      Tool
	Rationale string

	Clarify    *ClarifyArgs
	Math       *MathArgs
	Literature *LiteratureArgs
	Notes      *NotesArgs
	Code       *CodeAnalysisArgs
	Synthesize *SynthesizeArgs
}

// ClarifyStep builds a clarify step.
func ClarifyStep(index int, rationale, question string) Step {
	return Step{Index: index, Tool: ToolClarify, Rationale: rationale, Clarify: &ClarifyArgs{Question: question}}
}

// MathStep builds a math evaluation step.
func MathStep(index int, rationale, expression string) Step {
	return Step{Index: index, Tool: ToolMath, Rationale: rationale, Math: &MathArgs{Expression: expression}}
}

// LiteratureStep builds a literature search step.
func LiteratureStep(index int, rationale, query string, maxResults int) Step {
	return Step{Index: index, Tool: ToolLiterature, Rationale: rationale, Literature: &LiteratureArgs{Query: query, MaxResults: maxResults}}
}

// NotesStep builds a local notes retrieval step.
func NotesStep(index int, rationale, query string, topK int) Step {
	return Step{Index: index, Tool: ToolNotes, Rationale: rationale, Notes: &NotesArgs{Query: query, TopK: topK}}
}

// CodeAnalysisStep builds a code analysis step.
func CodeAnalysisStep(index int, rationale, path, question string) Step {
	return Step{Index: index, Tool: ToolCodeAnalysis, Rationale: rationale, Code: &CodeAnalysisArgs{Path: path, Question: question}}
}

// SynthesizeStep builds the final synthesis step.
func SynthesizeStep(index int, rationale, question string) Step {
	return Step{Index: index, Tool: ToolSynthesize, Rationale: rationale, Synthesize: &SynthesizeArgs{Question: question}}
}

// SignalSet holds the classification of a request. Every field is derived
// purely from the request text; computation never consults plan or execution
// state.
type SignalSet struct {
	NeedsClarification bool
	CodePath           string
	IsMath             bool
	IsTrivialMath      bool
	WantsLiterature    bool
}

// TraceEntry records, for one candidate tool, whether the planner included it
// and why. The trace is for audit and logging only; nothing dispatches on it.
type TraceEntry struct {
	Tool     Tool
	Included bool
	Reason   string
}

// Plan is an ordered, immutable sequence of steps for one request, plus the
// signal set and decision trace that produced it.
type Plan struct {
	Question string
	Signals  SignalSet
	Steps    []Step
	Trace    []TraceEntry
}

// SynthesizeIndex returns the position of the synthesize step, or -1.
func (p Plan) SynthesizeIndex() int {
	for i, s := range p.Steps {
		if s.Tool == ToolSynthesize {
			return i
		}
	}
	return -1
}

// Explanation is the prose part of the final answer.
type Explanation struct {
	Content string `json:"content"`
}

// VisualConcept is one concept/caption pair proposed by synthesis.
type VisualConcept struct {
	Concept string `json:"concept"`
	Caption string `json:"caption"`
}

// IconAsset is one generated icon mapped back to its concept.
type IconAsset struct {
	Concept string `json:"concept"`
	Path    string `json:"path"`
}

// VisualAssets groups generated artifacts attached to a payload.
type VisualAssets struct {
	Icons []IconAsset `json:"icons"`
}

// Payload is the structured final answer produced by synthesis and persisted
// by the sink.
type Payload struct {
	Question     string          `json:"question"`
	Explanation  Explanation     `json:"explanation"`
	VisualBrief  []VisualConcept `json:"visual_brief"`
	VisualAssets VisualAssets    `json:"visual_assets"`
}

// Normalize backfills fields the synthesis collaborator may omit so that
// persisted records always carry visual_brief and visual_assets.icons, even
// when empty.
func (p *Payload) Normalize() {
	if p.VisualBrief == nil {
		p.VisualBrief = []VisualConcept{}
	}
	if p.VisualAssets.Icons == nil {
		p.VisualAssets.Icons = []IconAsset{}
	}
	if len(p.VisualBrief) > 3 {
		p.VisualBrief = p.VisualBrief[:3]
	}
}

// MathEvaluator evaluates an expression. Unparseable input yields a
// human-readable error string, never an error value.
type MathEvaluator interface {
	Evaluate(expression string) string
}

// LiteratureSearcher queries an external paper index. Empty result sets are
// reported as a formatted "no results" string, not an error.
type LiteratureSearcher interface {
	Search(ctx context.Context, query string, maxResults int, debug bool) (string, error)
}

// CodeAnalyzer reads and explains a source file.
type CodeAnalyzer interface {
	Analyze(ctx context.Context, path, question string) (string, error)
}

// NotesRetriever searches a local document corpus.
type NotesRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// GeneratedIcon is one icon produced by the visualizer, named by local file.
type GeneratedIcon struct {
	Concept  string `json:"concept"`
	Filename string `json:"filename"`
}

// VisualResult is the visualizer's output for one generation request.
type VisualResult struct {
	GeneratedIcons []GeneratedIcon `json:"generated_icons"`
	TotalGenerated int             `json:"total_generated"`
}

// Visualizer turns concept descriptions into icon files.
type Visualizer interface {
	Generate(ctx context.Context, concepts, style, contextText string) (VisualResult, error)
}

// Sink persists the payload to durable storage.
type Sink interface {
	Save(payload Payload) error
	Path() string
}

// Capabilities bundles every collaborator handle the orchestrator needs. All
// dependencies are injected here; there are no package-level singletons. Nil
// optional fields (Notes, Visualizer) disable the corresponding behaviour.
type Capabilities struct {
	Completer  provider.Completer
	Math       MathEvaluator
	Literature LiteratureSearcher
	Code       CodeAnalyzer
	Notes      NotesRetriever
	Visualizer Visualizer
}

// ClarificationInput obtains the user's answer to a follow-up question. A nil
// func means no input channel is available and the follow-up is only logged.
type ClarificationInput func(ctx context.Context, followUp string) (string, error)
