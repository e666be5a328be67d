package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/internal/agent/telemetry"
	"github.com/viso-study/visocode/internal/capability"
	"github.com/viso-study/visocode/provider"
)

var pipelineTracer trace.Tracer = otel.Tracer("visocode/internal/agent/pipeline")

const synthesisSystemPrompt = `You are a precise educator channeling a 3Blue1Brown explanation style.
- Write a self-contained explanation in 100-250 words.
- Lead with the core idea, then build intuition using 1-2 concrete visual cues (e.g., 'imagine sliding along the curve', 'area under the graph', 'vectors rotating').
- Use stepwise reasoning, tiny examples, and invariants; bring in equations only when they anchor the intuition.
- Avoid fluff and flowery metaphors; keep visuals geometric and operational.
- After the explanation, propose a minimal visual plan: 1-3 concise icon ideas with short captions suitable as thumbnails/diagram elements.`

const clarifySystemPrompt = `You are ClarifyBot. Your job is to spot missing information in the user's request that would prevent you from giving a correct, safe, or helpful response. If you detect anything ambiguous or underspecified, ask exactly one follow-up question to obtain that detail. Otherwise reply with an empty string.`

// Orchestrator runs the guardrailed pipeline: classify, plan, execute steps
// sequentially, synthesize, decide on visuals, persist.
type Orchestrator struct {
	config      *config.Config
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
	capRegistry *capability.Registry

	planner *Planner
	caps    Capabilities
	sink    Sink

	clarifyInput ClarificationInput
	iconStyle    string
}

// NewOrchestrator wires an orchestrator from injected collaborators. There
// is no global registry; everything the pipeline touches arrives here.
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry, registry *capability.Registry, planner *Planner, caps Capabilities, sink Sink) (*Orchestrator, error) {
	if caps.Completer == nil {
		return nil, fmt.Errorf("completion capability is required")
	}
	if caps.Math == nil {
		return nil, fmt.Errorf("math capability is required")
	}
	if caps.Literature == nil {
		return nil, fmt.Errorf("literature capability is required")
	}
	if caps.Code == nil {
		return nil, fmt.Errorf("code analysis capability is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("persistence sink is required")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if tel == nil {
		tel = telemetry.NewTelemetry(config.TelemetryConfig{})
	}
	return &Orchestrator{
		config:      cfg,
		logger:      logger,
		telemetry:   tel,
		capRegistry: registry,
		planner:     planner,
		caps:        caps,
		sink:        sink,
		iconStyle:   cfg.Tools.Icons.Style,
	}, nil
}

// SetClarificationInput attaches the channel used to answer follow-up
// questions. Without one, follow-ups are logged and execution continues.
func (o *Orchestrator) SetClarificationInput(fn ClarificationInput) {
	o.clarifyInput = fn
}

// snippet is one tagged tool output accumulated for synthesis.
type snippet struct {
	tool Tool
	text string
}

// Run executes the full pipeline for one request and returns the final
// payload. Individual step failures are captured as context snippets and do
// not abort the run; the only propagated error is an unknown tool in the
// plan, which indicates a planner defect.
func (o *Orchestrator) Run(ctx context.Context, question string) (Payload, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	ctx, span := pipelineTracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("question.length", len(question)),
		))
	defer span.End()

	runEvent := telemetry.RunEvent{
		ID:        runID,
		Question:  question,
		StartTime: startTime,
	}
	defer func() {
		runEvent.EndTime = time.Now()
		runEvent.Duration = runEvent.EndTime.Sub(runEvent.StartTime)
		o.telemetry.RecordRunEvent(ctx, runEvent)
	}()

	o.logger.Printf("starting run %s", runID)
	plan := o.planner.Build(question)
	span.AddEvent("plan.complete", trace.WithAttributes(
		attribute.Int("plan.step_count", len(plan.Steps)),
	))

	workingQuestion := question
	var snippets []snippet
	var final *Payload

	for _, step := range plan.Steps {
		if o.capRegistry != nil {
			if _, ok := o.capRegistry.Tool(string(step.Tool)); !ok {
				err := fmt.Errorf("no registered ToolCard for tool: %s", step.Tool)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				runEvent.Error = err.Error()
				return fallbackPayload(question), err
			}
		}

		stepCtx, stepSpan := pipelineTracer.Start(ctx, "pipeline.step",
			trace.WithAttributes(
				attribute.Int("step.index", step.Index),
				attribute.String("step.tool", string(step.Tool)),
			))
		stepStart := time.Now()

		var stepErr error
		switch step.Tool {
		case ToolClarify:
			workingQuestion, stepErr = o.runClarify(stepCtx, step.Clarify.Question, workingQuestion)
			if stepErr != nil {
				snippets = appendSnippet(snippets, step.Tool, "", stepErr)
			}

		case ToolCodeAnalysis:
			out, err := o.caps.Code.Analyze(stepCtx, step.Code.Path, step.Code.Question)
			snippets = appendSnippet(snippets, step.Tool, out, err)
			stepErr = err

		case ToolMath:
			out := o.caps.Math.Evaluate(step.Math.Expression)
			snippets = appendSnippet(snippets, step.Tool, out, nil)

		case ToolNotes:
			if o.caps.Notes == nil {
				stepErr = fmt.Errorf("notes capability not configured")
				snippets = appendSnippet(snippets, step.Tool, "", stepErr)
				break
			}
			out, err := o.caps.Notes.Retrieve(stepCtx, step.Notes.Query, step.Notes.TopK)
			snippets = appendSnippet(snippets, step.Tool, out, err)
			stepErr = err

		case ToolLiterature:
			out, err := o.caps.Literature.Search(stepCtx, step.Literature.Query, step.Literature.MaxResults, o.config.Tools.Literature.Debug)
			snippets = appendSnippet(snippets, step.Tool, out, err)
			stepErr = err

		case ToolSynthesize:
			payload := o.runSynthesize(stepCtx, workingQuestion, question, snippets)
			final = &payload

		default:
			err := fmt.Errorf("%w: %q", ErrUnknownTool, step.Tool)
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			runEvent.Error = err.Error()
			return fallbackPayload(question), err
		}

		if stepErr != nil {
			o.logger.Printf("step %d (%s) failed: %v", step.Index, step.Tool, stepErr)
			stepSpan.RecordError(stepErr)
			stepSpan.SetStatus(codes.Error, stepErr.Error())
		} else {
			stepSpan.SetStatus(codes.Ok, "completed")
		}
		stepSpan.End()

		o.telemetry.RecordStepEvent(stepCtx, telemetry.StepEvent{
			RunID:    runID,
			Tool:     string(step.Tool),
			Duration: time.Since(stepStart),
			Success:  stepErr == nil,
			Error:    errString(stepErr),
		})
	}

	if final == nil {
		// No synthesize step ran; the plan builder guarantees one, so this
		// only happens when every construction path failed.
		p := fallbackPayload(question)
		final = &p
	}

	prompt, completion := o.caps.Completer.LastUsage()
	runEvent.TokensUsed = prompt + completion
	runEvent.Cost = o.telemetry.CalculateCost(prompt, completion, o.config.LLM.CompletionModel, o.config.LLM.CostPer1KInput, o.config.LLM.CostPer1KOutput)
	runEvent.Model = o.config.LLM.CompletionModel
	runEvent.Success = true

	o.logger.Printf("completed run %s in %v", runID, time.Since(startTime))
	span.SetAttributes(
		attribute.Int64("run.tokens", runEvent.TokensUsed),
		attribute.Int("run.icon_count", len(final.VisualAssets.Icons)),
	)
	span.SetStatus(codes.Ok, "completed")
	return *final, nil
}

// runClarify asks the completion service for a follow-up question. A
// non-empty follow-up is answered through the configured input channel and
// appended to the working question; the plan itself is never rebuilt.
func (o *Orchestrator) runClarify(ctx context.Context, question, working string) (string, error) {
	followUp, err := o.caps.Completer.Complete(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: clarifySystemPrompt},
		{Role: provider.RoleUser, Content: question},
	})
	if err != nil {
		return working, fmt.Errorf("clarification: %w", err)
	}
	followUp = strings.TrimSpace(followUp)
	if followUp == "" {
		o.logger.Printf("clarification check done, no extra info required")
		return working, nil
	}
	o.logger.Printf("clarification needed: %s", followUp)
	if o.clarifyInput == nil {
		return working, nil
	}
	answer, err := o.clarifyInput(ctx, followUp)
	if err != nil {
		return working, fmt.Errorf("clarification input: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return working, nil
	}
	return working + "\nClarification: " + answer, nil
}

// runSynthesize turns the accumulated snippets into the final payload,
// persists it, then makes the one-shot visual decision. Never fails; parse
// errors degrade to a locally built payload.
func (o *Orchestrator) runSynthesize(ctx context.Context, workingQuestion, originalQuestion string, snippets []snippet) Payload {
	blob := joinSnippets(snippets)
	userPrompt := fmt.Sprintf(`QUESTION:
%s

CONTEXT FROM TOOLS:
%s

Respond strictly as JSON with keys:
  - explanation.content  (100-250 words, naturally weaving visual intuition; define any jargon briefly)
  - visual_brief         (array of 1-3 items, each {concept, caption} for icons/diagrams)
Guidelines:
  - Prioritize geometric/graph insight; keep algebra minimal but precise.
  - Use a tiny concrete example if it clarifies the main idea.
  - Keep the visual_brief practical for icon generation (short, specific, no prose blocks).`, workingQuestion, blob)

	raw, err := o.caps.Completer.Complete(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: synthesisSystemPrompt},
		{Role: provider.RoleUser, Content: userPrompt},
	})
	if err != nil {
		o.logger.Printf("synthesis call failed: %v", err)
		payload := fallbackPayload(originalQuestion)
		o.persist(payload)
		return payload
	}

	payload := ParseSynthesis(originalQuestion, raw)
	o.persist(payload)

	o.decideVisuals(ctx, originalQuestion, &payload)
	return payload
}

// decideVisuals runs the post-synthesis visual decision and, when positive,
// the visualizer. Failures leave the icon list as-is and never block return.
func (o *Orchestrator) decideVisuals(ctx context.Context, question string, payload *Payload) {
	userWants := WantsIconsFromUser(question)
	finalWants := WantsIconsFromPayload(*payload)
	should := userWants || finalWants
	o.logger.Printf("icon decision: user_wants=%t final_wants=%t run=%t", userWants, finalWants, should)
	if !should {
		return
	}
	if o.caps.Visualizer == nil {
		o.logger.Printf("visualizer not configured, skipping icon generation")
		return
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline.visualize",
		trace.WithAttributes(attribute.Int("brief.size", len(payload.VisualBrief))))
	defer span.End()

	concepts := payload.Explanation.Content
	if len(payload.VisualBrief) > 0 {
		if b, err := json.Marshal(map[string]interface{}{"visual_brief": payload.VisualBrief}); err == nil {
			concepts = string(b)
		}
	}
	contextText := payload.Explanation.Content
	if contextText == "" {
		contextText = question
	}

	res, err := o.caps.Visualizer.Generate(ctx, concepts, o.iconStyle, contextText)
	if err != nil {
		o.logger.Printf("icon generation failed: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	icons := make([]IconAsset, 0, len(res.GeneratedIcons))
	for _, icon := range res.GeneratedIcons {
		icons = append(icons, IconAsset{Concept: icon.Concept, Path: icon.Filename})
	}
	payload.VisualAssets.Icons = icons
	span.SetAttributes(attribute.Int("icons.generated", res.TotalGenerated))
	span.SetStatus(codes.Ok, "completed")

	o.persist(*payload)
	o.logger.Printf("merged %d icons into %s", len(icons), o.sink.Path())
}

// persist writes the payload through the sink. Persistence failures are
// logged, never propagated; the in-memory payload stays the source of truth.
func (o *Orchestrator) persist(payload Payload) {
	if err := o.sink.Save(payload); err != nil {
		o.logger.Printf("persisting payload failed: %v", err)
	}
}

// ParseSynthesis parses the completion output into a payload, degrading to a
// locally built one when the output is not valid JSON. The result is always
// normalized and carries the original question.
func ParseSynthesis(question, raw string) Payload {
	raw = strings.TrimSpace(raw)
	var payload Payload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		payload = payloadFromText(raw)
	}
	payload.Question = question
	payload.Normalize()
	return payload
}

// payloadFromText builds a minimal payload from plain text: first paragraph
// as explanation, leading bullet lines as visual concepts.
func payloadFromText(raw string) Payload {
	p := Payload{}
	parts := strings.SplitN(raw, "\n\n", 2)
	p.Explanation.Content = strings.TrimSpace(parts[0])
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-* "))
		if item == "" {
			continue
		}
		concept, caption, found := strings.Cut(item, ":")
		if !found {
			caption = item
		}
		p.VisualBrief = append(p.VisualBrief, VisualConcept{
			Concept: truncate(strings.TrimSpace(concept), 40),
			Caption: truncate(strings.TrimSpace(caption), 80),
		})
		if len(p.VisualBrief) == 3 {
			break
		}
	}
	return p
}

func fallbackPayload(question string) Payload {
	p := Payload{
		Question:    question,
		Explanation: Explanation{Content: "No explanation produced."},
	}
	p.Normalize()
	return p
}

func appendSnippet(snippets []snippet, tool Tool, out string, err error) []snippet {
	if err != nil {
		return append(snippets, snippet{tool: tool, text: fmt.Sprintf("[%s ERROR] %v", tool, err)})
	}
	return append(snippets, snippet{tool: tool, text: fmt.Sprintf("[%s]\n%s", tool, out)})
}

func joinSnippets(snippets []snippet) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, s.text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
