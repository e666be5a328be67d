package core

import (
	"context"
	"fmt"
	"log"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/provider"
	"github.com/viso-study/visocode/tools/arxiv"
	"github.com/viso-study/visocode/tools/calc"
	"github.com/viso-study/visocode/tools/coderead"
	"github.com/viso-study/visocode/tools/icons"
	"github.com/viso-study/visocode/tools/notes"
)

// NewCapabilities constructs every collaborator from configuration. Optional
// capabilities (notes, visualizer) stay nil when not configured; the planner
// and the visual decision handle their absence.
func NewCapabilities(cfg *config.Config, logger *log.Logger) (Capabilities, error) {
	completer, err := provider.NewCompleter(cfg.LLM)
	if err != nil {
		return Capabilities{}, fmt.Errorf("creating completion provider: %w", err)
	}

	caps := Capabilities{
		Completer:  completer,
		Math:       calc.New(),
		Literature: arxiv.New(cfg.Tools.Literature),
		Code:       coderead.New(completer),
	}

	if cfg.Tools.Notes.Enabled() {
		retriever, err := notes.New(cfg.Tools.Notes)
		if err != nil {
			return Capabilities{}, fmt.Errorf("building notes retriever: %w", err)
		}
		caps.Notes = retriever
	}

	if cfg.Tools.Icons.Enabled() {
		caps.Visualizer = iconVisualizer{gen: icons.New(cfg.Tools.Icons, logger)}
	}

	return caps, nil
}

// iconVisualizer adapts the icon generator to the Visualizer interface.
type iconVisualizer struct {
	gen *icons.Generator
}

func (v iconVisualizer) Generate(ctx context.Context, concepts, style, contextText string) (VisualResult, error) {
	res, err := v.gen.Generate(ctx, concepts, style, contextText)
	if err != nil {
		return VisualResult{}, err
	}
	out := VisualResult{
		GeneratedIcons: make([]GeneratedIcon, 0, len(res.GeneratedIcons)),
		TotalGenerated: res.TotalGenerated,
	}
	for _, icon := range res.GeneratedIcons {
		out.GeneratedIcons = append(out.GeneratedIcons, GeneratedIcon{Concept: icon.Concept, Filename: icon.Filename})
	}
	return out, nil
}

// NewPlannerFromConfig builds a planner whose step arguments reflect the
// configured tool settings.
func NewPlannerFromConfig(cfg *config.Config, logger *log.Logger) *Planner {
	return NewPlanner(logger, PlannerOptions{
		LiteratureMaxResults: cfg.Tools.Literature.MaxResults,
		NotesEnabled:         cfg.Tools.Notes.Enabled(),
		NotesTopK:            cfg.Tools.Notes.TopK,
	})
}
