// Package icons generates concept icons through an image-generation API.
package icons

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/viso-study/visocode/config"
)

// Icon is one generated image mapped back to its concept.
type Icon struct {
	Concept  string `json:"concept"`
	Filename string `json:"filename"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
}

// Result summarizes one generation request.
type Result struct {
	GeneratedIcons []Icon   `json:"generated_icons"`
	IconPaths      []string `json:"icon_paths"`
	TotalGenerated int      `json:"total_generated"`
	ModelUsed      string   `json:"model_used"`
}

// Generator creates one icon per concept. Failures for individual concepts
// are logged and skipped; the request as a whole only fails on setup errors.
type Generator struct {
	endpoint string
	apiKey   string
	model    string
	style    string
	outDir   string
	http     *http.Client
	logger   *log.Logger
}

// New creates a Generator from the icons configuration.
func New(cfg config.IconsConfig, logger *log.Logger) *Generator {
	cfg = cfg.Normalize()
	if logger == nil {
		logger = log.New(log.Writer(), "[ICONS] ", log.LstdFlags)
	}
	return &Generator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		style:    cfg.Style,
		outDir:   cfg.OutDir,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Generate creates icons for the given concepts. The concepts argument is
// either the serialized visual brief or free text; see ParseConcepts.
func (g *Generator) Generate(ctx context.Context, concepts, style, contextText string) (Result, error) {
	if style == "" {
		style = g.style
	}
	list := ParseConcepts(concepts)
	if len(list) == 0 {
		return Result{GeneratedIcons: []Icon{}, IconPaths: []string{}, ModelUsed: g.model}, nil
	}
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating icon dir: %w", err)
	}

	result := Result{GeneratedIcons: []Icon{}, IconPaths: []string{}, ModelUsed: g.model}
	for idx, concept := range list {
		prompt := fmt.Sprintf("Create a simple, clear icon representing '%s'. Style: %s. Background: transparent. Context: %s. No text, no mathematical symbols.",
			concept, style, contextText)

		filename, err := g.generateOne(ctx, concept, prompt, idx+1)
		if err != nil {
			g.logger.Printf("icon for %q failed: %v", concept, err)
			continue
		}
		result.GeneratedIcons = append(result.GeneratedIcons, Icon{
			Concept:  concept,
			Filename: filename,
			Model:    g.model,
			Prompt:   prompt,
		})
		result.IconPaths = append(result.IconPaths, filename)
		g.logger.Printf("icon for %q saved to %s", concept, filename)
	}
	result.TotalGenerated = len(result.GeneratedIcons)
	return result, nil
}

func (g *Generator) generateOne(ctx context.Context, concept, prompt string, idx int) (string, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation API returned status %d", resp.StatusCode)
	}
	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parsing generation response: %w", err)
	}
	if len(parsed.Images) == 0 || parsed.Images[0].URL == "" {
		return "", fmt.Errorf("no images returned")
	}

	imgReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.Images[0].URL, nil)
	if err != nil {
		return "", err
	}
	imgResp, err := g.http.Do(imgReq)
	if err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}
	defer imgResp.Body.Close()
	if imgResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", imgResp.StatusCode)
	}

	filename := filepath.Join(g.outDir, fmt.Sprintf("%s_icon_%d.png", sanitizeName(concept), idx))
	out, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, imgResp.Body); err != nil {
		out.Close()
		os.Remove(filename)
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return filename, nil
}

// ParseConcepts extracts concept names from the serialized visual brief, or
// falls back to comma-separated free text. At most three concepts are
// returned.
func ParseConcepts(concepts string) []string {
	concepts = strings.TrimSpace(concepts)
	if concepts == "" {
		return nil
	}

	var brief struct {
		VisualBrief []struct {
			Concept string `json:"concept"`
		} `json:"visual_brief"`
	}
	if err := json.Unmarshal([]byte(concepts), &brief); err == nil && len(brief.VisualBrief) > 0 {
		var out []string
		for _, item := range brief.VisualBrief {
			if c := strings.TrimSpace(item.Concept); c != "" {
				out = append(out, c)
			}
		}
		return capConcepts(out)
	}

	var out []string
	for _, part := range strings.Split(concepts, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return capConcepts(out)
}

func capConcepts(list []string) []string {
	if len(list) > 3 {
		return list[:3]
	}
	return list
}

// sanitizeName keeps letters, digits, spaces, hyphens and underscores, then
// replaces spaces with underscores for the filename.
func sanitizeName(concept string) string {
	var b strings.Builder
	for _, ch := range concept {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == ' ', ch == '-', ch == '_':
			b.WriteRune(ch)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}
