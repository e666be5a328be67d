package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCard describes one pipeline tool: schema metadata plus an integrity
// checksum and optional HMAC signature.
type ToolCard struct {
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	Description  string                 `json:"description"`
	Tool         string                 `json:"tool"`
	InputSchema  map[string]interface{} `json:"input_schema"`
	OutputSchema map[string]interface{} `json:"output_schema"`
	SideEffects  []string               `json:"side_effects"`
	Checksum     string                 `json:"checksum"`
	Signature    string                 `json:"signature"`
}

// DefaultToolCards returns built-in ToolCards for the pipeline tools.
func DefaultToolCards() []ToolCard {
	empty := func() map[string]interface{} {
		return map[string]interface{}{
			"$schema": "https://json-schema.org/draft/2020-12/schema",
			"type":    "object",
		}
	}
	return []ToolCard{
		{Name: "clarify", Version: "v1", Description: "Asks one follow-up question for ambiguous input", Tool: "clarify", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"network"}},
		{Name: "math", Version: "v1", Description: "Evaluates arithmetic expressions", Tool: "math", InputSchema: empty(), OutputSchema: empty()},
		{Name: "literature", Version: "v1", Description: "Searches arXiv for related papers", Tool: "literature", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"network"}},
		{Name: "notes", Version: "v1", Description: "Retrieves passages from a local notes corpus", Tool: "notes", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"filesystem"}},
		{Name: "code_analysis", Version: "v1", Description: "Reads and explains a source file", Tool: "code_analysis", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"filesystem", "network"}},
		{Name: "synthesize", Version: "v1", Description: "Synthesizes the final explanation and visual brief", Tool: "synthesize", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"network"}},
		{Name: "visualize", Version: "v1", Description: "Generates concept icons", Tool: "visualize", InputSchema: empty(), OutputSchema: empty(), SideEffects: []string{"network", "filesystem"}},
	}
}

// SignedDefaultCards returns the built-in ToolCards with checksum and
// signature filled in. With an empty secret the cards are returned unsigned.
func SignedDefaultCards(secret string) ([]ToolCard, error) {
	cards := DefaultToolCards()
	if secret == "" {
		return cards, nil
	}
	for i := range cards {
		checksum, err := ComputeChecksum(cards[i])
		if err != nil {
			return nil, fmt.Errorf("checksumming tool card %s: %w", cards[i].Name, err)
		}
		cards[i].Checksum = checksum
		sig, err := SignToolCard(cards[i], secret)
		if err != nil {
			return nil, fmt.Errorf("signing tool card %s: %w", cards[i].Name, err)
		}
		cards[i].Signature = sig
	}
	return cards, nil
}

// RequiredTools is the default set a registry must contain before the
// orchestrator will run.
var RequiredTools = []string{"clarify", "math", "literature", "code_analysis", "synthesize", "visualize"}

// Registry holds validated ToolCards keyed by tool name.
type Registry struct {
	tools map[string]ToolCard
}

// ErrToolMissing indicates a required tool is not registered.
var ErrToolMissing = fmt.Errorf("required tool missing")

// NewRegistry validates card signatures and ensures required tools exist.
// With an empty signing secret, signatures are not enforced. When multiple
// versions of a tool are registered the highest one wins.
func NewRegistry(cards []ToolCard, signingSecret string, required []string) (*Registry, error) {
	reg := &Registry{tools: make(map[string]ToolCard)}
	for _, tc := range cards {
		if err := validateSignature(tc, signingSecret); err != nil {
			return nil, fmt.Errorf("tool %s@%s signature invalid: %w", tc.Name, tc.Version, err)
		}
		existing, ok := reg.tools[tc.Tool]
		if !ok || versionGreater(tc.Version, existing.Version) {
			reg.tools[tc.Tool] = tc
		}
	}
	if len(required) == 0 {
		required = RequiredTools
	}
	for _, r := range required {
		if _, ok := reg.tools[r]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, r)
		}
	}
	return reg, nil
}

// Tool returns the ToolCard for a tool name.
func (r *Registry) Tool(name string) (ToolCard, bool) {
	if r == nil {
		return ToolCard{}, false
	}
	tc, ok := r.tools[name]
	return tc, ok
}

// ComputeChecksum returns a deterministic hash of the ToolCard payload,
// excluding the signature field.
func ComputeChecksum(tc ToolCard) (string, error) {
	payload := map[string]interface{}{
		"name":          tc.Name,
		"version":       tc.Version,
		"description":   tc.Description,
		"tool":          tc.Tool,
		"input_schema":  tc.InputSchema,
		"output_schema": tc.OutputSchema,
		"side_effects":  tc.SideEffects,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// SignToolCard computes an HMAC signature using the signing secret.
func SignToolCard(tc ToolCard, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	checksum, err := ComputeChecksum(tc)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(checksum))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func validateSignature(tc ToolCard, secret string) error {
	if secret == "" {
		return nil
	}
	expected, err := SignToolCard(tc, secret)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(tc.Signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func versionGreater(a, b string) bool {
	if a == b {
		return false
	}
	return compareVersions(splitVersion(a), splitVersion(b)) > 0
}

func splitVersion(v string) []int {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		fmt.Sscanf(p, "%d", &out[i])
	}
	return out
}

func compareVersions(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := 0, 0
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai != bi {
			if ai > bi {
				return 1
			}
			return -1
		}
	}
	return 0
}
