package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: test-key
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.CompletionModel != "gpt-4o-mini" {
		t.Fatalf("completion model = %q", cfg.LLM.CompletionModel)
	}
	if cfg.Server.Address != ":10010" {
		t.Fatalf("server address = %q", cfg.Server.Address)
	}
	if !cfg.Telemetry.Enabled || !cfg.Telemetry.CostTracking {
		t.Fatalf("telemetry defaults = %+v", cfg.Telemetry)
	}
	if cfg.Tools.Literature.Endpoint != "http://export.arxiv.org/api/query" {
		t.Fatalf("literature endpoint = %q", cfg.Tools.Literature.Endpoint)
	}
	if cfg.Storage.File.DataDir != "output" || cfg.Storage.File.AnswerFile != "latest_explanation.json" {
		t.Fatalf("storage defaults = %+v", cfg.Storage.File)
	}
	if cfg.General.DefaultTimeout != 2*time.Minute {
		t.Fatalf("default timeout = %v", cfg.General.DefaultTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":8080"
llm:
  api_key: test-key
  completion_model: gpt-4o
  temperature: 0.7
tools:
  literature:
    max_results: 8
  notes:
    corpus_dir: ./notes
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("server address = %q", cfg.Server.Address)
	}
	if cfg.LLM.CompletionModel != "gpt-4o" || cfg.LLM.Temperature != 0.7 {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if cfg.Tools.Literature.MaxResults != 8 {
		t.Fatalf("literature max results = %d", cfg.Tools.Literature.MaxResults)
	}
	if !cfg.Tools.Notes.Enabled() {
		t.Fatalf("notes should be enabled when corpus_dir is set")
	}
	if cfg.Tools.Notes.ChunkChars != 1000 || cfg.Tools.Notes.TopK != 5 {
		t.Fatalf("notes defaults = %+v", cfg.Tools.Notes)
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	path := writeConfig(t, `
llm:
  completion_model: gpt-4o-mini
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected an error for a missing api key")
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "llm: [unclosed\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected a parse error for malformed yaml")
	}
}

func TestLoadConfigRejectsMalformedDiscoveredFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte("llm: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("a malformed discovered config file must not be silently ignored")
	}
}

func TestLiteratureNormalize(t *testing.T) {
	c := LiteratureConfig{}.Normalize()
	if c.Endpoint == "" || c.MaxResults != 5 || c.Timeout != 10*time.Second {
		t.Fatalf("normalized = %+v", c)
	}
	custom := LiteratureConfig{Endpoint: "http://localhost:9999", MaxResults: 2}.Normalize()
	if custom.Endpoint != "http://localhost:9999" || custom.MaxResults != 2 {
		t.Fatalf("custom values should survive, got %+v", custom)
	}
}

func TestIconsEnabled(t *testing.T) {
	if (IconsConfig{}).Enabled() {
		t.Fatalf("icons without endpoint and key should be disabled")
	}
	if (IconsConfig{Endpoint: "http://localhost:1"}).Enabled() {
		t.Fatalf("icons without an api key should be disabled")
	}
	if !(IconsConfig{Endpoint: "http://localhost:1", APIKey: "k"}).Enabled() {
		t.Fatalf("icons with endpoint and key should be enabled")
	}
}

func TestNotesNormalizeRejectsBadOverlap(t *testing.T) {
	c := NotesConfig{ChunkChars: 100, ChunkOverlap: 100}.Normalize()
	if c.ChunkOverlap >= c.ChunkChars {
		t.Fatalf("overlap must stay below chunk size, got %+v", c)
	}
	d := NotesConfig{}.Normalize()
	if d.ChunkChars != 1000 || d.ChunkOverlap != 150 {
		t.Fatalf("defaults = %+v", d)
	}
}
