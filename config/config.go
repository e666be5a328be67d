package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the answer pipeline
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the completion provider configuration
type LLMConfig struct {
	Type            string        `mapstructure:"type"` // openai-compatible endpoints only for now
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CostPer1KInput  float64       `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64       `mapstructure:"cost_per_1k_output"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if strings.TrimSpace(l.CompletionModel) == "" {
		return fmt.Errorf("llm.completion_model required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// CapabilityConfig controls the ToolCard registry behaviour.
type CapabilityConfig struct {
	SigningSecret string   `mapstructure:"signing_secret"`
	RequiredTools []string `mapstructure:"required_tools"`
}

// ToolsConfig groups per-tool collaborator settings
type ToolsConfig struct {
	Literature LiteratureConfig `mapstructure:"literature"`
	Icons      IconsConfig      `mapstructure:"icons"`
	Notes      NotesConfig      `mapstructure:"notes"`
}

// LiteratureConfig contains arXiv search settings
type LiteratureConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Debug      bool          `mapstructure:"debug"`
}

// Normalize applies defaults for unset literature values.
func (c LiteratureConfig) Normalize() LiteratureConfig {
	if strings.TrimSpace(c.Endpoint) == "" {
		c.Endpoint = "http://export.arxiv.org/api/query"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// IconsConfig contains image-generation settings for the visualizer
type IconsConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Style    string        `mapstructure:"style"`
	OutDir   string        `mapstructure:"out_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Normalize applies defaults for unset icon generation values.
func (c IconsConfig) Normalize() IconsConfig {
	if strings.TrimSpace(c.OutDir) == "" {
		c.OutDir = "icons"
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if strings.TrimSpace(c.Style) == "" {
		c.Style = "flat minimalist style, simple and clear icons, transparent background, " +
			"no text or math symbols, suitable for educational animation"
	}
	return c
}

// Enabled reports whether the visualizer collaborator can be constructed.
func (c IconsConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.APIKey) != ""
}

// NotesConfig contains the local corpus retrieval settings
type NotesConfig struct {
	CorpusDir    string `mapstructure:"corpus_dir"`
	ChunkChars   int    `mapstructure:"chunk_chars"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
}

// Normalize applies defaults for unset notes values.
func (c NotesConfig) Normalize() NotesConfig {
	if c.ChunkChars <= 0 {
		c.ChunkChars = 1000
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkChars {
		c.ChunkOverlap = 150
	}
	if c.ChunkOverlap >= c.ChunkChars {
		c.ChunkOverlap = c.ChunkChars / 5
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// Enabled reports whether the local notes collaborator can be constructed.
func (c NotesConfig) Enabled() bool {
	return strings.TrimSpace(c.CorpusDir) != ""
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	File FileConfig `mapstructure:"file"`
}

// FileConfig contains the answer sink settings
type FileConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	AnswerFile string `mapstructure:"answer_file"`
}

// Normalize applies defaults for unset file storage values.
func (c FileConfig) Normalize() FileConfig {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "output"
	}
	if strings.TrimSpace(c.AnswerFile) == "" {
		c.AnswerFile = "latest_explanation.json"
	}
	return c
}

// LoadConfig loads config from file with VISOCODE_* env overrides
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetDefault("general.default_timeout", "2m")
	v.SetDefault("server.address", ":10010")
	v.SetDefault("llm.type", "openai")
	v.SetDefault("llm.completion_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("VISOCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		// Any other read or parse failure is fatal, discovered or not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Tools.Literature = cfg.Tools.Literature.Normalize()
	cfg.Tools.Icons = cfg.Tools.Icons.Normalize()
	cfg.Tools.Notes = cfg.Tools.Notes.Normalize()
	cfg.Storage.File = cfg.Storage.File.Normalize()

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
