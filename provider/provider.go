package provider

import (
	"context"
	"errors"

	"github.com/viso-study/visocode/config"
	openai_provider "github.com/viso-study/visocode/provider/openai"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in a conversation. The concrete type lives in
// the openai subpackage so client implementations can share it without a cycle.
type Message = openai_provider.Message

// Completer is the interface all completion service implementations must satisfy
type Completer interface {
	// Complete sends an ordered message list and returns the assistant content.
	Complete(ctx context.Context, messages []Message) (string, error)
	// LastUsage reports prompt/completion token usage for the last call.
	LastUsage() (prompt int64, completion int64)
}

// NewCompleter creates a completion client based on the provided configuration
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	switch cfg.Type {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		return openai_provider.NewClient(openai_provider.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.CompletionModel,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	default:
		return nil, errors.New("unsupported completion provider")
	}
}

// openai adapter lives in provider/openai; re-exported here so callers only
// import this package.
var _ Completer = (*openai_provider.Client)(nil)
