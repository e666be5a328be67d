package openai_provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configure the OpenAI-compatible completion client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements chat completion against an OpenAI-compatible API
type Client struct {
	api   *openai.Client
	opts  Options
	mu    sync.Mutex
	usage openai.Usage
}

// NewClient creates a new completion client
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), opts: opts}
}

// Complete sends the conversation and returns the assistant content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "tool" {
			// OpenAI only accepts system/user/assistant here; surface tool
			// output as assistant text.
			role = openai.ChatMessageRoleAssistant
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    chat,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choice list")
	}

	c.mu.Lock()
	c.usage = resp.Usage
	c.mu.Unlock()

	return resp.Choices[0].Message.Content, nil
}

// LastUsage reports token usage for the most recent completion.
func (c *Client) LastUsage() (int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.usage.PromptTokens), int64(c.usage.CompletionTokens)
}
