// Package completion wraps the language-model fallback used when the
// knowledge base has no answer.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyReply is returned when the model produced no usable text.
var ErrEmptyReply = errors.New("completion returned no content")

// Config configures an OpenAI-compatible chat completion client.
type Config struct {
	APIKey       string
	APIBase      string // empty = api.openai.com
	Model        string
	SystemPrompt string
	MaxTokens    int
	Timeout      time.Duration // 0 = no timeout
}

// OpenAI answers a single user message with one chat completion call.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAI creates a completer for any OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	}
	slog.Info("initializing completion client", "model", cfg.Model, "base", clientCfg.BaseURL)

	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Complete returns the model's reply to userText.
func (o *OpenAI) Complete(ctx context.Context, userText string) (string, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		MaxTokens: o.cfg.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	slog.Debug("completion received", "finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens)
	return reply, nil
}
