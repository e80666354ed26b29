package compose

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GeneratorConfig configures the chat-completions generator. BaseURL may
// point at any OpenAI-compatible endpoint; the default is OpenRouter.
type GeneratorConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewGenerator returns a GenerateFunc backed by a chat-completions API.
func NewGenerator(cfg GeneratorConfig) GenerateFunc {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 280
	}

	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     cfg.Model,
			MaxTokens: maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("completion returned no choices")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
}
