package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"page-rag/internal/config"
)

// Client sends chat completions to an OpenAI-compatible inference server.
type Client struct {
	llm llms.Model
}

func New(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating LLM client")
	key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
	if key == "" {
		key = "Nothing"
	}
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(key),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &Client{llm: llm}, nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model) *Client {
	return &Client{llm: llm}
}

// Answer sends a system and a user message and returns the first choice.
func (c *Client) Answer(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := GenerateContent(ctx, c.llm, messages)
	if err != nil {
		return "", err
	}
	return res.Choices[0].Content, nil
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}
	return res, nil
}
