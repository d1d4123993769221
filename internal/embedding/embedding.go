package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"page-rag/internal/config"
	"page-rag/internal/metrics"
	"page-rag/internal/models"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// PrefixPolicy marks passages and queries for models trained with
// asymmetric instructions (e5 style "passage: " / "query: ").
type PrefixPolicy struct {
	Passage string
	Query   string
}

var (
	DefaultPrefixes = PrefixPolicy{Passage: models.PassagePrefix, Query: models.QueryPrefix}
	NoPrefix        = PrefixPolicy{}
)

func (p PrefixPolicy) PassageText(text string) string { return p.Passage + text }

func (p PrefixPolicy) QueryText(text string) string { return p.Query + text }

// New builds the embedder selected by cfg.Provider and instruments it.
func New(cfg *config.LLMConfig) (Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		e = NewClient(cfg.BaseURL, cfg.Key, cfg.Model)
	case config.ProviderOpenAI:
		e, err = NewOpenAIEmbedder(cfg.Key, cfg.BaseURL, cfg.Model)
	case config.ProviderOllama:
		e, err = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderHTTP
	}
	return Instrument(e, provider), nil
}

// Instrument records latency and outcome of every call to e.
func Instrument(e Embedder, provider string) Embedder {
	return EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		start := time.Now()
		vec, err := e.Embed(ctx, text)
		metrics.ObserveEmbedding(provider, start, err)
		return vec, err
	})
}

// langchainEmbedder adapts a langchaingo embedder to Embedder.
type langchainEmbedder struct {
	impl *embeddings.EmbedderImpl
}

func (l *langchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := l.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingFailed, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", models.ErrEmbeddingFailed)
	}
	return vec, nil
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API through langchaingo.
// baseURL must include the /v1 suffix.
func NewOpenAIEmbedder(key, baseURL, embeddingModel string) (Embedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &langchainEmbedder{impl: embedder}, nil
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &langchainEmbedder{impl: embedder}, nil
}
