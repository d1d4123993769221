package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"page-rag/internal/chunker"
	"page-rag/internal/config"
	"page-rag/internal/embedding"
	"page-rag/internal/metrics"
	"page-rag/internal/models"
	"page-rag/internal/table"
)

// ErrNoAnswerer is returned by Ask when the pipeline has no inference model.
var ErrNoAnswerer = errors.New("no inference model configured")

// Answerer produces a chat completion for a system and user prompt.
type Answerer interface {
	Answer(ctx context.Context, system, prompt string) (string, error)
}

type Options struct {
	Chunking chunker.Policy
	Prefixes embedding.PrefixPolicy
	// Workers bounds the number of embedding requests in flight per page.
	Workers int
}

var DefaultOptions = Options{
	Chunking: chunker.DefaultPolicy,
	Prefixes: embedding.DefaultPrefixes,
	Workers:  1,
}

func OptionsFromConfig(cfg *config.RAGConfig) (Options, error) {
	policy, err := chunker.NewPolicy(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return Options{}, err
	}
	prefixes := embedding.PrefixPolicy{Passage: cfg.PassagePrefix, Query: cfg.QueryPrefix}
	if cfg.DisablePrefix {
		prefixes = embedding.NoPrefix
	}
	return Options{
		Chunking: policy,
		Prefixes: prefixes,
		Workers:  max(cfg.Workers, 1),
	}, nil
}

// Pipeline ingests page text into document tables and answers queries against them.
type Pipeline struct {
	tables   *table.Manager
	embedder embedding.Embedder
	answerer Answerer
	opts     Options
}

func NewPipeline(tables *table.Manager, embedder embedding.Embedder, answerer Answerer, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{tables: tables, embedder: embedder, answerer: answerer, opts: opts}
}

// CreateTable creates the empty table for a document.
func (p *Pipeline) CreateTable(ctx context.Context, documentName string) error {
	return p.tables.CreateTable(ctx, documentName)
}

type embeddedChunk struct {
	index int
	text  string
	vec   []float32
	err   error
}

// EmbedPage chunks text, embeds every chunk and appends one row per
// embedded chunk tagged with page. Chunks that fail to embed or append are
// counted in the result and skipped; the returned error is non-nil only
// when the table cannot be opened.
func (p *Pipeline) EmbedPage(ctx context.Context, documentName, text string, page int32) (models.IngestResult, error) {
	tbl, err := p.tables.OpenTable(ctx, documentName)
	if err != nil {
		return models.IngestResult{}, err
	}

	chunks := p.opts.Chunking.Split(text)
	result := models.IngestResult{Attempted: len(chunks)}
	logger := log.With().Str("table", tbl.ID()).Int32("page", page).Logger()

	embedded := make(chan embeddedChunk)
	go func() {
		var g errgroup.Group
		g.SetLimit(p.opts.Workers)
		for i, chunk := range chunks {
			g.Go(func() error {
				vec, err := p.embedder.Embed(ctx, p.opts.Prefixes.PassageText(chunk))
				embedded <- embeddedChunk{index: i, text: chunk, vec: vec, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(embedded)
	}()

	// single appender
	for c := range embedded {
		if c.err != nil {
			logger.Warn().Err(c.err).Int("chunk", c.index).Msg("Dropping chunk: embedding failed")
			metrics.ChunksTotal.WithLabelValues(metrics.StatusEmbedFailed).Inc()
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("chunk %d: %w", c.index, c.err))
			continue
		}
		row := models.Row{ID: page, Text: c.text, Vector: c.vec}
		if err := tbl.Append(ctx, row); err != nil {
			logger.Warn().Err(err).Int("chunk", c.index).Msg("Dropping chunk: append failed")
			metrics.ChunksTotal.WithLabelValues(metrics.StatusAppendFailed).Inc()
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("chunk %d: %w", c.index, err))
			continue
		}
		metrics.ChunksTotal.WithLabelValues(metrics.StatusStored).Inc()
		result.Succeeded++
	}

	logger.Debug().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Embedded page")
	return result, nil
}

// IngestDocument creates the document table if needed and embeds every
// page in order. progress, when set, is called after each page.
func (p *Pipeline) IngestDocument(ctx context.Context, documentName string, pages []models.Page, progress func(done, total int)) (models.IngestResult, error) {
	var total models.IngestResult
	if err := p.tables.CreateTable(ctx, documentName); err != nil && !errors.Is(err, models.ErrTableExists) {
		return total, err
	}

	for i, page := range pages {
		res, err := p.EmbedPage(ctx, documentName, page.Text, page.Number)
		if err != nil {
			return total, err
		}
		total.Add(res)
		if progress != nil {
			progress(i+1, len(pages))
		}
	}

	log.Info().
		Str("document", documentName).
		Int("pages", len(pages)).
		Int("attempted", total.Attempted).
		Int("succeeded", total.Succeeded).
		Int("failed", total.Failed).
		Msg("Ingested document")
	return total, nil
}

// TopMatch returns the stored chunk closest to query.
func (p *Pipeline) TopMatch(ctx context.Context, documentName, query string) (models.TopMatch, error) {
	tbl, err := p.tables.OpenTable(ctx, documentName)
	if err != nil {
		return models.TopMatch{}, err
	}

	vec, err := p.embedder.Embed(ctx, p.opts.Prefixes.QueryText(query))
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.StatusError).Inc()
		if !errors.Is(err, models.ErrEmbeddingFailed) {
			err = fmt.Errorf("%w: %v", models.ErrEmbeddingFailed, err)
		}
		return models.TopMatch{}, err
	}

	matches, err := tbl.Nearest(ctx, vec, 1)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.StatusError).Inc()
		return models.TopMatch{}, err
	}
	if len(matches) == 0 {
		metrics.SearchesTotal.WithLabelValues(metrics.StatusEmpty).Inc()
		return models.TopMatch{}, fmt.Errorf("table %s: %w", tbl.ID(), models.ErrEmptyResult)
	}

	metrics.SearchesTotal.WithLabelValues(metrics.StatusHit).Inc()
	return models.TopMatch{Text: matches[0].Text, PageNumber: matches[0].ID}, nil
}

// Ask retrieves the top match for question and has the inference model
// answer it with that chunk as context.
func (p *Pipeline) Ask(ctx context.Context, documentName, question string) (models.Answer, error) {
	if p.answerer == nil {
		return models.Answer{}, ErrNoAnswerer
	}

	top, err := p.TopMatch(ctx, documentName, question)
	if err != nil {
		return models.Answer{}, err
	}

	prompt := fmt.Sprintf(models.AskPromptTemplate, top.PageNumber, top.Text, question)
	answer, err := p.answerer.Answer(ctx, models.AskSystemPrompt, prompt)
	if err != nil {
		return models.Answer{}, err
	}
	return models.Answer{Question: question, Answer: answer, Source: top}, nil
}
