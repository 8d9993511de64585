package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

// PromptTemplate places the query above the retrieved context.
const PromptTemplate = "%s\nContextual Info:\n%s"

// Config controls retrieval depth and context snippets.
type Config struct {
	TopK          int
	SnippetChars  int
	SnippetMarker string
}

// Pipeline embeds a query, fetches similar records and builds an enhanced prompt.
type Pipeline struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	cfg      Config
	logger   *zap.Logger
}

func NewPipeline(embedder embedding.Embedder, store vectorstore.Storage, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Retrieve returns up to topK records most similar to query, best first.
// topK <= 0 uses the configured depth.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = p.cfg.TopK
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := p.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// Enhance retrieves context for query and formats the combined prompt.
// An empty store yields an empty context, not an error.
func (p *Pipeline) Enhance(ctx context.Context, query string) (domain.EnhancedPrompt, []domain.SearchResult, error) {
	results, err := p.Retrieve(ctx, query, p.cfg.TopK)
	if err != nil {
		return domain.EnhancedPrompt{}, nil, err
	}
	contextText := BuildContext(results, p.cfg.SnippetChars, p.cfg.SnippetMarker)
	return domain.EnhancedPrompt{
		Query:   query,
		Context: contextText,
		Text:    FormatPrompt(query, contextText),
	}, results, nil
}

// RetrieveAndEnhance runs Enhance and sends the prompt to gen.
func (p *Pipeline) RetrieveAndEnhance(ctx context.Context, query string, gen domain.Generator) (domain.EnhancedResult, error) {
	prompt, results, err := p.Enhance(ctx, query)
	if err != nil {
		return domain.EnhancedResult{}, err
	}
	p.logger.Debug("enhanced prompt built", zap.Int("documents", len(results)), zap.Int("prompt_chars", len(prompt.Text)))

	answer, err := gen.Generate(ctx, prompt.Text)
	if err != nil {
		return domain.EnhancedResult{}, err
	}

	used := make([]domain.DocumentUsed, len(results))
	for i, r := range results {
		used[i] = domain.DocumentUsed{TextID: r.ID, Snippet: r.Text, Score: r.Score}
	}
	return domain.EnhancedResult{
		EnhancedPrompt: prompt.Text,
		LLMResponse:    answer,
		DocumentsUsed:  used,
	}, nil
}

// Snippet keeps the first n characters of text and appends marker unconditionally.
func Snippet(text string, n int, marker string) string {
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + marker
}

// BuildContext joins the snippets of results in ranking order with no delimiter.
func BuildContext(results []domain.SearchResult, n int, marker string) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(Snippet(r.Text, n, marker))
	}
	return b.String()
}

func FormatPrompt(query, contextText string) string {
	return fmt.Sprintf(PromptTemplate, query, contextText)
}
