package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across the pipeline. Callers wrap them with context.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrEmbedding         = errors.New("embedding failed")
	ErrGeneration        = errors.New("generation failed")
)

// Document represents a single source document loaded at ingestion time.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// Record is one stored embedding: identifier, vector and original text.
// Records are immutable once stored.
type Record struct {
	ID     string    `json:"text_id"`
	Vector []float32 `json:"vector"`
	Text   string    `json:"original_text"`
}

// SearchResult is a stored record matched by a similarity query.
// Score is cosine similarity: higher is better.
type SearchResult struct {
	ID    string
	Text  string
	Score float64
}

// EnhancedPrompt is a query merged with retrieved context.
type EnhancedPrompt struct {
	Query   string
	Context string
	Text    string
}

// DocumentUsed is the per-document metadata returned with an enhanced prompt.
// Snippet carries the stored text, not the truncated context snippet.
type DocumentUsed struct {
	TextID  string  `json:"text_id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// EnhancedResult is the outcome of retrieve-and-enhance.
type EnhancedResult struct {
	EnhancedPrompt string         `json:"enhanced_prompt"`
	LLMResponse    string         `json:"llm_response"`
	DocumentsUsed  []DocumentUsed `json:"documents_used"`
}

// IngestReport summarises a bulk ingestion run.
type IngestReport struct {
	Files   int    `json:"files"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Count   int    `json:"number_of_embeddings"`
	Summary string `json:"summary,omitempty"`
}

// QualityReport is one scored prompt test kept in session history.
type QualityReport struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Prompt    string             `json:"prompt"`
	Expected  string             `json:"expected"`
	Response  string             `json:"response"`
	Metrics   map[string]float64 `json:"metrics"`
	Overall   float64            `json:"overall"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
