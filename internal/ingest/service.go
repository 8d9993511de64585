package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

// Config controls how a document directory is turned into records.
type Config struct {
	Extension        string
	ContentField     string
	MaxStoredChars   int // 0 keeps the full text
	IndexMinRows     int
	SummarySentences int
}

// Service embeds documents and stores them in the vector index.
type Service struct {
	embedder   embedding.Embedder
	store      vectorstore.Storage
	chunker    domain.Chunker
	summarizer domain.Summarizer
	cfg        Config
	logger     *zap.Logger
}

// NewService builds an ingestion service. chunker and summarizer may be nil:
// without a chunker every document becomes one record, without a summarizer
// the report carries no summary.
func NewService(embedder embedding.Embedder, store vectorstore.Storage, chunker domain.Chunker, summarizer domain.Summarizer, cfg Config, logger *zap.Logger) *Service {
	if cfg.Extension == "" {
		cfg.Extension = ".json"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.IndexMinRows <= 0 {
		cfg.IndexMinRows = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:   embedder,
		store:      store,
		chunker:    chunker,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// IngestDir walks dir and stores one record per document (or per chunk).
// A bad file or a failed write is logged and counted; it does not stop the run.
func (s *Service) IngestDir(ctx context.Context, dir string) (domain.IngestReport, error) {
	var report domain.IngestReport
	if _, err := os.Stat(dir); err != nil {
		return report, fmt.Errorf("ingest dir: %w", err)
	}

	var corpus strings.Builder
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), s.cfg.Extension) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Files++

		doc, err := s.readDocument(path)
		if err != nil {
			if errors.Is(err, domain.ErrEmptyInput) {
				s.logger.Warn("no content found", zap.String("path", path), zap.String("field", s.cfg.ContentField))
				report.Skipped++
				return nil
			}
			s.logger.Error("failed to read document", zap.String("path", path), zap.Error(err))
			report.Failed++
			return nil
		}
		corpus.WriteString(doc.Content)
		corpus.WriteString("\n")

		for _, ch := range s.split(doc) {
			if err := s.storeChunk(ctx, ch); err != nil {
				s.logger.Error("failed to store document", zap.String("text_id", ch.ChunkID), zap.Error(err))
				report.Failed++
				continue
			}
			report.Stored++
			s.logger.Info("document stored", zap.String("path", path), zap.String("text_id", ch.ChunkID))
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count embeddings: %w", err)
	}
	report.Count = count
	s.buildIndex(ctx, count)

	if s.summarizer != nil && corpus.Len() > 0 {
		summary, err := s.summarizer.Summarize(corpus.String(), s.cfg.SummarySentences)
		if err != nil {
			s.logger.Warn("summary failed", zap.Error(err))
		} else {
			report.Summary = summary
		}
	}
	s.logger.Info("ingestion finished",
		zap.Int("files", report.Files),
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("number_of_embeddings", report.Count),
	)
	return report, nil
}

// StoreText stores a single record. The text is embedded when vector is nil.
// An empty id falls back to the text itself.
func (s *Service) StoreText(ctx context.Context, id, text string, vector []float32) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("store: %w", domain.ErrEmptyInput)
	}
	if id == "" {
		id = text
	}
	if vector == nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return "", err
		}
		vector = vec
	}
	if len(vector) != s.embedder.Dimension() {
		return "", fmt.Errorf("%w: got %d values, want %d", domain.ErrDimensionMismatch, len(vector), s.embedder.Dimension())
	}
	if err := s.store.Add(ctx, []domain.Record{{ID: id, Vector: vector, Text: text}}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) readDocument(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	content, _ := fields[s.cfg.ContentField].(string)
	if strings.TrimSpace(content) == "" {
		return domain.Document{}, domain.ErrEmptyInput
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return domain.Document{ID: stem, Path: path, Content: content}, nil
}

func (s *Service) split(doc domain.Document) []domain.Chunk {
	whole := []domain.Chunk{{DocumentID: doc.ID, ChunkID: doc.ID, Text: doc.Content}}
	if s.chunker == nil {
		return whole
	}
	chunks, err := s.chunker.Chunk(doc)
	if err != nil || len(chunks) == 0 {
		if err != nil {
			s.logger.Warn("chunking failed, storing whole document", zap.String("text_id", doc.ID), zap.Error(err))
		}
		return whole
	}
	return chunks
}

func (s *Service) storeChunk(ctx context.Context, ch domain.Chunk) error {
	vec, err := s.embedder.Embed(ctx, ch.Text)
	if err != nil {
		return err
	}
	rec := domain.Record{ID: ch.ChunkID, Vector: vec, Text: truncate(ch.Text, s.cfg.MaxStoredChars)}
	return s.store.Add(ctx, []domain.Record{rec})
}

func (s *Service) buildIndex(ctx context.Context, count int) {
	builder, ok := s.store.(vectorstore.IndexBuilder)
	if !ok {
		return
	}
	if count < s.cfg.IndexMinRows {
		s.logger.Info("skipping index creation", zap.Int("rows", count), zap.Int("min_rows", s.cfg.IndexMinRows))
		return
	}
	if err := builder.BuildIndex(ctx); err != nil {
		s.logger.Warn("could not create index", zap.Error(err))
	}
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
