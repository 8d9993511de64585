// Package app assembles the service components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/rediscache"
	"ragqa/internal/httpapi"
	"ragqa/internal/ingest"
	"ragqa/internal/llm"
	"ragqa/internal/llm/ollama"
	llmopenai "ragqa/internal/llm/openai"
	"ragqa/internal/quality"
	"ragqa/internal/retrieval"
	"ragqa/internal/summarizer"
	"ragqa/internal/textanalysis"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// App holds the wired components of a running service.
type App struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Embedder   embedding.Embedder
	Store      vectorstore.Storage
	Pipeline   *retrieval.Pipeline
	Ingest     *ingest.Service
	Scorer     *quality.Scorer
	Generators llm.Factory

	redis *redis.Client
}

// New builds every component named by cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	emb, err := a.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	a.Embedder = emb

	store, err := newStore(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Store = store

	gens, err := NewGenerators(cfg.Generator)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Generators = gens

	a.Pipeline = retrieval.NewPipeline(emb, store, retrieval.Config{
		TopK:          cfg.Retrieval.TopK,
		SnippetChars:  cfg.Retrieval.SnippetChars,
		SnippetMarker: cfg.Retrieval.SnippetMarker,
	}, logger.Named("retrieval"))

	var ch domain.Chunker
	if cfg.Ingest.Chunker.Type == "sentence" {
		ch = chunker.NewSentenceChunker(cfg.Ingest.Chunker.SentencesPerChunk, cfg.Ingest.Chunker.OverlapSentences)
	}
	var sum domain.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}
	a.Ingest = ingest.NewService(emb, store, ch, sum, ingest.Config{
		Extension:        cfg.Ingest.Extension,
		ContentField:     cfg.Ingest.ContentField,
		MaxStoredChars:   cfg.Ingest.MaxStoredChars,
		IndexMinRows:     cfg.VectorStore.IndexMinRows,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, logger.Named("ingest"))

	a.Scorer = NewScorer(emb, cfg.Quality, logger)

	logger.Info("components ready",
		zap.String("embedder", emb.Name()),
		zap.Int("dimension", emb.Dimension()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("generator", cfg.Generator.Type),
	)
	return a, nil
}

// Handler returns the HTTP handler for the service API.
func (a *App) Handler() *httpapi.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Embedder:   a.Embedder,
		Store:      a.Store,
		Pipeline:   a.Pipeline,
		Ingest:     a.Ingest,
		IngestDir:  a.Config.Ingest.Dir,
		Scorer:     a.Scorer,
		Generators: a.Generators,
		Logger:     a.Logger.Named("http"),
	})
}

// Close releases the vector store and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// NewScorer builds a quality scorer over emb with the configured constants.
func NewScorer(emb embedding.Embedder, cfg config.QualityConfig, logger *zap.Logger) *quality.Scorer {
	return quality.NewScorer(textanalysis.NewAnalyzer(emb), nil, quality.Config{
		ClarityDivisor:       cfg.ClarityDivisor,
		ConcisenessNumerator: cfg.ConcisenessNumerator,
		ConcisenessScale:     cfg.ConcisenessScale,
	}, logger.Named("quality"))
}

// NewGenerators returns the factory for the configured language model.
func NewGenerators(cfg config.GeneratorConfig) (llm.Factory, error) {
	switch cfg.Type {
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai generator config missing")
		}
		return llmopenai.NewFactory(llmopenai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     config.Timeout(cfg.OpenAI.TimeoutSecs),
		}), nil
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama generator config missing")
		}
		return ollama.NewFactory(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: config.Timeout(cfg.Ollama.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func (a *App) newEmbedder(ctx context.Context) (embedding.Embedder, error) {
	cfg := a.Config.Embedder
	var emb embedding.Embedder
	switch cfg.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Dimension)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimension:  cfg.Dimension,
			Timeout:    config.Timeout(cfg.OpenAI.TimeoutSecs),
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}

	if !cfg.Cache.Enabled {
		return emb, nil
	}
	opts := &redis.Options{Addr: cfg.Cache.Addr, DB: cfg.Cache.DB}
	if cfg.Cache.PasswordEnv != "" {
		opts.Password = os.Getenv(cfg.Cache.PasswordEnv)
	}
	a.redis = redis.NewClient(opts)
	if err := a.redis.Ping(ctx).Err(); err != nil {
		// Embed falls through to the inner embedder while Redis is down.
		a.Logger.Warn("embedding cache unreachable", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
	}
	return rediscache.New(emb, a.redis, rediscache.Config{
		TTL:       config.Timeout(cfg.Cache.TTLSecs),
		KeyPrefix: cfg.Cache.KeyPrefix,
	}, a.Logger.Named("cache")), nil
}

func newStore(ctx context.Context, cfg *config.AppConfig) (vectorstore.Storage, error) {
	dim := cfg.Embedder.Dimension
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(dim), nil
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			return nil, fmt.Errorf("sqlite config missing")
		}
		st, err := sqlite.Open(ctx, cfg.VectorStore.SQLite.Path, dim)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		var apiKey string
		if q.APIKeyEnv != "" {
			apiKey = os.Getenv(q.APIKeyEnv)
		}
		st := qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     apiKey,
			Collection: q.Collection,
			Dimension:  dim,
			Timeout:    config.Timeout(q.TimeoutSecs),
		})
		if err := st.Init(ctx); err != nil {
			return nil, fmt.Errorf("qdrant init: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
