package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 200, cfg.Retrieval.SnippetChars)
	assert.Equal(t, "...", cfg.Retrieval.SnippetMarker)
	assert.Equal(t, 0, cfg.Ingest.MaxStoredChars)
	assert.Equal(t, 100.0, cfg.Quality.ClarityDivisor)
	assert.Equal(t, 2.0, cfg.Quality.ConcisenessNumerator)
	assert.Equal(t, 100.0, cfg.Quality.ConcisenessScale)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	require.NoError(t, cfg.Validate())
}

func TestLoad_AppliesSectionDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
embedder:
  type: openai
vector_store:
  type: sqlite
generator:
  type: ollama
ingest:
  max_stored_chars: 200
  chunker:
    type: sentence
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	require.NotNil(t, cfg.VectorStore.SQLite)
	assert.Equal(t, "embeddings.db", cfg.VectorStore.SQLite.Path)
	require.NotNil(t, cfg.Generator.Ollama)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.Ollama.BaseURL)
	assert.Nil(t, cfg.Generator.OpenAI)
	assert.Equal(t, 200, cfg.Ingest.MaxStoredChars)
	assert.Equal(t, 5, cfg.Ingest.Chunker.SentencesPerChunk)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown store", yaml: "vector_store:\n  type: milvus\n"},
		{name: "unknown embedder", yaml: "embedder:\n  type: bert\n"},
		{name: "negative top_k", yaml: "retrieval:\n  top_k: -1\n"},
		{name: "negative quality constant", yaml: "quality:\n  clarity_divisor: -5\n"},
		{name: "bad yaml", yaml: "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.TopK = 3

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Retrieval.TopK)
	assert.Equal(t, cfg.Quality, loaded.Quality)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "ragqa", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, Timeout(30))
}
