package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
)

var _ embedding.Embedder = (*Client)(nil)

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		_, _ = w.Write([]byte(`{"embedding":[0.6,0.8]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, 2)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, vec)

	_, err = c.Embed(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = New(srv.URL, time.Second, 3).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"bad_gateway","message":"generation failed: invalid key"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, 0).EnhancedRetrieve(context.Background(), "q", "sk")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad_gateway", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "invalid key")
}

func TestClient_Endpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/check_embeddings/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"number_of_embeddings":7}`))
	})
	mux.HandleFunc("/clear_embeddings/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"status":"Embeddings cleared successfully"}`))
	})
	mux.HandleFunc("/enhanced_retrieve/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sk-1", body["api_key"])
		_, _ = w.Write([]byte(`{"enhanced_prompt":"q\nContextual Info:\n","llm_response":"a","documents_used":[{"text_id":"doc1","snippet":"full text","score":0.9}]}`))
	})
	mux.HandleFunc("/embed_all_documents/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","files":3,"stored":2,"skipped":1,"failed":0,"number_of_embeddings":2}`))
	})
	mux.HandleFunc("/sample_embedding/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sample_embeddings":[{"text_id":"doc1","vector":[1,0],"original_text":"x"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, time.Second, 2)
	ctx := context.Background()

	n, err := c.CheckEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, c.ClearEmbeddings(ctx))

	res, err := c.EnhancedRetrieve(ctx, "q", "sk-1")
	require.NoError(t, err)
	assert.Equal(t, "a", res.LLMResponse)
	require.Len(t, res.DocumentsUsed, 1)
	assert.Equal(t, "full text", res.DocumentsUsed[0].Snippet)

	report, err := c.EmbedAllDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 1, report.Skipped)

	sample, err := c.SampleEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, sample, 1)
	assert.Equal(t, "doc1", sample[0].ID)
}
