package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/ingest"
	"ragqa/internal/llm"
	"ragqa/internal/quality"
	"ragqa/internal/retrieval"
	"ragqa/internal/textanalysis"
	"ragqa/internal/vectorstore/memory"
)

type echoGenerator struct {
	err error
}

func (g echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "answer to: " + strings.SplitN(prompt, "\n", 2)[0], nil
}

type testServer struct {
	handler http.Handler
	store   *memory.Storage
	keys    []string
}

func newTestServer(t *testing.T, gen domain.Generator) *testServer {
	t.Helper()
	emb := hashing.NewEmbedder(384)
	store := memory.NewStorage(384)
	logger := zap.NewNop()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc1.json"),
		[]byte(`{"content":"Employees receive 20 days of paid leave annually."}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc2.json"),
		[]byte(`{"content":"Health insurance covers dental and vision care."}`), 0o644))

	ts := &testServer{store: store}
	factory := llm.FactoryFunc(func(apiKey string) (domain.Generator, error) {
		ts.keys = append(ts.keys, apiKey)
		return gen, nil
	})
	h := NewHandler(Deps{
		Embedder:   emb,
		Store:      store,
		Pipeline:   retrieval.NewPipeline(emb, store, retrieval.Config{TopK: 5, SnippetChars: 200, SnippetMarker: "..."}, logger),
		Ingest:     ingest.NewService(emb, store, nil, nil, ingest.Config{}, logger),
		IngestDir:  dir,
		Scorer:     quality.NewScorer(textanalysis.NewAnalyzer(emb), nil, quality.DefaultConfig(), logger),
		Generators: factory,
		Logger:     logger,
	})
	ts.handler = NewRouter(h, RouterConfig{})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestEmbed(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})

	w := ts.do(t, http.MethodPost, "/embed/", EmbedRequest{Text: "paid leave"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[EmbedResponse](t, w).Embedding, 384)

	w = ts.do(t, http.MethodPost, "/embed/", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errResp := decodeBody[ErrorResponse](t, w)
	assert.Equal(t, "bad_request", errResp.Error)
	assert.Contains(t, errResp.Details, "text")
}

func TestStore(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})

	w := ts.do(t, http.MethodPost, "/store/", StoreRequest{Text: "Remote work needs approval."})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[StoreResponse](t, w)
	assert.Equal(t, "stored", resp.Status)
	assert.Equal(t, "Remote work needs approval.", resp.TextID)

	w = ts.do(t, http.MethodPost, "/store/", map[string]any{"text_id": "x", "original_text": "precomputed", "vector": make([]float32, 384)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "x", decodeBody[StoreResponse](t, w).TextID)

	w = ts.do(t, http.MethodPost, "/store/", StoreRequest{Text: "bad", Vector: []float32{1, 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	n, err := ts.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbedAllThenRetrieve(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})

	w := ts.do(t, http.MethodPost, "/embed_all_documents/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decodeBody[EmbedAllResponse](t, w)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 2, report.Count)

	w = ts.do(t, http.MethodGet, "/check_embeddings/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeBody[CountResponse](t, w).NumberOfEmbeddings)

	w = ts.do(t, http.MethodPost, "/retrieve/", RetrieveRequest{Query: "Employees receive 20 days of paid leave annually.", TopK: 1})
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeBody[RetrieveResponse](t, w).Results
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].TextID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	w = ts.do(t, http.MethodGet, "/sample_embedding/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sample := decodeBody[SampleResponse](t, w).SampleEmbeddings
	require.Len(t, sample, 2)
	assert.Len(t, sample[0].Vector, 384)
}

func TestEnhancedRetrieve(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})
	ts.do(t, http.MethodPost, "/embed_all_documents/", nil)

	w := ts.do(t, http.MethodPost, "/enhanced_retrieve/", EnhancedRetrieveRequest{Query: "paid leave", APIKey: "sk-user"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[domain.EnhancedResult](t, w)

	assert.True(t, strings.HasPrefix(res.EnhancedPrompt, "paid leave\nContextual Info:\n"))
	assert.Equal(t, "answer to: paid leave", res.LLMResponse)
	require.Len(t, res.DocumentsUsed, 2)
	assert.Equal(t, "doc1", res.DocumentsUsed[0].TextID)
	assert.Equal(t, []string{"sk-user"}, ts.keys)
}

func TestEnhancedRetrieve_GenerationFailure(t *testing.T) {
	ts := newTestServer(t, echoGenerator{err: errors.Join(domain.ErrGeneration, errors.New("invalid key"))})

	w := ts.do(t, http.MethodPost, "/enhanced_retrieve/", EnhancedRetrieveRequest{Query: "paid leave"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "bad_gateway", decodeBody[ErrorResponse](t, w).Error)
}

func TestEvaluate(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})

	w := ts.do(t, http.MethodPost, "/evaluate/", EvaluateRequest{
		Expected: "Provide a clear summary of employee benefits.",
		Actual:   "Employee benefits include health insurance. Benefits start after one month.",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[EvaluateResponse](t, w)
	assert.Len(t, resp.Metrics, 6)
	for name, v := range resp.Metrics {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestClearEmbeddings(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})
	ts.do(t, http.MethodPost, "/embed_all_documents/", nil)

	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodPost, "/clear_embeddings/", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := ts.do(t, http.MethodGet, "/check_embeddings/", nil)
	assert.Zero(t, decodeBody[CountResponse](t, w).NumberOfEmbeddings)

	w = ts.do(t, http.MethodGet, "/sample_embedding/", nil)
	assert.JSONEq(t, `{"sample_embeddings":[]}`, w.Body.String())
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, echoGenerator{})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/embed/", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/retrieve/", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ErrEmptyInput))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.ErrEmbedding))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}
