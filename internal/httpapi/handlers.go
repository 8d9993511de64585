package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/ingest"
	"ragqa/internal/llm"
	"ragqa/internal/quality"
	"ragqa/internal/retrieval"
	"ragqa/internal/vectorstore"
)

// SampleSize is the number of records returned by /sample_embedding/.
const SampleSize = 5

// Handler serves the RAG endpoints.
type Handler struct {
	embedder   embedding.Embedder
	store      vectorstore.Storage
	pipeline   *retrieval.Pipeline
	ingest     *ingest.Service
	ingestDir  string
	scorer     *quality.Scorer
	generators llm.Factory
	logger     *zap.Logger
}

// Deps groups the services a Handler needs.
type Deps struct {
	Embedder   embedding.Embedder
	Store      vectorstore.Storage
	Pipeline   *retrieval.Pipeline
	Ingest     *ingest.Service
	IngestDir  string
	Scorer     *quality.Scorer
	Generators llm.Factory
	Logger     *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		embedder:   d.Embedder,
		store:      d.Store,
		pipeline:   d.Pipeline,
		ingest:     d.Ingest,
		ingestDir:  d.IngestDir,
		scorer:     d.Scorer,
		generators: d.Generators,
		logger:     logger,
	}
}

type EmbedRequest struct {
	Text string `json:"text" validate:"required"`
}

type EmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// StoreRequest stores text, optionally under an explicit id and with a
// precomputed vector. original_text is accepted in place of text.
type StoreRequest struct {
	Text         string    `json:"text" validate:"required_without=OriginalText"`
	OriginalText string    `json:"original_text,omitempty"`
	TextID       string    `json:"text_id,omitempty"`
	Vector       []float32 `json:"vector,omitempty"`
}

type StoreResponse struct {
	Status string `json:"status"`
	TextID string `json:"text_id"`
}

type RetrieveRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k,omitempty" validate:"omitempty,min=1,max=100"`
}

type RetrieveResponse struct {
	Results []domain.DocumentUsed `json:"results"`
}

type EnhancedRetrieveRequest struct {
	Query  string `json:"query" validate:"required"`
	APIKey string `json:"api_key"`
}

type EvaluateRequest struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual" validate:"required"`
}

type EvaluateResponse struct {
	Metrics map[string]float64 `json:"metrics"`
	Errors  map[string]string  `json:"errors,omitempty"`
}

type EmbedAllResponse struct {
	Status string `json:"status"`
	domain.IngestReport
}

type StatusResponse struct {
	Status string `json:"status"`
}

type CountResponse struct {
	NumberOfEmbeddings int `json:"number_of_embeddings"`
}

type SampleResponse struct {
	SampleEmbeddings []domain.Record `json:"sample_embeddings"`
}

func (h *Handler) Embed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "embed", err)
		return
	}
	vec, err := h.embedder.Embed(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, "embed", err)
		return
	}
	h.ok(w, EmbedResponse{Embedding: vec})
}

func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "store", err)
		return
	}
	text := req.Text
	if text == "" {
		text = req.OriginalText
	}
	id, err := h.ingest.StoreText(r.Context(), req.TextID, text, req.Vector)
	if err != nil {
		h.fail(w, r, "store", err)
		return
	}
	h.logger.Info("stored embedding", zap.String("text_id", id))
	h.ok(w, StoreResponse{Status: "stored", TextID: id})
}

func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "retrieve", err)
		return
	}
	results, err := h.pipeline.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.fail(w, r, "retrieve", err)
		return
	}
	out := make([]domain.DocumentUsed, len(results))
	for i, res := range results {
		out[i] = domain.DocumentUsed{TextID: res.ID, Snippet: res.Text, Score: res.Score}
	}
	h.ok(w, RetrieveResponse{Results: out})
}

func (h *Handler) EnhancedRetrieve(w http.ResponseWriter, r *http.Request) {
	var req EnhancedRetrieveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "enhanced_retrieve", err)
		return
	}
	gen, err := h.generators.New(req.APIKey)
	if err != nil {
		h.fail(w, r, "enhanced_retrieve", err)
		return
	}
	res, err := h.pipeline.RetrieveAndEnhance(r.Context(), req.Query, gen)
	if err != nil {
		h.fail(w, r, "enhanced_retrieve", err)
		return
	}
	h.logger.Info("enhanced retrieval", zap.Int("documents_used", len(res.DocumentsUsed)))
	h.ok(w, res)
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}
	eval := h.scorer.Evaluate(r.Context(), req.Expected, req.Actual)
	h.ok(w, EvaluateResponse{Metrics: eval.Metrics(), Errors: eval.Errors()})
}

func (h *Handler) EmbedAllDocuments(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingest.IngestDir(r.Context(), h.ingestDir)
	if err != nil {
		h.fail(w, r, "embed_all_documents", err)
		return
	}
	h.ok(w, EmbedAllResponse{Status: "Documents embedded and stored successfully", IngestReport: report})
}

func (h *Handler) ClearEmbeddings(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.fail(w, r, "clear_embeddings", err)
		return
	}
	h.logger.Info("embeddings cleared")
	h.ok(w, StatusResponse{Status: "Embeddings cleared successfully"})
}

func (h *Handler) CheckEmbeddings(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.fail(w, r, "check_embeddings", err)
		return
	}
	h.ok(w, CountResponse{NumberOfEmbeddings: n})
}

func (h *Handler) SampleEmbedding(w http.ResponseWriter, r *http.Request) {
	sample, err := h.store.Sample(r.Context(), SampleSize)
	if err != nil {
		h.fail(w, r, "sample_embedding", err)
		return
	}
	if sample == nil {
		sample = []domain.Record{}
	}
	h.ok(w, SampleResponse{SampleEmbeddings: sample})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.ok(w, StatusResponse{Status: "ok"})
}
