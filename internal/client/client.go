package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/httpapi"
)

// Client talks to a running rag-service.
type Client struct {
	baseURL   string
	http      *http.Client
	dimension int
}

// New creates a client. dimension is reported by Dimension and checked
// against returned embeddings; 0 means the default 384.
func New(baseURL string, timeout time.Duration, dimension int) *Client {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if dimension <= 0 {
		dimension = embedding.DefaultDimension
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		dimension: dimension,
	}
}

// APIError is a non-200 reply from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rag service: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("rag service: %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) Name() string   { return "remote:" + c.baseURL }
func (c *Client) Dimension() int { return c.dimension }

// Embed satisfies embedding.Embedder through the service's /embed/ endpoint.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("remote embed: %w", domain.ErrEmptyInput)
	}
	var out httpapi.EmbedResponse
	if err := c.do(ctx, http.MethodPost, "/embed/", httpapi.EmbedRequest{Text: text}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(out.Embedding) != c.dimension {
		return nil, fmt.Errorf("%w: service returned %d values, want %d", domain.ErrDimensionMismatch, len(out.Embedding), c.dimension)
	}
	return out.Embedding, nil
}

func (c *Client) StoreText(ctx context.Context, textID, text string) (httpapi.StoreResponse, error) {
	var out httpapi.StoreResponse
	err := c.do(ctx, http.MethodPost, "/store/", httpapi.StoreRequest{Text: text, TextID: textID}, &out)
	return out, err
}

func (c *Client) RetrieveSimilar(ctx context.Context, query string, topK int) ([]domain.DocumentUsed, error) {
	var out httpapi.RetrieveResponse
	if err := c.do(ctx, http.MethodPost, "/retrieve/", httpapi.RetrieveRequest{Query: query, TopK: topK}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) EnhancedRetrieve(ctx context.Context, query, apiKey string) (domain.EnhancedResult, error) {
	var out domain.EnhancedResult
	err := c.do(ctx, http.MethodPost, "/enhanced_retrieve/", httpapi.EnhancedRetrieveRequest{Query: query, APIKey: apiKey}, &out)
	return out, err
}

func (c *Client) Evaluate(ctx context.Context, expected, actual string) (httpapi.EvaluateResponse, error) {
	var out httpapi.EvaluateResponse
	err := c.do(ctx, http.MethodPost, "/evaluate/", httpapi.EvaluateRequest{Expected: expected, Actual: actual}, &out)
	return out, err
}

func (c *Client) EmbedAllDocuments(ctx context.Context) (domain.IngestReport, error) {
	var out httpapi.EmbedAllResponse
	err := c.do(ctx, http.MethodPost, "/embed_all_documents/", nil, &out)
	return out.IngestReport, err
}

func (c *Client) ClearEmbeddings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/clear_embeddings/", nil, nil)
}

func (c *Client) CheckEmbeddings(ctx context.Context) (int, error) {
	var out httpapi.CountResponse
	if err := c.do(ctx, http.MethodGet, "/check_embeddings/", nil, &out); err != nil {
		return 0, err
	}
	return out.NumberOfEmbeddings, nil
}

func (c *Client) SampleEmbeddings(ctx context.Context) ([]domain.Record, error) {
	var out httpapi.SampleResponse
	if err := c.do(ctx, http.MethodGet, "/sample_embedding/", nil, &out); err != nil {
		return nil, err
	}
	return out.SampleEmbeddings, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var env httpapi.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Error != "" {
			apiErr.Code = env.Error
			apiErr.Message = env.Message
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
