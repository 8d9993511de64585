package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// The collection uses cosine distance; Qdrant scores are similarities, higher is better.
// Every point carries an increasing seq payload: equal scores and samples are
// ordered by it.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	seq        atomic.Int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "embeddings"
	}
	s := &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
	s.seq.Store(time.Now().UnixNano())
	return s
}

// Init creates the collection when it does not exist yet.
func (s *Storage) Init(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == nil {
		return s.createIndex(ctx, "seq", "integer")
	}
	if status != http.StatusNotFound {
		return err
	}
	return s.create(ctx)
}

func (s *Storage) create(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return err
	}
	return s.createIndex(ctx, "seq", "integer")
}

func (s *Storage) createIndex(ctx context.Context, field, schema string) error {
	body := map[string]any{"field_name": field, "field_schema": schema}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/index?wait=true", body, nil)
	return err
}

func (s *Storage) Add(ctx context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records, s.dimension); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     uuid.New().String(),
			"vector": r.Vector,
			"payload": map[string]any{
				"text_id":       r.ID,
				"original_text": r.Text,
				"seq":           s.seq.Add(1),
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

// Search returns the topK most similar records. Qdrant does not define the
// order of equal scores, so the limit grows until the topK cut no longer
// falls inside a run of ties.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	limit := topK * 2
	for {
		hits, err := s.search(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].result.Score != hits[j].result.Score {
				return hits[i].result.Score > hits[j].result.Score
			}
			return hits[i].seq < hits[j].seq
		})
		exhausted := len(hits) < limit || limit >= maxSearchLimit
		if exhausted || len(hits) <= topK || hits[len(hits)-1].result.Score < hits[topK-1].result.Score {
			n := min(topK, len(hits))
			results := make([]domain.SearchResult, n)
			for i := range results {
				results[i] = hits[i].result
			}
			return results, nil
		}
		limit = min(limit*2, maxSearchLimit)
	}
}

const maxSearchLimit = 10000

func (s *Storage) search(ctx context.Context, vector []float32, limit int) ([]hit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	hits := make([]hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, hit{
			result: domain.SearchResult{ID: r.Payload.TextID, Text: r.Payload.OriginalText, Score: r.Score},
			seq:    r.Payload.Seq,
		})
	}
	return hits, nil
}

// Clear drops and re-creates the collection.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return s.create(ctx)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Sample(ctx context.Context, n int) ([]domain.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"limit":        n,
		"with_payload": true,
		"with_vector":  true,
		"order_by":     map[string]any{"key": "seq", "direction": "asc"},
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload payload   `json:"payload"`
				Vector  []float32 `json:"vector"`
			} `json:"points"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, domain.Record{ID: p.Payload.TextID, Vector: p.Vector, Text: p.Payload.OriginalText})
	}
	return out, nil
}

// BuildIndex creates a keyword payload index on text_id.
func (s *Storage) BuildIndex(ctx context.Context) error {
	return s.createIndex(ctx, "text_id", "keyword")
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type hit struct {
	result domain.SearchResult
	seq    int64
}

type payload struct {
	TextID       string `json:"text_id"`
	OriginalText string `json:"original_text"`
	Seq          int64  `json:"seq"`
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request and decodes the response into out when given.
// The HTTP status is returned alongside any error.
func (s *Storage) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
