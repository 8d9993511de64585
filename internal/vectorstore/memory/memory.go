package memory

import (
	"context"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
	"ragqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.Record
}

func NewStorage(dimension int) *Storage { return &Storage{dimension: dimension} }

func (s *Storage) Add(_ context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.SearchResult, len(s.records))
	for i, r := range s.records {
		results[i] = domain.SearchResult{ID: r.ID, Text: r.Text, Score: vecmath.Cosine(r.Vector, vector)}
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Sample returns up to n records in insertion order.
func (s *Storage) Sample(_ context.Context, n int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = min(max(n, 0), len(s.records))
	out := make([]domain.Record, n)
	copy(out, s.records[:n])
	return out, nil
}

func (s *Storage) Close() error { return nil }
