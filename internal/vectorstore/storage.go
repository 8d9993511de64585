package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"ragqa/internal/domain"
)

// Storage persists records and supports similarity search.
// Search returns at most topK results ordered by decreasing cosine similarity;
// equal scores keep insertion order. Searching an empty store is not an error.
type Storage interface {
	Add(ctx context.Context, records []domain.Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Sample(ctx context.Context, n int) ([]domain.Record, error)
	Close() error
}

// IndexBuilder is implemented by stores that can build a search index once
// enough records exist.
type IndexBuilder interface {
	BuildIndex(ctx context.Context) error
}

// ValidateRecords checks ids and vector lengths before a write.
func ValidateRecords(records []domain.Record, dimension int) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has empty text_id", domain.ErrInvalidRecord, i)
		}
		if len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %q has %d values, want %d", domain.ErrDimensionMismatch, r.ID, len(r.Vector), dimension)
		}
	}
	return nil
}

// ValidateQuery checks the length of a query vector.
func ValidateQuery(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// TopK ranks scored candidates best first, keeping insertion order on ties.
func TopK(results []domain.SearchResult, topK int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
