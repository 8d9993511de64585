package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragqa/internal/domain"
)

func TestValidateRecords(t *testing.T) {
	ok := []domain.Record{{ID: "a", Vector: []float32{1, 2}}}
	assert.NoError(t, ValidateRecords(ok, 2))

	assert.ErrorIs(t, ValidateRecords([]domain.Record{{ID: "a", Vector: []float32{1}}}, 2), domain.ErrDimensionMismatch)
	assert.ErrorIs(t, ValidateRecords([]domain.Record{{Vector: []float32{1, 2}}}, 2), domain.ErrInvalidRecord)
}

func TestTopK_StableOnTies(t *testing.T) {
	in := []domain.SearchResult{
		{ID: "first", Score: 0.5},
		{ID: "best", Score: 0.9},
		{ID: "second", Score: 0.5},
		{ID: "third", Score: 0.5},
	}
	out := TopK(in, 3)
	ids := make([]string, len(out))
	for i, r := range out {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"best", "first", "second"}, ids)
}

func TestTopK_FewerThanK(t *testing.T) {
	out := TopK([]domain.SearchResult{{ID: "only", Score: 0.1}}, 5)
	assert.Len(t, out, 1)
	assert.Empty(t, TopK(nil, 5))
}
