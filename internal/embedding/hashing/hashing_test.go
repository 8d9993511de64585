package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
)

func TestEmbedder_Dimension(t *testing.T) {
	e := NewEmbedder(384)
	vec, err := e.Embed(context.Background(), "Employees receive 20 days of paid leave annually.")
	require.NoError(t, err)
	assert.Len(t, vec, 384)
	assert.Equal(t, 384, e.Dimension())
	assert.Equal(t, "hashing-384", e.Name())
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := NewEmbedder(384)
	a, err := e.Embed(context.Background(), "Paid leave policy")
	require.NoError(t, err)
	b, err := NewEmbedder(384).Embed(context.Background(), "Paid leave policy")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedder_UnitNorm(t *testing.T) {
	vec, err := NewEmbedder(384).Embed(context.Background(), "health insurance and dental coverage")
	require.NoError(t, err)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	_, err := NewEmbedder(384).Embed(context.Background(), "  \n")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestEmbedder_StopwordsOnlyIsZeroVector(t *testing.T) {
	vec, err := NewEmbedder(16).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), vec)
}

func TestEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(384)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "how many days of paid leave")
	related, _ := e.Embed(ctx, "Employees receive 20 days of paid leave annually.")
	unrelated, _ := e.Embed(ctx, "The cafeteria serves soup on Fridays.")

	assert.Greater(t, vecmath.Cosine(query, related), vecmath.Cosine(query, unrelated))
}

func TestNewEmbedder_DefaultDimension(t *testing.T) {
	assert.Equal(t, 384, NewEmbedder(0).Dimension())
}
