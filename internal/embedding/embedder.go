package embedding

import "context"

// DefaultDimension is the embedding size used across the index.
const DefaultDimension = 384

// Embedder converts free text into a fixed-length vector.
// Embed is deterministic for a fixed model and fails on empty input.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
