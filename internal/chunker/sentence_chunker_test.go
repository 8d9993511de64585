package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "   ", want: nil},
		{name: "single", text: "Hello there.", want: []string{"Hello there."}},
		{name: "multiple", text: "One. Two! Three?", want: []string{"One.", "Two!", "Three?"}},
		{name: "trailing fragment", text: "First. no terminator", want: []string{"First.", "no terminator"}},
		{name: "ellipsis kept together", text: "Wait... then go.", want: []string{"Wait...", "then go."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.text))
		})
	}
}

func TestSentenceChunker_Chunk(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	doc := domain.Document{ID: "handbook", Content: "A one. B two. C three. D four."}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "handbook:0", chunks[0].ChunkID)
	assert.Equal(t, "A one. B two.", chunks[0].Text)
	assert.Equal(t, "B two. C three.", chunks[1].Text)
	assert.Equal(t, "C three. D four.", chunks[2].Text)
	assert.Equal(t, 2, chunks[2].Index)
	assert.Equal(t, "handbook", chunks[2].DocumentID)
}

func TestSentenceChunker_EmptyDocument(t *testing.T) {
	chunks, err := NewSentenceChunker(5, 1).Chunk(domain.Document{ID: "x", Content: "\n\t"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewSentenceChunker_ClampsOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 5)
	assert.Equal(t, 1, c.overlapSentences)

	c = NewSentenceChunker(0, -1)
	assert.Equal(t, 5, c.sentencesPerChunk)
	assert.Equal(t, 0, c.overlapSentences)
}
