package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencySummarizer_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Vector search finds similar vectors. The weather was nice. " +
		"Vector indexes speed up vector search. Lunch was late."

	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Vector search finds similar vectors. Vector indexes speed up vector search.", got)
}

func TestFrequencySummarizer_ShortText(t *testing.T) {
	s := NewFrequencySummarizer()

	got, err := s.Summarize("Only one sentence here.", 3)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", got)

	got, err = s.Summarize("  ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFrequencySummarizer_DefaultLimit(t *testing.T) {
	text := "A one. B two. C three. D four. E five. F six. G seven."
	got, err := NewFrequencySummarizer().Summarize(text, 0)
	require.NoError(t, err)
	// "a" is a stopword, so the first sentence ranks last.
	assert.Equal(t, "B two. C three. D four. E five. F six.", got)
}
