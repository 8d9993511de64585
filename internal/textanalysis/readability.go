package textanalysis

import (
	"fmt"
	"regexp"

	"github.com/jdkato/prose/summarize"

	"ragqa/internal/domain"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]`)

// FleschReadingEase scores how easy text is to read; higher is easier.
// Typical prose lands between 0 and 100, very simple text above 100.
// Text without a single word is an ErrEmptyInput.
func FleschReadingEase(text string) (float64, error) {
	if !wordRe.MatchString(text) {
		return 0, fmt.Errorf("readability: %w", domain.ErrEmptyInput)
	}
	doc := summarize.NewDocument(text)
	if doc.NumWords == 0 || doc.NumSentences == 0 {
		return 0, fmt.Errorf("readability: %w", domain.ErrEmptyInput)
	}
	return doc.FleschReadingEase(), nil
}
