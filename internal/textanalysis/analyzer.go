package textanalysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"

	"ragqa/internal/embedding"
	"ragqa/internal/vecmath"
)

// Analysis holds the linguistic features of a text.
type Analysis struct {
	Sentences   []string
	NounPhrases []string
	Entities    []string
}

// Keys returns the lower-cased set of noun phrases and entities.
func (a Analysis) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(a.NounPhrases)+len(a.Entities))
	for _, s := range a.NounPhrases {
		keys[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range a.Entities {
		keys[strings.ToLower(s)] = struct{}{}
	}
	return keys
}

// Analyzer extracts sentences, noun phrases and named entities with prose
// and measures semantic similarity through an embedder.
type Analyzer struct {
	embedder embedding.Embedder
}

func NewAnalyzer(embedder embedding.Embedder) *Analyzer {
	return &Analyzer{embedder: embedder}
}

func (a *Analyzer) Analyze(text string) (Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return Analysis{}, nil
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze: %w", err)
	}
	var out Analysis
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out.Sentences = append(out.Sentences, t)
		}
	}
	out.NounPhrases = nounPhrases(doc.Tokens())
	for _, e := range doc.Entities() {
		out.Entities = append(out.Entities, e.Text)
	}
	return out, nil
}

// Similarity is the cosine similarity of the embeddings of a and b.
func (a *Analyzer) Similarity(ctx context.Context, x, y string) (float64, error) {
	vx, err := a.embedder.Embed(ctx, x)
	if err != nil {
		return 0, err
	}
	vy, err := a.embedder.Embed(ctx, y)
	if err != nil {
		return 0, err
	}
	return vecmath.Cosine(vx, vy), nil
}

// nounPhrases groups tagged tokens into base noun phrases:
// an optional determiner, any modifiers, then one or more nouns.
func nounPhrases(tokens []prose.Token) []string {
	var out []string
	var cur []string
	last := -1 // index in cur of the last noun
	flush := func() {
		if last >= 0 {
			out = append(out, strings.Join(cur[:last+1], " "))
		}
		cur = cur[:0]
		last = -1
	}
	for _, t := range tokens {
		switch {
		case isDeterminer(t.Tag):
			flush()
			cur = append(cur, t.Text)
		case isModifier(t.Tag):
			if last >= 0 {
				flush()
			}
			cur = append(cur, t.Text)
		case isNoun(t.Tag):
			cur = append(cur, t.Text)
			last = len(cur) - 1
		default:
			flush()
		}
	}
	flush()
	return out
}

func isNoun(tag string) bool { return strings.HasPrefix(tag, "NN") }

func isDeterminer(tag string) bool {
	return tag == "DT" || tag == "PRP$" || tag == "WP$" || tag == "PDT"
}

func isModifier(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS", "CD", "VBN", "VBG":
		return true
	}
	return false
}
