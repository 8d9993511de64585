package quality

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"ragqa/internal/textanalysis"
	"ragqa/internal/vecmath"
)

const (
	MetricClarity      = "clarity"
	MetricRelevance    = "relevance"
	MetricCompleteness = "completeness"
	MetricConsistency  = "consistency"
	MetricConciseness  = "conciseness"
	MetricOverall      = "overall"
)

// MetricNames lists the scored metrics in display order. Overall is derived.
var MetricNames = []string{MetricClarity, MetricRelevance, MetricCompleteness, MetricConsistency, MetricConciseness}

// ErrorKind tells which dependency a metric failed on.
type ErrorKind string

const (
	KindReadability ErrorKind = "readability"
	KindEmbedding   ErrorKind = "embedding"
	KindAnalysis    ErrorKind = "analysis"
)

// MetricResult is either a value in [0,1] or a failure of some kind.
type MetricResult struct {
	Name  string
	Value float64
	Kind  ErrorKind
	Err   error
}

func (r MetricResult) OK() bool { return r.Err == nil }

// Score collapses a failed metric to 0.
func (r MetricResult) Score() float64 {
	if r.Err != nil {
		return 0
	}
	return r.Value
}

func ok(name string, v float64) MetricResult { return MetricResult{Name: name, Value: v} }

func failed(name string, kind ErrorKind, err error) MetricResult {
	return MetricResult{Name: name, Kind: kind, Err: err}
}

// Evaluation holds the five metric results of one scoring run, in MetricNames order.
type Evaluation struct {
	Results []MetricResult
}

// Overall is the arithmetic mean of the collapsed metric scores.
func (e Evaluation) Overall() float64 {
	if len(e.Results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range e.Results {
		sum += r.Score()
	}
	return sum / float64(len(e.Results))
}

// Metrics returns the five metric scores plus overall. Failed metrics are 0.
func (e Evaluation) Metrics() map[string]float64 {
	out := make(map[string]float64, len(e.Results)+1)
	for _, r := range e.Results {
		out[r.Name] = r.Score()
	}
	out[MetricOverall] = e.Overall()
	return out
}

// Errors maps each failed metric to a "<kind>: <message>" description.
func (e Evaluation) Errors() map[string]string {
	out := map[string]string{}
	for _, r := range e.Results {
		if r.Err != nil {
			out[r.Name] = fmt.Sprintf("%s: %v", r.Kind, r.Err)
		}
	}
	return out
}

// Analyzer supplies the linguistic features and semantic similarity the
// metrics are computed from.
type Analyzer interface {
	Analyze(text string) (textanalysis.Analysis, error)
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// ReadabilityFunc scores text on a readability scale where higher is easier.
type ReadabilityFunc func(text string) (float64, error)

// Config holds the scoring constants.
type Config struct {
	ClarityDivisor       float64
	ConcisenessNumerator float64
	ConcisenessScale     float64
}

// DefaultConfig returns the standard constants.
func DefaultConfig() Config {
	return Config{ClarityDivisor: 100, ConcisenessNumerator: 2, ConcisenessScale: 100}
}

// Scorer rates a response against an expected pattern.
type Scorer struct {
	analyzer    Analyzer
	readability ReadabilityFunc
	cfg         Config
	logger      *zap.Logger
}

// NewScorer builds a scorer. A nil readability uses the Flesch reading ease.
func NewScorer(analyzer Analyzer, readability ReadabilityFunc, cfg Config, logger *zap.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.ClarityDivisor <= 0 {
		cfg.ClarityDivisor = def.ClarityDivisor
	}
	if cfg.ConcisenessNumerator <= 0 {
		cfg.ConcisenessNumerator = def.ConcisenessNumerator
	}
	if cfg.ConcisenessScale <= 0 {
		cfg.ConcisenessScale = def.ConcisenessScale
	}
	if readability == nil {
		readability = textanalysis.FleschReadingEase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{analyzer: analyzer, readability: readability, cfg: cfg, logger: logger}
}

// Evaluate scores actual against expected. It never fails as a whole:
// each metric failure is logged and recorded in its result.
func (s *Scorer) Evaluate(ctx context.Context, expected, actual string) Evaluation {
	results := []MetricResult{
		s.Clarity(actual),
		s.Relevance(ctx, expected, actual),
		s.Completeness(expected, actual),
		s.Consistency(ctx, actual),
		s.Conciseness(actual),
	}
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("metric failed", zap.String("metric", r.Name), zap.String("kind", string(r.Kind)), zap.Error(r.Err))
		}
	}
	return Evaluation{Results: results}
}

// Clarity is readability / divisor, clamped to [0,1].
func (s *Scorer) Clarity(actual string) MetricResult {
	score, err := s.readability(actual)
	if err != nil {
		return failed(MetricClarity, KindReadability, err)
	}
	return ok(MetricClarity, vecmath.Clamp01(score/s.cfg.ClarityDivisor))
}

// Relevance is the semantic similarity of expected and actual, clamped to [0,1].
func (s *Scorer) Relevance(ctx context.Context, expected, actual string) MetricResult {
	sim, err := s.analyzer.Similarity(ctx, expected, actual)
	if err != nil {
		return failed(MetricRelevance, KindEmbedding, err)
	}
	return ok(MetricRelevance, vecmath.Clamp01(sim))
}

// Completeness is the share of expected key phrases found in actual.
// With no expected keys it is 1.
func (s *Scorer) Completeness(expected, actual string) MetricResult {
	exp, err := s.analyzer.Analyze(expected)
	if err != nil {
		return failed(MetricCompleteness, KindAnalysis, err)
	}
	act, err := s.analyzer.Analyze(actual)
	if err != nil {
		return failed(MetricCompleteness, KindAnalysis, err)
	}
	expKeys := exp.Keys()
	if len(expKeys) == 0 {
		return ok(MetricCompleteness, 1)
	}
	actKeys := act.Keys()
	hit := 0
	for k := range expKeys {
		if _, found := actKeys[k]; found {
			hit++
		}
	}
	return ok(MetricCompleteness, float64(hit)/float64(len(expKeys)))
}

// Consistency is the mean similarity of adjacent sentences; 1 for a single sentence.
func (s *Scorer) Consistency(ctx context.Context, actual string) MetricResult {
	a, err := s.analyzer.Analyze(actual)
	if err != nil {
		return failed(MetricConsistency, KindAnalysis, err)
	}
	if len(a.Sentences) <= 1 {
		return ok(MetricConsistency, 1)
	}
	sum := 0.0
	for i := 0; i+1 < len(a.Sentences); i++ {
		sim, err := s.analyzer.Similarity(ctx, a.Sentences[i], a.Sentences[i+1])
		if err != nil {
			return failed(MetricConsistency, KindEmbedding, err)
		}
		sum += sim
	}
	return ok(MetricConsistency, vecmath.Clamp01(sum/float64(len(a.Sentences)-1)))
}

// Conciseness decays with word count: min(1, n / (1 + e^(words/scale))).
func (s *Scorer) Conciseness(actual string) MetricResult {
	words := float64(len(strings.Fields(actual)))
	return ok(MetricConciseness, math.Min(1, s.cfg.ConcisenessNumerator/(1+math.Exp(words/s.cfg.ConcisenessScale))))
}
