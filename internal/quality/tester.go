package quality

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Tester runs prompts through a generator, scores the responses and keeps a
// session history of reports.
type Tester struct {
	scorer    *Scorer
	generator domain.Generator
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	history []domain.QualityReport
}

// NewTester builds a tester. generator may be nil when only Record is used.
func NewTester(scorer *Scorer, generator domain.Generator, logger *zap.Logger) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{scorer: scorer, generator: generator, logger: logger, now: time.Now}
}

// TestPrompt generates a response for prompt, scores it against expected and
// appends the report to history. Generation failures return an error and
// record nothing.
func (t *Tester) TestPrompt(ctx context.Context, prompt, expected string) (domain.QualityReport, error) {
	if t.generator == nil {
		return domain.QualityReport{}, fmt.Errorf("%w: no generator configured", domain.ErrGeneration)
	}
	response, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		t.logger.Error("prompt test failed", zap.Error(err))
		if !errors.Is(err, domain.ErrGeneration) {
			err = fmt.Errorf("%w: %v", domain.ErrGeneration, err)
		}
		return domain.QualityReport{}, fmt.Errorf("error testing prompt: %w", err)
	}
	return t.Record(ctx, prompt, expected, response), nil
}

// Record scores an already generated response and appends the report.
func (t *Tester) Record(ctx context.Context, prompt, expected, response string) domain.QualityReport {
	eval := t.scorer.Evaluate(ctx, expected, response)
	metrics := eval.Metrics()
	report := domain.QualityReport{
		ID:        uuid.NewString(),
		Timestamp: t.now(),
		Prompt:    prompt,
		Expected:  expected,
		Response:  response,
		Metrics:   metrics,
		Overall:   metrics[MetricOverall],
	}

	t.mu.Lock()
	t.history = append(t.history, report)
	t.mu.Unlock()

	t.logger.Info("prompt scored", zap.String("report_id", report.ID), zap.Float64("overall", report.Overall))
	return report
}

// History returns a copy of the session history, oldest first.
func (t *Tester) History() []domain.QualityReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.QualityReport, len(t.history))
	copy(out, t.history)
	return out
}

// Last returns the most recent report.
func (t *Tester) Last() (domain.QualityReport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return domain.QualityReport{}, false
	}
	return t.history[len(t.history)-1], true
}

// RadarPoint is one axis of the metrics chart.
type RadarPoint struct {
	Name  string
	Value float64
}

// RadarSeries returns the five metrics in display order, without overall.
func RadarSeries(metrics map[string]float64) []RadarPoint {
	out := make([]RadarPoint, 0, len(MetricNames))
	for _, name := range MetricNames {
		out = append(out, RadarPoint{Name: name, Value: metrics[name]})
	}
	return out
}
