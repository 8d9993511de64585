package quality

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type stubGenerator struct {
	answer string
	err    error
}

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.answer, g.err }

func newTester(gen domain.Generator) *Tester {
	s := NewScorer(&fakeAnalyzer{similarity: 0.8}, fixedReadability(70), DefaultConfig(), nil)
	t := NewTester(s, gen, nil)
	t.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return t
}

func TestTester_TestPrompt(t *testing.T) {
	tester := newTester(stubGenerator{answer: "Employees get 20 days."})

	report, err := tester.TestPrompt(context.Background(), "How much leave?", "Number of leave days")
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "How much leave?", report.Prompt)
	assert.Equal(t, "Number of leave days", report.Expected)
	assert.Equal(t, "Employees get 20 days.", report.Response)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), report.Timestamp)
	assert.Len(t, report.Metrics, 6)
	assert.Equal(t, report.Metrics[MetricOverall], report.Overall)

	last, ok := tester.Last()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)
}

func TestTester_TestPrompt_GenerationFailure(t *testing.T) {
	tester := newTester(stubGenerator{err: errors.New("rate limited")})

	_, err := tester.TestPrompt(context.Background(), "p", "e")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Contains(t, err.Error(), "error testing prompt")
	assert.Empty(t, tester.History())

	_, ok := tester.Last()
	assert.False(t, ok)
}

func TestTester_NoGenerator(t *testing.T) {
	_, err := newTester(nil).TestPrompt(context.Background(), "p", "e")
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestTester_HistoryIsACopy(t *testing.T) {
	tester := newTester(nil)
	tester.Record(context.Background(), "p1", "e", "r1")
	tester.Record(context.Background(), "p2", "e", "r2")

	h := tester.History()
	require.Len(t, h, 2)
	assert.Equal(t, "p1", h[0].Prompt)
	h[0].Prompt = "changed"
	assert.Equal(t, "p1", tester.History()[0].Prompt)
}

func TestTester_ConcurrentRecord(t *testing.T) {
	tester := newTester(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tester.Record(context.Background(), "p", "e", "r")
		}()
	}
	wg.Wait()
	assert.Len(t, tester.History(), 20)
}

func TestRadarSeries(t *testing.T) {
	series := RadarSeries(map[string]float64{
		MetricClarity: 0.1, MetricRelevance: 0.2, MetricCompleteness: 0.3,
		MetricConsistency: 0.4, MetricConciseness: 0.5, MetricOverall: 0.3,
	})
	require.Len(t, series, 5)
	assert.Equal(t, RadarPoint{Name: MetricClarity, Value: 0.1}, series[0])
	assert.Equal(t, RadarPoint{Name: MetricConciseness, Value: 0.5}, series[4])
}
