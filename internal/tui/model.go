package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/quality"
)

// RAGPort is the TUI-facing subset of the rag service.
type RAGPort interface {
	EnhancedRetrieve(ctx context.Context, query, apiKey string) (domain.EnhancedResult, error)
	EmbedAllDocuments(ctx context.Context) (domain.IngestReport, error)
	ClearEmbeddings(ctx context.Context) error
	CheckEmbeddings(ctx context.Context) (int, error)
}

// Recorder scores a generated response and keeps it in history.
type Recorder interface {
	Record(ctx context.Context, prompt, expected, response string) domain.QualityReport
	History() []domain.QualityReport
}

// Task is a preset expected-output pattern.
type Task struct {
	Name    string
	Pattern string
}

// Tasks are the preset patterns offered by the task selector.
var Tasks = []Task{
	{"Create a Tutorial", "Step-by-step instructions with prerequisites and expected outcomes"},
	{"Explain Employee Benefits", "Provide a clear summary of employee benefits, including types of benefits, eligibility, and any prerequisites."},
	{"Summarize Employee Handbook Section", "Summarize the key points in a section of the employee handbook, including rules, expectations, and guidelines for employees."},
	{"Answer a Frequently Asked Question (FAQ)", "Provide a concise answer to a common employee question, ensuring clarity and accuracy of information."},
	{"Summarize Internal Memo", "Summarize the main points of an internal memo, highlighting important updates or instructions for employees."},
	{"Describe a Job Role", "Outline the key responsibilities, qualifications, and performance expectations for the job role described."},
}

type focus int

const (
	focusPrompt focus = iota
	focusExpected
	focusAPIKey
	focusCount
)

type testDoneMsg struct {
	query  string
	result domain.EnhancedResult
	report domain.QualityReport
	err    error
}

type embedDoneMsg struct {
	report domain.IngestReport
	err    error
}

type clearDoneMsg struct{ err error }

type countMsg struct {
	count int
	err   error
}

// Model is the Bubble Tea model for the prompt quality tester.
type Model struct {
	service  RAGPort
	recorder Recorder
	timeout  time.Duration

	prompt   textarea.Model
	expected textinput.Model
	apiKey   textinput.Model
	viewport viewport.Model
	focus    focus
	task     int

	query  string
	result *domain.EnhancedResult
	report *domain.QualityReport
	count  int
	status string
	busy   bool
	ready  bool
}

// New creates a new TUI model instance. apiKey pre-fills the key field.
func New(service RAGPort, recorder Recorder, apiKey string, timeout time.Duration) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter your prompt here..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(4)
	ta.Focus()

	ex := textinput.New()
	ex.Prompt = "expected> "
	ex.CharLimit = 0
	ex.SetValue(Tasks[0].Pattern)

	key := textinput.New()
	key.Prompt = "api key> "
	key.Placeholder = "uses server default when empty"
	key.EchoMode = textinput.EchoPassword
	key.CharLimit = 0
	key.SetValue(apiKey)

	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		service:  service,
		recorder: recorder,
		timeout:  timeout,
		prompt:   ta,
		expected: ex,
		apiKey:   key,
		viewport: viewport.New(0, 0),
		count:    -1,
		status:   "ctrl+r run  tab focus  ctrl+t task  ctrl+e embed all  ctrl+x clear  ctrl+l count",
	}
}

// Init starts the cursor blink and fetches the embedding count.
func (m Model) Init() tea.Cmd { return tea.Batch(textarea.Blink, m.refreshCount()) }

// Update handles key, window and async completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		width := max(20, msg.Width-resultBoxStyle.GetHorizontalFrameSize())
		m.prompt.SetWidth(width)
		m.expected.Width = width - len(m.expected.Prompt)
		m.apiKey.Width = width - len(m.apiKey.Prompt)
		_, rh := resultBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + m.prompt.Height() + 2 + 3*ih + 1 // header, task, inputs, status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case testDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.query = msg.query
		m.result = &msg.result
		m.report = &msg.report
		m.status = fmt.Sprintf("Scored. Overall %.2f", msg.report.Overall)
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil
	case embedDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.count = msg.report.Count
		m.status = fmt.Sprintf("Embedded %d of %d files (%d skipped, %d failed)",
			msg.report.Stored, msg.report.Files, msg.report.Skipped, msg.report.Failed)
		return m, nil
	case clearDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.count = 0
		m.status = "Embeddings cleared"
		return m, nil
	case countMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.count = msg.count
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			m.setFocus((m.focus + 1) % focusCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focus + focusCount - 1) % focusCount)
			return m, nil
		case "ctrl+t":
			m.task = (m.task + 1) % len(Tasks)
			m.expected.SetValue(Tasks[m.task].Pattern)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "ctrl+r":
			return m.startTest()
		case "ctrl+e":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Embedding all documents..."
			return m, m.embedAll()
		case "ctrl+x":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Clearing embeddings..."
			return m, m.clear()
		case "ctrl+l":
			return m, m.refreshCount()
		}
	}
	var cmd tea.Cmd
	switch m.focus {
	case focusPrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	case focusExpected:
		m.expected, cmd = m.expected.Update(msg)
	case focusAPIKey:
		m.apiKey, cmd = m.apiKey.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.prompt.Blur()
	m.expected.Blur()
	m.apiKey.Blur()
	switch f {
	case focusPrompt:
		m.prompt.Focus()
	case focusExpected:
		m.expected.Focus()
	case focusAPIKey:
		m.apiKey.Focus()
	}
}

func (m Model) startTest() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	prompt := strings.TrimSpace(m.prompt.Value())
	if prompt == "" {
		m.status = "Please enter a prompt"
		return m, nil
	}
	m.busy = true
	m.status = "Retrieving context and generating..."
	return m, m.runTest(prompt, strings.TrimSpace(m.expected.Value()), strings.TrimSpace(m.apiKey.Value()))
}

// runTest enhances the prompt through the service and scores the llm response.
func (m Model) runTest(prompt, expected, apiKey string) tea.Cmd {
	service, recorder, timeout := m.service, m.recorder, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := service.EnhancedRetrieve(ctx, prompt, apiKey)
		if err != nil {
			return testDoneMsg{query: prompt, err: err}
		}
		report := recorder.Record(ctx, res.EnhancedPrompt, expected, res.LLMResponse)
		return testDoneMsg{query: prompt, result: res, report: report}
	}
}

func (m Model) embedAll() tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		report, err := service.EmbedAllDocuments(ctx)
		return embedDoneMsg{report: report, err: err}
	}
}

func (m Model) clear() tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return clearDoneMsg{err: service.ClearEmbeddings(ctx)}
	}
}

func (m Model) refreshCount() tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := service.CheckEmbeddings(ctx)
		return countMsg{count: n, err: err}
	}
}

// View renders the TUI layout and the latest result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	count := "?"
	if m.count >= 0 {
		count = fmt.Sprint(m.count)
	}
	header := lipgloss.NewStyle().Bold(true).Render("Prompt Quality Tester") +
		mutedStyle.Render(fmt.Sprintf("  embeddings: %s  tests: %d", count, len(m.recorder.History())))
	task := mutedStyle.Render(fmt.Sprintf("Task %d/%d: %s", m.task+1, len(Tasks), Tasks[m.task].Name))
	inputs := lipgloss.JoinVertical(lipgloss.Left,
		inputBoxStyle.Render(m.prompt.View()),
		inputBoxStyle.Render(m.expected.View()),
		inputBoxStyle.Render(m.apiKey.View()),
	)
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + task + "\n" + inputs + "\n" + results + "\n" + status
}

func (m Model) renderResult() string {
	if m.result == nil || m.report == nil {
		return "No results yet."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Enhanced Prompt") + "\n")
	b.WriteString(m.result.EnhancedPrompt + "\n\n")
	b.WriteString(titleStyle.Render("Response") + "\n")
	b.WriteString(m.result.LLMResponse + "\n\n")

	b.WriteString(titleStyle.Render("Quality Metrics") + "\n")
	for _, p := range quality.RadarSeries(m.report.Metrics) {
		b.WriteString(fmt.Sprintf("%-13s %s %.2f\n", p.Name, bar(p.Value, barWidth), p.Value))
	}
	b.WriteString(fmt.Sprintf("%-13s %s %.2f\n\n", quality.MetricOverall, bar(m.report.Overall, barWidth), m.report.Overall))

	b.WriteString(titleStyle.Render(fmt.Sprintf("Documents Used (%d)", len(m.result.DocumentsUsed))) + "\n")
	for i, d := range m.result.DocumentsUsed {
		b.WriteString(fmt.Sprintf("%d. %s  score=%.3f\n", i+1, d.TextID, d.Score))
		b.WriteString(highlightBestSentence(d.Snippet, m.query) + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

const barWidth = 20

// bar draws v in [0,1] as a horizontal gauge.
func bar(v float64, width int) string {
	filled := int(v*float64(width) + 0.5)
	filled = min(width, max(0, filled))
	return barStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
