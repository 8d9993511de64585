package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/client"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/httpapi"
	"ragqa/internal/logging"
	"ragqa/internal/quality"
)

// service is the subset of the rag service client used by the commands.
type service interface {
	StoreText(ctx context.Context, textID, text string) (httpapi.StoreResponse, error)
	RetrieveSimilar(ctx context.Context, query string, topK int) ([]domain.DocumentUsed, error)
	EnhancedRetrieve(ctx context.Context, query, apiKey string) (domain.EnhancedResult, error)
	Evaluate(ctx context.Context, expected, actual string) (httpapi.EvaluateResponse, error)
	EmbedAllDocuments(ctx context.Context) (domain.IngestReport, error)
	ClearEmbeddings(ctx context.Context) error
	CheckEmbeddings(ctx context.Context) (int, error)
	SampleEmbeddings(ctx context.Context) ([]domain.Record, error)
}

// promptTester generates a response for a prompt and scores it.
type promptTester interface {
	TestPrompt(ctx context.Context, prompt, expected string) (domain.QualityReport, error)
}

// testerFactory builds a tester whose generator uses apiKey.
type testerFactory func(apiKey string) (promptTester, error)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

const usage = `Usage: ragctl [--config=config.yaml] [--server=URL] <command> [args]

Commands:
  count                          number of stored embeddings
  clear                          delete all embeddings
  embed-all                      embed the service's document directory
  sample                         show up to five stored records
  store <id> <text>              embed and store one text
  retrieve [-k N] <query>        list similar documents
  enhance [-api-key KEY] <query> retrieve context and generate an answer
  evaluate -expected E <actual>  score a response against an expected pattern
  test [-expected E] [-api-key KEY] [-enhance] <prompt>
                                 generate a response locally and score it
`

func main() {
	_ = godotenv.Load()

	var cfgPath, serverURL string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file")
	flag.StringVar(&serverURL, "server", "", "rag service base URL (overrides client.base_url)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		red.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if serverURL != "" {
		cfg.Client.BaseURL = serverURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := cfg.Logging
	logCfg.Level, logCfg.Format = "warn", "console"
	logger, err := logging.New(logCfg)
	if err != nil {
		red.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	svc := client.New(cfg.Client.BaseURL, config.Timeout(cfg.Client.TimeoutSecs), cfg.Embedder.Dimension)
	testers := func(apiKey string) (promptTester, error) {
		factory, err := app.NewGenerators(cfg.Generator)
		if err != nil {
			return nil, err
		}
		gen, err := factory.New(apiKey)
		if err != nil {
			return nil, err
		}
		return quality.NewTester(app.NewScorer(svc, cfg.Quality, logger), gen, logger), nil
	}
	if err := run(ctx, svc, testers, flag.Args(), os.Stdout); err != nil {
		red.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage, run ragctl -h")

func run(ctx context.Context, svc service, testers testerFactory, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "count":
		n, err := svc.CheckEmbeddings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d\n", bold.Sprint("number_of_embeddings:"), n)
	case "clear":
		if err := svc.ClearEmbeddings(ctx); err != nil {
			return err
		}
		green.Fprintln(out, "embeddings cleared")
	case "embed-all":
		r, err := svc.EmbedAllDocuments(ctx)
		if err != nil {
			return err
		}
		green.Fprintf(out, "embedded %d of %d files\n", r.Stored, r.Files)
		fmt.Fprintf(out, "skipped %d, failed %d, total embeddings %d\n", r.Skipped, r.Failed, r.Count)
		if r.Summary != "" {
			fmt.Fprintf(out, "%s %s\n", bold.Sprint("summary:"), r.Summary)
		}
	case "sample":
		records, err := svc.SampleEmbeddings(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			yellow.Fprintln(out, "no embeddings stored")
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s (%d dims) %s\n", cyan.Sprint(r.ID), len(r.Vector), preview(r.Text, 80))
		}
	case "store":
		if len(rest) < 2 {
			return errUsage
		}
		resp, err := svc.StoreText(ctx, rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		green.Fprintf(out, "stored %s\n", resp.TextID)
	case "retrieve":
		fs := flag.NewFlagSet("retrieve", flag.ContinueOnError)
		fs.SetOutput(out)
		k := fs.Int("k", 5, "number of results")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		query := strings.Join(fs.Args(), " ")
		if query == "" {
			return errUsage
		}
		docs, err := svc.RetrieveSimilar(ctx, query, *k)
		if err != nil {
			return err
		}
		printDocs(out, docs)
	case "enhance":
		fs := flag.NewFlagSet("enhance", flag.ContinueOnError)
		fs.SetOutput(out)
		apiKey := fs.String("api-key", "", "language model API key (server default when empty)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		query := strings.Join(fs.Args(), " ")
		if query == "" {
			return errUsage
		}
		res, err := svc.EnhancedRetrieve(ctx, query, *apiKey)
		if err != nil {
			return err
		}
		bold.Fprintln(out, "Enhanced prompt:")
		fmt.Fprintln(out, res.EnhancedPrompt)
		bold.Fprintln(out, "\nResponse:")
		fmt.Fprintln(out, res.LLMResponse)
		bold.Fprintln(out, "\nDocuments used:")
		printDocs(out, res.DocumentsUsed)
	case "evaluate":
		fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
		fs.SetOutput(out)
		expected := fs.String("expected", "", "expected output pattern")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		actual := strings.Join(fs.Args(), " ")
		if actual == "" {
			return errUsage
		}
		resp, err := svc.Evaluate(ctx, *expected, actual)
		if err != nil {
			return err
		}
		printMetrics(out, resp.Metrics)
		names := make([]string, 0, len(resp.Errors))
		for name := range resp.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			yellow.Fprintf(out, "%s: %s\n", name, resp.Errors[name])
		}
	case "test":
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.SetOutput(out)
		expected := fs.String("expected", "", "expected output pattern")
		apiKey := fs.String("api-key", "", "language model API key (configured env when empty)")
		enhance := fs.Bool("enhance", false, "add retrieved context through the service first")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		prompt := strings.Join(fs.Args(), " ")
		if prompt == "" {
			return errUsage
		}
		if *enhance {
			res, err := svc.EnhancedRetrieve(ctx, prompt, *apiKey)
			if err != nil {
				return err
			}
			prompt = res.EnhancedPrompt
		}
		tester, err := testers(*apiKey)
		if err != nil {
			return err
		}
		report, err := tester.TestPrompt(ctx, prompt, *expected)
		if err != nil {
			return err
		}
		bold.Fprintln(out, "Response:")
		fmt.Fprintln(out, report.Response)
		fmt.Fprintln(out)
		printMetrics(out, report.Metrics)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printMetrics(out io.Writer, metrics map[string]float64) {
	names := append(append([]string{}, quality.MetricNames...), quality.MetricOverall)
	for _, name := range names {
		fmt.Fprintf(out, "%-13s %s\n", name, scoreColor(metrics[name]).Sprintf("%.3f", metrics[name]))
	}
}

func printDocs(out io.Writer, docs []domain.DocumentUsed) {
	if len(docs) == 0 {
		yellow.Fprintln(out, "no documents found")
		return
	}
	for i, d := range docs {
		fmt.Fprintf(out, "%d. %s score=%.3f\n   %s\n", i+1, cyan.Sprint(d.TextID), d.Score, preview(d.Snippet, 120))
	}
}

func scoreColor(v float64) *color.Color {
	switch {
	case v >= 0.7:
		return green
	case v >= 0.4:
		return yellow
	default:
		return red
	}
}

func preview(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
