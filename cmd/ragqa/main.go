package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ragqa/internal/app"
	"ragqa/internal/client"
	"ragqa/internal/config"
	"ragqa/internal/logging"
	"ragqa/internal/quality"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, serverURL, logPath, historyPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragqa/config.yaml if not provided)")
	flag.StringVar(&serverURL, "server", "", "rag service base URL (overrides client.base_url)")
	flag.StringVar(&logPath, "log", "ragqa.log", "Log file; the terminal belongs to the UI")
	flag.StringVar(&historyPath, "history", "", "Write the session's quality reports to this JSON file on exit")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if serverURL != "" {
		cfg.Client.BaseURL = serverURL
	}

	logCfg := cfg.Logging
	logCfg.OutputPaths = []string{logPath}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	timeout := config.Timeout(cfg.Client.TimeoutSecs)
	svc := client.New(cfg.Client.BaseURL, timeout, cfg.Embedder.Dimension)
	tester := quality.NewTester(app.NewScorer(svc, cfg.Quality, logger), nil, logger.Named("tester"))

	m := tui.New(svc, tester, "", timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		log.Fatal(err)
	}

	if historyPath != "" {
		data, err := json.MarshalIndent(tester.History(), "", "  ")
		if err != nil {
			log.Fatalf("encode history: %v", err)
		}
		if err := os.WriteFile(historyPath, data, 0o644); err != nil {
			log.Fatalf("write history: %v", err)
		}
	}
}
