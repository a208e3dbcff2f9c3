// Command fintel serves the multi-agent stock analysis API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fintel-ai/fintel/core/llm"
	"github.com/fintel-ai/fintel/internal/config"
	"github.com/fintel-ai/fintel/internal/httpapi"
	"github.com/fintel-ai/fintel/providers/ai/deepseek"
	"github.com/fintel-ai/fintel/providers/marketdata"
	"github.com/fintel-ai/fintel/providers/observability"
	"github.com/fintel-ai/fintel/providers/observability/slogobs"
	"github.com/fintel-ai/fintel/providers/retrieval"
	"github.com/fintel-ai/fintel/providers/valuation"
	"github.com/fintel-ai/fintel/workflow"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	sequential := flag.Bool("sequential", false, "run analysts sequentially instead of in parallel")
	flag.Parse()

	if err := run(*configFile, *sequential); err != nil {
		fmt.Fprintln(os.Stderr, "fintel:", err)
		os.Exit(1)
	}
}

func run(configFile string, sequential bool) error {
	// .env is optional; the environment itself is authoritative.
	_ = godotenv.Load()

	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logger := newLogger(settings.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := deepseek.New().
		WithModel(settings.DeepSeekModel).
		WithBaseURL(settings.DeepSeekAPIBase).
		WithAPIKey(settings.DeepSeekAPIKey)

	client := llm.NewClient(provider,
		llm.WithModel(settings.DeepSeekModel),
		llm.WithTemperature(settings.Temperature),
		llm.WithMaxTokens(settings.MaxTokens),
		llm.WithTimeout(settings.RequestTimeout),
		llm.WithMaxRetries(settings.MaxRetries),
	)

	store, closeStore, err := openStore(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	fetcher := marketdata.NewYahooFetcher()

	pipelineOpts := []workflow.Option{
		workflow.WithMaxIterations(settings.MaxIterations),
		workflow.WithTopK(settings.TopK),
	}
	if sequential {
		pipelineOpts = append(pipelineOpts, workflow.WithSequentialAnalysts())
	}

	pipeline, err := workflow.New(workflow.Dependencies{
		Generator:  client,
		Retriever:  store,
		Fetcher:    fetcher,
		Calculator: valuation.NewModelCalculator(fetcher),
		Logger:     logger,
	}, pipelineOpts...)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(pipeline, store, logger)
	if settings.ReportDirectory != "" {
		server = server.WithReportIngestion(store, settings.ReportDirectory)
	}
	if err := server.ListenAndServe(ctx, settings.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reportStore is both halves of the store contract: queried by the pipeline,
// re-populated by ingestion.
type reportStore interface {
	retrieval.Retriever
	retrieval.Ingestor
}

// openStore opens the report index and seeds it from the report directory
// when it is empty.
func openStore(ctx context.Context, settings *config.Settings, logger observability.Logger) (reportStore, func(), error) {
	noop := func() {}

	if settings.VectorStorePath != "" {
		store, err := retrieval.OpenSQLiteStore(settings.VectorStorePath)
		if err != nil {
			return nil, noop, err
		}

		count, err := store.Count(ctx)
		if err != nil {
			store.Close() //nolint:errcheck
			return nil, noop, err
		}
		if count == 0 {
			seedStore(ctx, store, settings.ReportDirectory, logger)
		}
		return store, func() { _ = store.Close() }, nil
	}

	store := retrieval.NewMemoryStore()
	seedStore(ctx, store, settings.ReportDirectory, logger)
	return store, noop, nil
}

func seedStore(ctx context.Context, store retrieval.Ingestor, directory string, logger observability.Logger) {
	if directory == "" {
		return
	}
	if _, err := os.Stat(directory); err != nil {
		logger.Warn(ctx, "report directory unavailable, serving without report context",
			observability.String("directory", directory),
			observability.Error(err),
		)
		return
	}

	indexed, err := retrieval.IngestDirectory(ctx, store, directory)
	if err != nil {
		logger.Warn(ctx, "report ingestion incomplete",
			observability.String("directory", directory),
			observability.Int("indexed", indexed),
			observability.Error(err),
		)
		return
	}
	logger.Info(ctx, "report store seeded",
		observability.String("directory", directory),
		observability.Int("chunks", indexed),
	)
}

func newLogger(level string) observability.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	return slogobs.New(slog.New(handler))
}
