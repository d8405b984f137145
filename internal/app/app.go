package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"NewsScanner/internal/config"
	"NewsScanner/internal/infrastructure/llm"
	"NewsScanner/internal/infrastructure/parser"
	"NewsScanner/internal/infrastructure/scheduler"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/logging"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/scanner"
	"NewsScanner/internal/transport/httpapi"
	"NewsScanner/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration to adapters, the pipeline and lifecycle
// orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	pipeline *usecase.Pipeline
	sched    ports.Scheduler
	server   *httpapi.Server
}

// New builds a runnable application instance. The database must be reachable.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := storage.NewPostgresStore(db)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewCafefScanner(nil, baseLogger.With("component", "scanner.cafef")))

	// Without a credential the ingestion half still runs; enrichment
	// reports the missing key instead of calling out with a blank token.
	var summaries ports.SummaryClient
	if cfg.ChatGPT.APIKey != "" {
		summaries = llm.NewChatGPTClient(cfg.ChatGPT)
	} else {
		baseLogger.Warn("no API key configured, enrichment is disabled")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Registry:  registry,
		Sources:   cfg.Scrape.Sources,
		Store:     store,
		Summaries: summaries,
		ScrapeRetry: usecase.RetryPolicy{
			MaxAttempts: cfg.Scrape.MaxRetries,
			BaseDelay:   cfg.Scrape.RetryBaseDelay(),
		},
		EnrichRetry: usecase.RetryPolicy{
			MaxAttempts: cfg.Enrichment.MaxRetries,
			BaseDelay:   cfg.Enrichment.RetryBaseDelay(),
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	sched := scheduler.NewCronScheduler(cfg.Scheduler.Interval(), cfg.Scheduler.StartupDelay())
	server := httpapi.NewServer(cfg.HTTP.Addr, pipeline, store,
		baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		pipeline: pipeline,
		sched:    sched,
		server:   server,
	}, nil
}

// Run starts the scheduler and the HTTP listener and blocks until the
// context is canceled, then shuts both down gracefully.
func (a *Application) Run(ctx context.Context) error {
	err := a.sched.Start(ctx, func(at time.Time) {
		a.logger.Info("scheduled cycle starting", "at", at)
		if err := a.pipeline.RunCycle(ctx); err != nil {
			a.logger.Error("cycle failed", "error", err)
		}
	})
	if err != nil {
		a.shutdown(context.Background())
		return fmt.Errorf("start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	select {
	case err := <-serverErr:
		a.shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	a.shutdown(context.Background())
	return nil
}

func (a *Application) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	a.sched.Stop(ctx)
	if err := a.db.Close(); err != nil {
		a.logger.Error("closing database failed", "error", err)
	}
}
