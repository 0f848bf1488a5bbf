package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"courtwatch/internal/config"
	"courtwatch/internal/filter"
	"courtwatch/internal/infrastructure/api"
	"courtwatch/internal/infrastructure/fetchers"
	"courtwatch/internal/infrastructure/llm"
	"courtwatch/internal/infrastructure/scheduler"
	"courtwatch/internal/infrastructure/storage"
	"courtwatch/internal/ports"
	"courtwatch/internal/schedule"
	"courtwatch/internal/source"
	"courtwatch/internal/usecase"
)

// Application wires configuration into the store, the fetcher registry,
// the extraction stage, the cron triggers, and the HTTP surface.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	ingest     *usecase.Ingest
	extraction *usecase.Extraction
	cron       ports.Scheduler
	server     *http.Server
}

// New builds a runnable application instance. The store schema is
// ensured up front so every component sees the same tables.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	db, driver, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	store := storage.New(db, driver)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	registry := source.NewRegistry()
	registerSources(registry, cfg, store, logger)
	runner := source.NewRunner(schedule.NewGate(store, nil), logger.With("component", "runner"))
	ingest := usecase.NewIngest(registry, runner, logger.With("component", "ingest"))

	if cfg.Reasoner.APIKey == "" {
		logger.Warn("reasoner API key is not set; extraction runs will fail")
	}
	var reasoner ports.Reasoner = llm.NewClient(cfg.Reasoner)

	extraction := usecase.NewExtraction(usecase.ExtractionDeps{
		Items:    store,
		Cases:    store,
		Records:  store,
		Ledger:   store,
		Reasoner: reasoner,
		Logger:   logger.With("component", "extraction"),
	}, usecase.ExtractionOptions{
		BackfillConcurrency:   cfg.Extraction.BackfillConcurrency,
		RecentItemLimit:       cfg.Extraction.RecentItemLimit,
		DeadlineLookaheadDays: cfg.Extraction.DeadlineLookaheadDays,
		BootstrapWindow:       time.Duration(cfg.Extraction.BootstrapWindowHours) * time.Hour,
	})

	srv := api.NewServer(ingest, extraction, store, store, store, store,
		logger.With("component", "api"))

	return &Application{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		ingest:     ingest,
		extraction: extraction,
		cron:       scheduler.NewCron(cfg.Scheduler.Location()),
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func registerSources(registry *source.Registry, cfg config.Config, store *storage.Store, logger *slog.Logger) {
	for _, src := range cfg.Sources {
		log := logger.With("component", "fetcher."+src.Name)

		var gate *filter.Relevance
		if src.Filter {
			gate = filter.New(src.ExtraTopics...)
		}

		switch src.Kind {
		case "rss":
			registry.Register(fetchers.NewRSS(src.Name, src.URL, src.Cooldown, gate, store, nil, log))
		case "newsapi":
			query := fetchers.NewsAPIQuery{
				Keyword:  src.Query.Keyword,
				Language: src.Query.Language,
				Country:  src.Query.Country,
				PageSize: src.Query.PageSize,
				Window:   time.Duration(src.Query.WindowHours) * time.Hour,
			}
			registry.Register(fetchers.NewNewsAPI(src.Name, src.URL, cfg.NewsAPI.APIKey,
				query, src.Cooldown, gate, store, nil, log))
		case "docket":
			registry.Register(fetchers.NewDocket(src.Name, src.URL, src.Cooldown, store, nil, log))
		default:
			logger.Warn("unknown source kind", "source", src.Name, "kind", src.Kind)
		}
	}
}

// Run registers the two cron triggers, serves HTTP, and blocks until the
// context is cancelled, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	err := a.cron.Add(a.cfg.Scheduler.FetchCron, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		a.ingest.RunAll(runCtx)
	})
	if err != nil {
		return fmt.Errorf("register fetch trigger: %w", err)
	}

	err = a.cron.Add(a.cfg.Scheduler.ExtractCron, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if runErr := a.extraction.Run(runCtx); runErr != nil {
			a.logger.Error("scheduled extraction failed", "error", runErr)
		}
	})
	if err != nil {
		return fmt.Errorf("register extraction trigger: %w", err)
	}

	a.cron.Start()
	a.logger.Info("listening", "addr", a.server.Addr,
		"fetchCron", a.cfg.Scheduler.FetchCron, "extractCron", a.cfg.Scheduler.ExtractCron)

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := a.cron.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
