package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ShortsIntel/internal/agents"
	"ShortsIntel/internal/collector"
	"ShortsIntel/internal/config"
	"ShortsIntel/internal/infrastructure/export"
	"ShortsIntel/internal/infrastructure/llm"
	"ShortsIntel/internal/infrastructure/scheduler"
	"ShortsIntel/internal/infrastructure/warehouse"
	"ShortsIntel/internal/infrastructure/youtube"
	"ShortsIntel/internal/logging"
	"ShortsIntel/internal/medallion"
	"ShortsIntel/internal/ports"
	"ShortsIntel/internal/quota"
	"ShortsIntel/internal/trend"
	"ShortsIntel/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	store     ports.Warehouse
	db        *sql.DB
}

// New builds a runnable application instance. Missing credentials degrade
// the wiring instead of failing it: no platform key means results-page
// scraping, no DSN means the in-memory warehouse, no insight key means
// local-only analysis.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	ledger := quota.NewLedger(cfg.Quota.DailyBudget, quota.Costs{
		quota.OpSearch:   cfg.Quota.SearchCost,
		quota.OpDetails:  cfg.Quota.DetailsCost,
		quota.OpComments: cfg.Quota.CommentsCost,
	}, time.Duration(cfg.Quota.PeriodHours)*time.Hour, nil)

	var platform ports.VideoPlatform
	if cfg.Platform.APIKey != "" {
		platform = youtube.NewClient(cfg.Platform, baseLogger, nil)
	} else {
		baseLogger.Info("no platform API key, using results-page scraping")
		platform = youtube.NewScraper(cfg.Platform, baseLogger, nil)
	}

	var store ports.Warehouse
	var db *sql.DB
	if cfg.Warehouse.DSN != "" {
		opened, err := sql.Open("postgres", cfg.Warehouse.DSN)
		if err != nil {
			baseLogger.Error("warehouse unavailable, using in-memory store", "error", err)
			store = warehouse.NewMemory()
		} else {
			db = opened
			store = warehouse.NewPostgres(db, baseLogger)
		}
	} else {
		baseLogger.Info("no warehouse DSN, using in-memory store")
		store = warehouse.NewMemory()
	}

	var insight ports.InsightClient
	if cfg.Insight.APIKey != "" {
		insight = llm.NewClient(cfg.Insight, baseLogger)
	}

	scorer := agents.NewScorer(cfg.Agents)
	registry := agents.NewRegistry()
	registry.Register(agents.NewDiscoveryWorker(insight, scorer, baseLogger))
	registry.Register(agents.NewContextualWorker(insight, scorer, baseLogger))
	registry.Register(agents.NewAudienceWorker(insight, scorer, baseLogger))
	registry.Register(agents.NewCreativeWorker(insight, scorer, baseLogger))
	registry.Register(agents.NewCompetitiveWorker(insight, scorer, baseLogger))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Collector:    collector.New(platform, ledger, cfg.Collector, baseLogger, nil),
		Transformer:  medallion.New(store, cfg.Medallion, baseLogger),
		Detector:     trend.New(cfg.Trend),
		Orchestrator: agents.NewOrchestrator(registry, scorer, cfg.Agents, baseLogger, nil),
		Warehouse:    store,
		Sink:         export.NewFileStore(cfg.Export.OutputDir, baseLogger),
		Ledger:       ledger,
		Logger:       baseLogger,
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, pipeline, cfg.Brands, baseLogger)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: sched,
		store:     store,
		db:        db,
	}
}

// RunOnce executes the pipeline immediately for one configured brand.
func (a *Application) RunOnce(ctx context.Context, brandName string) error {
	brand, ok := a.cfg.Brand(brandName)
	if !ok {
		return fmt.Errorf("brand %q is not configured", brandName)
	}
	if err := a.migrate(ctx); err != nil {
		return err
	}
	return a.pipeline.Run(ctx, brand)
}

// RunAll executes the pipeline for every configured brand. A failing brand
// does not stop the others; the first error is returned.
func (a *Application) RunAll(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return err
	}

	var firstErr error
	for _, brand := range a.cfg.Brands {
		if err := a.pipeline.Run(ctx, brand); err != nil {
			a.logger.Error("run failed", "brand", brand.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Schedule blocks, running every brand on the configured cron expression
// until the context is canceled.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return err
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"brands", len(a.cfg.Brands))

	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Brands returns the configured brands.
func (a *Application) Brands() []config.BrandConfig {
	return a.cfg.Brands
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Application) migrate(ctx context.Context) error {
	pg, ok := a.store.(*warehouse.PostgresWarehouse)
	if !ok {
		return nil
	}
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate warehouse: %w", err)
	}
	return nil
}
