// Package app wires the application together: storage, the service graph,
// the scheduler and the HTTP handlers, constructed in dependency order and
// closed in reverse.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/handlers"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/crawl"
	"github.com/ternarybob/reperio/internal/services/discovery"
	"github.com/ternarybob/reperio/internal/services/embeddings"
	"github.com/ternarybob/reperio/internal/services/enrich"
	"github.com/ternarybob/reperio/internal/services/events"
	"github.com/ternarybob/reperio/internal/services/extract"
	"github.com/ternarybob/reperio/internal/services/fetcher"
	"github.com/ternarybob/reperio/internal/services/llm"
	"github.com/ternarybob/reperio/internal/services/maintenance"
	"github.com/ternarybob/reperio/internal/services/normalize"
	"github.com/ternarybob/reperio/internal/services/pipeline"
	"github.com/ternarybob/reperio/internal/services/ratelimit"
	"github.com/ternarybob/reperio/internal/services/render"
	"github.com/ternarybob/reperio/internal/services/scheduler"
	"github.com/ternarybob/reperio/internal/services/verify"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Infrastructure services
	EventService interfaces.EventService
	RateLimiter  interfaces.RateLimiter
	Fetcher      interfaces.Fetcher
	Render       interfaces.RenderService

	// LLM services
	ExtractionLLM interfaces.LLMService
	EmbeddingLLM  interfaces.LLMService

	// Pipeline services
	Detector           *ats.Detector
	ExtractorService   interfaces.ExtractorService
	NormalizerService  interfaces.NormalizerService
	CrawlerService     interfaces.CrawlerService
	EnricherService    interfaces.EnricherService
	MaintenanceService interfaces.MaintenanceService
	DiscoveryService   interfaces.DiscoveryService
	EmbedderService    interfaces.EmbedderService
	PipelineService    interfaces.PipelineService
	VerifierService    interfaces.VerifierService
	SchedulerService   interfaces.SchedulerService

	// HTTP handlers
	WSHandler        *handlers.WebSocketHandler
	PipelineHandler  *handlers.PipelineHandler
	DiscoveryHandler *handlers.DiscoveryHandler
	CompanyHandler   *handlers.CompanyHandler
	JobHandler       *handlers.JobHandler
	StatusHandler    *handlers.StatusHandler
	VerifyHandler    *handlers.VerifyHandler
	SchedulerHandler *handlers.SchedulerHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Storage first; everything hangs off it.
	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)

	// Outbound plumbing: limiter under the fetcher, browser pool beside it.
	app.RateLimiter = ratelimit.NewService(cfg.RateLimit, logger)
	app.Fetcher = fetcher.NewService(cfg.Fetcher, app.RateLimiter, logger)
	app.Render = render.NewService(cfg.Render, cfg.Fetcher.UserAgent, logger)

	// LLM backends. Extraction may be disabled by config; the factory
	// answers with a no-op service in that case.
	app.ExtractionLLM, err = llm.NewExtractionService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extraction LLM: %w", err)
	}
	app.EmbeddingLLM, err = llm.NewEmbeddingService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}

	app.Detector = ats.NewDetector(app.Fetcher, app.Render, logger)
	app.ExtractorService = extract.NewService(app.ExtractionLLM, storageManager.KVStorage(), logger)

	normalizer, err := normalize.NewService(storageManager.JobRawStorage(), storageManager.JobStorage(), cfg.Normalize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize normalizer: %w", err)
	}
	app.NormalizerService = normalizer

	app.CrawlerService = crawl.NewService(
		storageManager.CompanyStorage(),
		storageManager.SnapshotStorage(),
		app.Fetcher,
		app.Render,
		app.Detector,
		app.ExtractorService,
		app.NormalizerService,
		cfg.Crawl,
		logger,
	)
	app.EnricherService = enrich.NewService(
		storageManager.JobStorage(),
		storageManager.CompanyStorage(),
		app.Fetcher,
		cfg.Enrich,
		logger,
	)
	app.MaintenanceService = maintenance.NewService(
		storageManager.CompanyStorage(),
		storageManager.JobStorage(),
		storageManager.RunStorage(),
		app.Fetcher,
		app.Render,
		app.ExtractorService,
		app.NormalizerService,
		cfg.Maintenance,
		logger,
	)
	app.DiscoveryService = discovery.NewService(
		storageManager.CompanyStorage(),
		storageManager.QueueStorage(),
		storageManager.RunStorage(),
		app.Fetcher,
		app.Detector,
		cfg.Discovery,
		cfg.Search,
		logger,
	)
	app.EmbedderService = embeddings.NewService(storageManager.JobStorage(), app.EmbeddingLLM, cfg.Embeddings, logger)

	app.PipelineService = pipeline.NewService(
		app.DiscoveryService,
		app.CrawlerService,
		app.EnricherService,
		app.EmbedderService,
		storageManager.CompanyStorage(),
		storageManager.JobStorage(),
		storageManager.QueueStorage(),
		storageManager.RunStorage(),
		cfg.Crawl,
		logger,
	)

	searcher := verify.NewSearcher(app.Render, app.RateLimiter, logger)
	app.VerifierService = verify.NewService(
		storageManager.JobStorage(),
		storageManager.CompanyStorage(),
		storageManager.ListingStorage(),
		storageManager.RunStorage(),
		searcher,
		cfg.Verify,
		logger,
	)

	app.SchedulerService = scheduler.NewService(app.EventService, logger)
	if err := app.registerScheduledJobs(); err != nil {
		return nil, fmt.Errorf("failed to register scheduled jobs: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// HTTP handlers over the service graph.
	app.WSHandler = handlers.NewWebSocketHandler(storageManager.RunStorage(), app.EventService, &cfg.WebSocket, logger)
	app.PipelineHandler = handlers.NewPipelineHandler(app.PipelineService, storageManager.RunStorage(), logger)
	app.DiscoveryHandler = handlers.NewDiscoveryHandler(app.DiscoveryService, storageManager.QueueStorage(), logger)
	app.CompanyHandler = handlers.NewCompanyHandler(
		storageManager.CompanyStorage(),
		storageManager.JobStorage(),
		app.CrawlerService,
		app.MaintenanceService,
		logger,
	)
	app.JobHandler = handlers.NewJobHandler(storageManager.JobStorage(), storageManager.CompanyStorage(), logger)
	app.StatusHandler = handlers.NewStatusHandler(app.PipelineService, storageManager.MetricStorage(), logger)
	app.VerifyHandler = handlers.NewVerifyHandler(app.VerifierService, logger)
	app.SchedulerHandler = handlers.NewSchedulerHandler(app.SchedulerService, logger)

	logger.Info().Msg("Application initialized")
	return app, nil
}

// registerScheduledJobs binds the recurring pipeline work to the configured
// cron schedules. A job with an empty schedule stays registered for manual
// triggering only.
func (a *App) registerScheduledJobs() error {
	if err := a.SchedulerService.RegisterJob(
		"full_pipeline",
		a.Config.Scheduler.PipelineSchedule,
		"Discovery, crawl, enrichment and embeddings over the whole corpus",
		func() error {
			start := time.Now()
			a.publishPipelineEvent(interfaces.EventPipelineRunStarted, "full_pipeline")
			run, err := a.PipelineService.RunFullPipeline(context.Background(), models.PipelineOptions{})
			if run != nil {
				a.publishPipelineEvent(interfaces.EventPipelineRunFinished, run.ID)
			}
			a.recordJobMetric("full_pipeline", start, err)
			return err
		},
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		"maintenance",
		a.Config.Scheduler.MaintenanceSchedule,
		"Re-check stored jobs against their live listings",
		func() error {
			start := time.Now()
			_, err := a.MaintenanceService.RunMaintenance(context.Background(), "", "", 0)
			a.recordJobMetric("maintenance", start, err)
			return err
		},
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		"embeddings",
		a.Config.Scheduler.EmbeddingsSchedule,
		"Embed described jobs that have no vector yet",
		func() error {
			start := time.Now()
			_, err := a.EmbedderService.EmbedBacklog(context.Background(), 0)
			a.recordJobMetric("embeddings", start, err)
			return err
		},
	); err != nil {
		return err
	}

	if a.Config.Verify.Enabled {
		boards := a.Config.Verify.Boards
		if err := a.SchedulerService.RegisterJob(
			"verification",
			"", // manual-only until a cadence is configured
			"Check job presence on external boards",
			func() error {
				start := time.Now()
				var firstErr error
				for _, board := range boards {
					if _, err := a.VerifierService.VerifyBatch(context.Background(), board, 0); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				a.recordJobMetric("verification", start, firstErr)
				return firstErr
			},
		); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) publishPipelineEvent(eventType interfaces.EventType, payload string) {
	if err := a.EventService.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		a.Logger.Warn().Str("event", string(eventType)).Err(err).Msg("Failed to publish pipeline event")
	}
}

// recordJobMetric writes one duration row per scheduled job execution so the
// dashboard can trend run times and failure rates.
func (a *App) recordJobMetric(job string, start time.Time, runErr error) {
	outcome := "ok"
	if runErr != nil {
		outcome = "error"
	}
	metric := &models.Metric{
		ID:     common.NewMetricID(),
		Name:   "scheduled_job_duration_seconds",
		Value:  time.Since(start).Seconds(),
		Labels: map[string]string{"job": job, "outcome": outcome},
	}
	if err := a.StorageManager.MetricStorage().Record(metric); err != nil {
		a.Logger.Warn().Str("job", job).Err(err).Msg("Failed to record job metric")
	}
}

// Close shuts down application components in reverse construction order.
func (a *App) Close() {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.WSHandler != nil {
		if err := a.WSHandler.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close websocket clients")
		}
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}
	if a.Render != nil {
		if err := a.Render.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close render service")
		}
	}
	if a.ExtractionLLM != nil {
		if err := a.ExtractionLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close extraction LLM")
		}
	}
	if a.EmbeddingLLM != nil {
		if err := a.EmbeddingLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding LLM")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
