// -----------------------------------------------------------------------
// Application wiring - builds and owns all runtime components
// -----------------------------------------------------------------------

package app

import (
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/generators"
	"github.com/ternarybob/socratic/internal/handlers"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/pipeline"
	"github.com/ternarybob/socratic/internal/queue"
	"github.com/ternarybob/socratic/internal/services/retention"
	badgerstore "github.com/ternarybob/socratic/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Processing pipeline
	QueueManager *queue.BadgerManager
	WorkerPool   *queue.WorkerPool
	Executor     *pipeline.Executor

	// Generators
	Extractor   *generators.ExtractorSet
	Generator   interfaces.ContentGenerator
	Renderer    *generators.ReportService
	Synthesizer interfaces.AudioSynthesizer

	// Background services
	RetentionService *retention.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	JobHandler    *handlers.JobHandler
	StreamHandler *handlers.StreamHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initQueue(); err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	if err := app.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	app.initHandlers()

	app.RetentionService = retention.NewService(cfg, app.StorageManager, logger)
	if err := app.RetentionService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start retention service: %w", err)
	}

	app.WorkerPool.Start()

	logger.Info().
		Str("provider", cfg.LLM.Provider).
		Bool("audio_enabled", app.Synthesizer != nil).
		Int("concurrency", cfg.Queue.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the Badger storage layer
func (a *App) initStorage() error {
	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initQueue creates the persistent queue on the storage layer's Badger DB
func (a *App) initQueue() error {
	badgerStore, ok := a.StorageManager.DB().(*badgerhold.Store)
	if !ok {
		return fmt.Errorf("storage manager is not backed by BadgerDB (got %T)", a.StorageManager.DB())
	}

	queueMgr, err := queue.NewBadgerManager(
		badgerStore.Badger(),
		a.Config.Queue.QueueName,
		a.Config.QueueVisibilityTimeout(),
		a.Config.Queue.MaxReceive,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}

	a.QueueManager = queueMgr
	a.Logger.Debug().Str("queue_name", a.Config.Queue.QueueName).Msg("Queue manager initialized")

	return nil
}

// initPipeline builds the generators and the worker pool that drives them
func (a *App) initPipeline() error {
	a.Extractor = generators.NewExtractorSet(a.Logger)
	a.Renderer = generators.NewReportService(a.Logger)

	generator, err := generators.NewContentGenerator(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create content generator: %w", err)
	}
	a.Generator = generator

	// Audio synthesis is optional: without a Gemini key the audio stage
	// soft-fails and jobs still complete.
	if a.Config.Gemini.APIKey != "" {
		synthesizer, err := generators.NewGeminiSpeech(a.Config.Gemini.APIKey, &a.Config.TTS, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Audio synthesis unavailable")
		} else {
			a.Synthesizer = synthesizer
		}
	} else {
		a.Logger.Info().Msg("No Gemini API key configured, audio synthesis disabled")
	}

	artifactsDir := filepath.Join(a.Config.Storage.Badger.Path, "..", "artifacts")
	executor, err := pipeline.NewExecutor(
		a.StorageManager,
		a.Extractor,
		a.Generator,
		a.Renderer,
		a.Synthesizer,
		artifactsDir,
		a.Config.Pipeline.MinTextLength,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline executor: %w", err)
	}
	a.Executor = executor

	a.WorkerPool = queue.NewWorkerPool(
		a.QueueManager,
		executor.Handler(),
		a.Config.Queue.Concurrency,
		a.Config.QueuePollInterval(),
		a.Config.QueueRetryBackoff(),
		a.Logger,
	)
	a.Logger.Debug().Msg("Pipeline executor and worker pool initialized")

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.QueueManager)
	a.JobHandler = handlers.NewJobHandler(a.Config, a.StorageManager, a.QueueManager, a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.Config, a.StorageManager, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.RetentionService != nil {
		a.RetentionService.Stop()
	}

	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
		a.Logger.Info().Msg("Worker pool stopped")
	}

	if a.Synthesizer != nil {
		if closer, ok := a.Synthesizer.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close audio synthesizer")
			}
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
