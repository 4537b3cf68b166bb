// -----------------------------------------------------------------------
// Last Modified: Wednesday, 22nd April 2026 08:05:31 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/handlers"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
	"github.com/ternarybob/claimlens/internal/queue"
	"github.com/ternarybob/claimlens/internal/services/auth"
	"github.com/ternarybob/claimlens/internal/services/chat"
	configsvc "github.com/ternarybob/claimlens/internal/services/config"
	"github.com/ternarybob/claimlens/internal/services/events"
	"github.com/ternarybob/claimlens/internal/services/llm"
	"github.com/ternarybob/claimlens/internal/services/media"
	"github.com/ternarybob/claimlens/internal/services/pdf"
	"github.com/ternarybob/claimlens/internal/services/report"
	"github.com/ternarybob/claimlens/internal/services/review"
	"github.com/ternarybob/claimlens/internal/services/scheduler"
	"github.com/ternarybob/claimlens/internal/services/title"
	"github.com/ternarybob/claimlens/internal/storage/badger"
)

// App wires the application together: storage, services, queue workers
// and HTTP handlers
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService

	// Configuration and auth
	ConfigService interfaces.ConfigService
	AuthService   interfaces.AuthService

	// Model providers. Either may be nil when no API key is configured;
	// submissions still queue and fail visibly at processing time.
	LLMService     interfaces.LLMService
	TitleGenerator interfaces.TextGenerator

	// Domain services
	MediaService  interfaces.MediaService
	ChatService   interfaces.ChatService
	ReviewService interfaces.ReviewService
	TitleService  interfaces.TitleService
	ReportService interfaces.ReportService

	// Task delivery
	QueueManager *queue.BadgerManager
	WorkerPool   *queue.WorkerPool

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	ChatHandler   *handlers.ChatHandler
	TaskHandler   *handlers.TaskHandler
	TitleHandler  *handlers.TitleHandler
	MediaHandler  *handlers.MediaHandler
	ReportHandler *handlers.ReportHandler
	WSHandler     *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event bus and WebSocket fan-out come up before the services that
	// publish into them
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.WebSocket)
	app.WSHandler.SubscribeToEvents()

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	if err := app.startBackground(); err != nil {
		return nil, fmt.Errorf("failed to start background workers: %w", err)
	}

	logger.Info().
		Bool("llm_configured", app.LLMService != nil).
		Bool("internal_workers", cfg.Queue.InternalWorkers).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Seed the KV store from variable files (API keys, secrets) before
	// config replacement so loaded values can be referenced
	if err := a.StorageManager.LoadVariablesFromFiles(context.Background(), a.Config.Variables.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load variables from files")
	}

	// Replace {key-name} references in config values with KV store values.
	// Must happen before the model providers read their API keys.
	ctx := context.Background()
	kvMap, err := a.StorageManager.KeyValueStorage().GetAll(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
	} else if len(kvMap) > 0 {
		if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
		} else {
			a.Logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
		}
	}

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	kvStorage := a.StorageManager.KeyValueStorage()
	chatStorage := a.StorageManager.ChatStorage()
	reviewStorage := a.StorageManager.ReviewStorage()
	mediaStorage := a.StorageManager.MediaStorage()

	configService, err := configsvc.NewService(a.Config, kvStorage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize config service: %w", err)
	}
	a.ConfigService = configService

	a.AuthService = auth.NewService(&a.Config.Auth, a.Logger)

	// Model providers degrade to nil rather than failing startup, so the
	// intake path keeps accepting and queueing work
	if gemini, err := llm.NewGeminiService(a.ctx, &a.Config.Gemini, kvStorage, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("Review model unavailable, submissions will queue but fail processing")
	} else {
		a.LLMService = gemini
	}

	if claude, err := llm.NewClaudeService(a.ctx, &a.Config.Claude, kvStorage, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("Title model unavailable, title generation disabled")
	} else {
		a.TitleGenerator = claude
	}

	mediaService, err := media.NewService(&a.Config.Storage.Media, mediaStorage, chatStorage, pdf.NewExtractor(a.Logger), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize media service: %w", err)
	}
	a.MediaService = mediaService

	if err := a.initQueue(); err != nil {
		return err
	}

	a.ChatService = chat.NewChatService(
		chatStorage,
		reviewStorage,
		mediaStorage,
		a.MediaService,
		a.QueueManager,
		a.EventService,
		a.Logger,
	)

	a.ReviewService = review.NewService(
		a.Config,
		chatStorage,
		reviewStorage,
		a.MediaService,
		a.LLMService,
		a.ConfigService,
		a.EventService,
		a.Logger,
	)

	a.TitleService = title.NewService(chatStorage, a.TitleGenerator, a.ConfigService, a.EventService, a.Logger)
	a.ReportService = report.NewService(chatStorage, reviewStorage, a.Logger)

	if a.Config.Scheduler.Enabled {
		sched := scheduler.NewService(a.Logger)
		if err := scheduler.RegisterMaintenanceJobs(sched, a.Config, a.badgerDB(), a.QueueManager, mediaStorage, a.MediaService, a.Logger); err != nil {
			return fmt.Errorf("failed to register maintenance jobs: %w", err)
		}
		a.SchedulerService = sched
	}

	return nil
}

// initQueue builds the badger-backed task queue and its worker pool
func (a *App) initQueue() error {
	visibility, err := time.ParseDuration(a.Config.Queue.VisibilityTimeout)
	if err != nil {
		return fmt.Errorf("invalid queue visibility_timeout %q: %w", a.Config.Queue.VisibilityTimeout, err)
	}
	pollInterval, err := time.ParseDuration(a.Config.Queue.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid queue poll_interval %q: %w", a.Config.Queue.PollInterval, err)
	}

	queueManager, err := queue.NewBadgerManager(a.badgerDB(), a.Config.Queue.QueueName, visibility, a.Config.Queue.MaxReceive)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = queueManager

	// A task that exhausts its receives is poison: surface the failure on
	// the session instead of retrying forever
	queueManager.SetDropHandler(func(msg models.QueueMessage, receiveCount int) {
		task, err := models.DecodeReviewTask(&msg)
		if err != nil {
			a.Logger.Warn().Err(err).Str("task_id", msg.TaskID).Msg("Dropped undecodable queue message")
			return
		}
		a.markSessionFailed(task, receiveCount)
	})

	a.WorkerPool = queue.NewWorkerPool(queueManager, pollInterval, a.Config.Queue.Concurrency, a.Logger)
	a.WorkerPool.RegisterHandler(models.MessageTypeReview, func(ctx context.Context, msg *models.QueueMessage) error {
		task, err := models.DecodeReviewTask(msg)
		if err != nil {
			return err
		}
		return a.ReviewService.ProcessTask(ctx, task)
	})

	return nil
}

// markSessionFailed transitions a session to failed after its review
// task exhausted redelivery, and tells connected clients
func (a *App) markSessionFailed(task *models.ReviewTask, receiveCount int) {
	ctx := context.Background()
	chatStorage := a.StorageManager.ChatStorage()

	session, err := chatStorage.GetSession(ctx, task.SessionID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("chat_id", task.SessionID).Msg("Failed to load session for poison task")
		return
	}

	session.Status = models.SessionStatusFailed
	session.UpdatedAt = time.Now()
	if err := chatStorage.SaveSession(ctx, session); err != nil {
		a.Logger.Error().Err(err).Str("chat_id", task.SessionID).Msg("Failed to mark session failed")
		return
	}

	a.Logger.Warn().
		Str("chat_id", task.SessionID).
		Str("message_id", task.MessageID).
		Int("receive_count", receiveCount).
		Msg("Review task dropped after max receives, session marked failed")

	if a.EventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventSessionStatus,
			Payload: map[string]interface{}{
				"session_id": session.ID,
				"user_id":    session.UserID,
				"status":     string(session.Status),
				"timestamp":  time.Now().Format(time.RFC3339),
			},
		}
		if err := a.EventService.Publish(ctx, event); err != nil {
			a.Logger.Warn().Err(err).Str("chat_id", session.ID).Msg("Failed to publish failure event")
		}
	}
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.StorageManager, a.QueueManager, a.LLMService != nil)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.TaskHandler = handlers.NewTaskHandler(a.AuthService, a.ReviewService, a.Logger)
	a.TitleHandler = handlers.NewTitleHandler(a.TitleService, a.Logger)
	a.MediaHandler = handlers.NewMediaHandler(a.MediaService, a.Logger)
	a.ReportHandler = handlers.NewReportHandler(a.ReportService, a.Logger)
	return nil
}

// startBackground starts the queue workers and the maintenance scheduler
func (a *App) startBackground() error {
	if a.Config.Queue.InternalWorkers {
		if err := a.WorkerPool.Start(); err != nil {
			return fmt.Errorf("failed to start worker pool: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Internal queue workers disabled, expecting push delivery to /chat/task")
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return nil
}

// badgerDB unwraps the raw badger handle shared by the queue and the
// maintenance jobs
func (a *App) badgerDB() *badgerdb.DB {
	store := a.StorageManager.DB().(*badgerhold.Store)
	return store.Badger()
}

// Close shuts the application down in reverse dependency order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.WorkerPool != nil && a.Config.Queue.InternalWorkers {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker pool")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.ConfigService != nil {
		if err := a.ConfigService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close config service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
