package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/experts"
	"github.com/ternarybob/augur/internal/handlers"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/providers/data"
	"github.com/ternarybob/augur/internal/providers/search"
	"github.com/ternarybob/augur/internal/services/analysis"
	"github.com/ternarybob/augur/internal/services/events"
	"github.com/ternarybob/augur/internal/services/notify"
	"github.com/ternarybob/augur/internal/services/reports"
	"github.com/ternarybob/augur/internal/services/scheduler"
	"github.com/ternarybob/augur/internal/services/settings"
	"github.com/ternarybob/augur/internal/services/tasks"
	"github.com/ternarybob/augur/internal/services/watchlist"
	"github.com/ternarybob/augur/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Core services
	SettingsService  *settings.Service
	EventService     interfaces.EventService
	DataService      interfaces.DataService
	SearchService    interfaces.SearchService
	ExpertService    interfaces.ExpertService
	ReportService    *reports.Service
	WatchlistService *watchlist.Service
	NotifyService    interfaces.NotificationService
	AnalysisService  interfaces.AnalysisService
	TaskService      interfaces.TaskService
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	AnalysisHandler  *handlers.AnalysisHandler
	StreamHandler    *handlers.StreamHandler
	StocksHandler    *handlers.StocksHandler
	WatchlistHandler *handlers.WatchlistHandler
	SettingsHandler  *handlers.SettingsHandler
	ExpertHandler    *handlers.ExpertHandler
	ReportsHandler   *handlers.ReportsHandler
	MCPHandler       *handlers.MCPHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	if err := app.initStorage(); err != nil {
		app.cancelCtx()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.cancelCtx()
		app.StorageManager.Close()
		return nil, err
	}

	app.initHandlers()

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager

	a.Logger.Info().
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage initialized")
	return nil
}

func (a *App) initServices() error {
	// Settings: dotenv file or badger KV backend, selected at startup.
	var backend interfaces.SettingsBackend
	switch a.Config.Settings.Backend {
	case "badger":
		backend = settings.NewDBBackend(a.StorageManager.KVStorage())
	default:
		envFile := a.Config.Settings.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		backend = settings.NewFileBackend(envFile)
	}

	settingsService, err := settings.NewService(a.ctx, backend, a.Logger)
	if err != nil {
		return err
	}
	a.SettingsService = settingsService

	a.EventService = events.NewService(a.Logger)

	// Data provider cascade in priority order per market.
	a.DataService = data.NewManager(a.Logger,
		data.NewAKShareFetcher(a.Config, a.Logger),
		data.NewTushareFetcher(a.Config, settingsService, a.Logger),
		data.NewEFinanceFetcher(a.Config, a.Logger),
		data.NewYFinanceFetcher(a.Config, a.Logger),
		data.NewAlpacaFetcher(settingsService, a.Logger),
	)

	// News/search cascade. RSS needs no credentials and goes last.
	a.SearchService = search.NewManager(a.Config, a.Logger,
		search.NewTavilyProvider(a.Config, settingsService, a.Logger),
		search.NewSerpAPIProvider(a.Config, settingsService, a.Logger),
		search.NewRSSProvider(a.Logger),
	)

	expertService := experts.NewService(a.Config, settingsService, a.Logger)
	a.ExpertService = expertService

	a.ReportService = reports.NewService(a.StorageManager.ReportStorage(), a.Logger)
	a.WatchlistService = watchlist.NewService(a.StorageManager.WatchlistStorage(), a.Logger)
	a.NotifyService = notify.NewService(settingsService, a.Logger)

	a.AnalysisService = analysis.NewOrchestrator(
		a.Config,
		a.DataService,
		a.SearchService,
		a.ExpertService,
		a.StorageManager.ReportStorage(),
		a.NotifyService,
		a.Logger,
	)

	a.TaskService = tasks.NewQueue(a.Config, a.AnalysisService, a.Logger)

	schedulerService := scheduler.NewService(
		a.TaskService,
		a.StorageManager.WatchlistStorage(),
		settingsService,
		a.EventService,
		&a.Config.Scheduler,
		a.Logger,
	)
	a.SchedulerService = schedulerService

	// Hot reload: settings changes re-parse the expert panel models and
	// reinstall the cron entry.
	settingsService.RegisterReloadHook("experts", func(context.Context) error {
		return expertService.Reload()
	})
	settingsService.RegisterReloadHook("scheduler", schedulerService.Reload)
	settingsService.RegisterReloadHook("events", func(ctx context.Context) error {
		return a.EventService.Publish(ctx, interfaces.Event{Type: interfaces.EventSettingsUpdated})
	})

	if err := a.EventService.Subscribe(interfaces.EventBatchTriggered, func(_ context.Context, event interfaces.Event) error {
		a.Logger.Info().
			Str("payload", fmt.Sprintf("%v", event.Payload)).
			Msg("Scheduled batch triggered")
		return nil
	}); err != nil {
		return err
	}

	a.Logger.Info().
		Str("settings_backend", a.Config.Settings.Backend).
		Bool("search_configured", a.SearchService.IsConfigured()).
		Int("expert_models", len(a.ExpertService.Models())).
		Msg("Services initialized")
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.DataService, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.TaskService, a.AnalysisService, a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.TaskService, a.Logger)
	a.StocksHandler = handlers.NewStocksHandler(a.DataService, a.Logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(a.WatchlistService, a.Logger)
	a.SettingsHandler = handlers.NewSettingsHandler(a.SettingsService, a.Logger)
	a.ExpertHandler = handlers.NewExpertHandler(a.ExpertService, a.DataService, a.Logger)
	a.ReportsHandler = handlers.NewReportsHandler(a.ReportService, a.Logger)
	a.MCPHandler = handlers.NewMCPHandler(a.DataService, a.TaskService, a.ReportService, a.Logger)
}

// Start launches the background components: the task queue workers and
// the batch scheduler.
func (a *App) Start() error {
	if err := a.TaskService.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start task queue: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts down components in reverse dependency order.
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}
	if a.TaskService != nil {
		if err := a.TaskService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Task queue stop failed")
		}
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	a.cancelCtx()

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Storage close failed")
			return err
		}
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
