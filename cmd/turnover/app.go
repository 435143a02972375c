package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"turnover/internal/config"
	"turnover/internal/database"
	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/export"
	"turnover/internal/google"
	"turnover/internal/hostaway"
	"turnover/internal/logging"
	"turnover/internal/notify"
	"turnover/internal/repository"
	"turnover/internal/service"
	"turnover/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const listingsCacheTTL = time.Hour

// app holds every long-lived dependency. Nothing here is global; commands build one and close it.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	closer io.Closer

	db     *database.DB
	redis  *redis.Client
	cache  domain.Cache
	bus    *events.EventBus
	outbox *worker.OutboxWorker

	tasks     *service.TaskService
	reminders *service.ReminderService
	overview  *service.OverviewService
	sync      *service.SyncService
	reports   *export.Reporter
	publisher *google.Publisher
	backup    *database.BackupService
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("init database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, closer: closer, db: db, bus: events.NewEventBus()}
	a.initCache(ctx)

	a.outbox = worker.NewOutboxWorker(db, a.redis, worker.Options{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		Retry:        worker.RetryPolicy{MaxRetries: cfg.Outbox.MaxRetries},
	}, logging.Component(logger, "outbox"))

	dispatcher := notify.NewDispatcher(a.outbox)
	a.outbox.Handle(notify.TaskNotification, notify.NewDelivery(db, db, a.initTelegram(), logging.Component(logger, "notify")).Handle)

	client := hostaway.NewClient(cfg.Hostaway, logging.Component(logger, "hostaway"))
	client.UseCache(a.cache, listingsCacheTTL)

	svcLogger := logging.Component(logger, "service")
	deriver := service.NewTaskDeriver(db, db, db, a.bus, svcLogger)
	reconciler := service.NewReconciler(db, db, db, client, deriver, svcLogger)
	a.sync = service.NewSyncService(cfg.Accounts, db, db, reconciler, a.bus, cfg.Scheduler.SyncConcurrency, svcLogger)
	a.tasks = service.NewTaskService(db, db, dispatcher, a.bus, svcLogger)
	a.reminders = service.NewReminderService(db, dispatcher, svcLogger)
	a.overview = service.NewOverviewService(db, db, db, db, db, db)
	a.reports = export.NewReporter(db, cfg.Exports.Path, logging.Component(logger, "export"))
	a.backup = database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))

	a.initTaskBoard(ctx)

	if err := a.sync.RegisterAccounts(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// initCache prefers Redis and falls back to process memory when Redis is absent or down.
func (a *app) initCache(ctx context.Context) {
	memory := repository.NewMemoryCache()
	a.cache = memory
	if a.cfg.Redis.Address == "" {
		return
	}

	client := repository.NewRedisClient(a.cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		a.logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return
	}

	a.logger.Info().Str("addr", a.cfg.Redis.Address).Msg("redis connected")
	a.redis = client
	a.cache = repository.NewFailoverCache(repository.NewRedisCache(client), memory, logging.Component(a.logger, "cache"))
}

func (a *app) initTelegram() domain.TelegramSender {
	if a.cfg.Telegram.BotToken == "" {
		return nil
	}
	bot, err := notify.NewTelegramSender(a.cfg.Telegram.BotToken, a.cfg.Telegram.Debug)
	if err != nil {
		a.logger.Warn().Err(err).Msg("telegram init failed, notifications stay in-app only")
		return nil
	}
	a.logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return bot
}

func (a *app) initTaskBoard(ctx context.Context) {
	g := a.cfg.Google
	if g.GoogleCredentialsFile == "" || g.TasksSpreadsheetID == "" {
		return
	}

	board, err := google.NewTaskBoard(ctx, g.GoogleCredentialsFile, g.TasksSpreadsheetID)
	if err != nil {
		a.logger.Warn().Err(err).Msg("google sheets init failed, continuing without task board")
		return
	}

	a.publisher = google.NewPublisher(board, a.db, a.outbox, logging.Component(a.logger, "sheets"))
	a.publisher.Subscribe(a.bus)
	a.outbox.Handle(google.TaskSheetsExport, a.publisher.Handle)
	a.logger.Info().Msg("google sheets connected")
}

func (a *app) health(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = repository.Close(a.redis)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database")
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}
