package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"academy/internal/api"
	"academy/internal/backup"
	"academy/internal/cache"
	"academy/internal/config"
	"academy/internal/db"
	"academy/internal/events"
	"academy/internal/metrics"
	"academy/internal/notify"
	"academy/internal/policy"
	"academy/internal/service"
	"academy/shared/reminders"
)

const policyWatchInterval = 30 * time.Second

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadEnv(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	configPath := os.Getenv("ACADEMY_CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init database")
	}
	defer database.Close()
	database.SetLocation(cfg.Policy.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policies := service.NewPolicyHolder(policy.New(effectivePolicy(ctx, database, cfg.Policy, &logger).Rules(), nil))

	go func() {
		err := config.WatchPolicy(ctx, cfg.Path(), policyWatchInterval, func(p config.PolicyConfig) {
			p = effectivePolicy(ctx, database, p, &logger)
			policies.Set(policy.New(p.Rules(), nil))
			logger.Info().
				Int("notice_hours", p.CancellationNoticeHours).
				Int("min_advance_hours", p.MinBookingAdvanceHours).
				Msg("policy reloaded")
		})
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("policy watcher stopped")
		}
	}()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}
	progressCache := cache.NewProgressCache(rdb, cfg.ProgressCacheTTL())
	if err := progressCache.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, progress cache will miss")
	}

	bus := events.NewEventBus()
	subscribeEventLog(bus, &logger)

	var (
		notifier       *notify.TelegramNotifier
		cancelNotifier service.CancellationNotifier
	)
	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Error().Err(err).Msg("telegram disabled")
		} else {
			notifier = notify.NewTelegramNotifier(bot, database, cfg.Policy.Location(), &logger)
			cancelNotifier = notifier
		}
	}

	lessons := service.NewLessonService(database, policies, bus, cancelNotifier, &logger)
	schedule := service.NewScheduleService(database, policies, &logger)
	progressSvc := service.NewProgressService(database, progressCache, bus, &logger)
	sessions := service.NewSessionService(database, progressCache, bus, &logger)
	exports := service.NewExportService(database, "Academy lessons", &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	scheduler := cron.New(cron.WithLocation(cfg.Policy.Location()))

	if cfg.Backup.Enabled {
		backups := backup.NewBackupService(database, backup.Config{
			Schedule:  cfg.BackupSchedule(),
			Dir:       cfg.BackupPath(),
			Retention: cfg.BackupRetention(),
		}, &logger)
		if err := backups.Schedule(scheduler); err != nil {
			logger.Error().Err(err).Msg("failed to schedule backups")
		}
	}

	if cfg.Reminders.Enabled && notifier != nil {
		if err := scheduleReminders(scheduler, cfg, database, notifier, &logger); err != nil {
			logger.Error().Err(err).Msg("failed to schedule reminders")
		}
	}

	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(cfg.Server.Port, cfg.Server.APIKey, api.Services{
		Lessons:  lessons,
		Schedule: schedule,
		Progress: progressSvc,
		Sessions: sessions,
		Exports:  exports,
	}, &logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("academy started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("academy stopped")
}

// effectivePolicy applies overrides stored in the settings table.
func effectivePolicy(ctx context.Context, database *db.DB, p config.PolicyConfig, logger *zerolog.Logger) config.PolicyConfig {
	settings, err := database.Settings(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read settings, using file policy")
		return p
	}
	return p.WithOverrides(settings)
}

func scheduleReminders(c *cron.Cron, cfg *config.Config, database *db.DB, notifier reminders.Notifier, logger *zerolog.Logger) error {
	l := logger.With().Str("component", "reminders").Logger()
	log := reminders.NewZerologLogger(&l)

	var reg prometheus.Registerer
	if cfg.Monitoring.PrometheusEnabled {
		reg = prometheus.DefaultRegisterer
	}
	m := reminders.NewMetrics(reg, "academy")

	store := service.NewReminderStore(database)
	sender := reminders.NewReminderSender(notifier, database, store, reminders.ReminderSenderConfig{
		RateLimiter: reminders.RateLimiterConfig{Rate: cfg.Reminders.RatePerSec, Burst: cfg.Reminders.Burst},
		Retry:       reminders.DefaultRetryConfig(),
	}, m, log)

	svc := reminders.NewService(&reminders.Config{
		DefaultHoursBefore:         cfg.ReminderHoursBefore(),
		MaxConcurrentNotifications: cfg.Reminders.MaxInFlight,
		CleanupRetention:           cfg.ReminderCleanupRetention(),
	}, store, store, database, sender, m, log)

	if _, err := c.AddFunc(cfg.ReminderSchedule(), svc.Run); err != nil {
		return err
	}
	l.Info().Str("schedule", cfg.ReminderSchedule()).Msg("Reminder job scheduled")
	return nil
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	l := logger.With().Str("component", "events").Logger()
	bus.OnError(func(e events.Event, err error) {
		l.Error().Err(err).Str("type", e.Type).Msg("event handler failed")
	})
	for _, t := range []string{
		events.LessonBooked,
		events.LessonCancelled,
		events.LessonConfirmed,
		events.ProgressUpdated,
		events.SessionBooked,
		events.SessionCancelled,
	} {
		bus.Subscribe(t, func(e events.Event) error {
			l.Debug().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("event")
			return nil
		})
	}
}
