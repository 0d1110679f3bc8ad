package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"itembook/internal/api"
	"itembook/internal/auth"
	"itembook/internal/cart"
	"itembook/internal/config"
	"itembook/internal/database"
	"itembook/internal/events"
	"itembook/internal/export"
	"itembook/internal/google"
	"itembook/internal/metrics"
	"itembook/internal/notify"
	"itembook/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if err := config.LoadEnvFiles(); err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(os.Getenv("ITEMBOOK_CONFIG_PATH"))
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Logging)

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var carts service.CartStore = cart.NewMemoryStore()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		carts = cart.NewFailoverStore(cart.NewRedisStore(rdb, cfg.CartTTL()), cart.NewMemoryStore(), &logger)
	} else {
		logger.Warn().Msg("redis not configured; carts are kept in memory")
	}

	bus := events.NewEventBus(&logger)

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:       cfg.Notifications.Workers,
		QueueSize:     cfg.Notifications.QueueSize,
		RatePerSecond: cfg.Notifications.RatePerSecond,
		Burst:         cfg.Notifications.Burst,
		Retry:         retryConfig(cfg.Notifications.MaxRetries),
		DrainTimeout:  cfg.NotificationDrainTimeout(),
	}, &logger, senders(cfg.Notifications, &logger)...)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	notifier := notify.NewNotifier(dispatcher, &logger)
	notifier.SubscribeAdminAlerts(bus)

	var approvals service.ApprovalNotifier
	if dispatcher.Has(notify.ChannelEmail) {
		approvals = notifier
	} else {
		logger.Warn().Msg("smtp disabled; approval emails are not sent")
	}

	if cfg.Sheets.Enabled {
		sheets, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			if err := sheets.EnsureHeader(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to write sheets header")
			}
			sheets.Subscribe(ctx, bus)
		}
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
	bookings := service.NewBookingService(db, db, db, bus, approvals, &logger)
	exporter := export.NewExporter(db, cfg.Backup.StoragePath, &logger)

	server := api.NewHTTPServer(cfg.Server, cfg.Auth, api.Services{
		Bookings: bookings,
		Carts:    service.NewCartService(carts, db, bookings, &logger),
		Items:    service.NewItemService(db),
		Users:    service.NewUserService(db, tokens, &logger),
		Exporter: exporter,
		Tokens:   tokens,
	}, &logger)

	sched := newScheduler(&logger)
	if cfg.Backup.Enabled {
		sched.add("backup", cfg.Backup.Schedule, database.NewBackupService(db, cfg.Backup, &logger).Run)
		sched.add("export", cfg.Backup.ExportSchedule, exporter.Run)
	}
	if dispatcher.Has(notify.ChannelEmail) {
		sched.add("reminders", cfg.Notifications.ReminderSchedule, notify.NewReminder(db, dispatcher, &logger).Run)
	}
	sched.start(ctx)
	defer sched.stop()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}
	if cfg.Monitoring.GRPCHealthPort > 0 {
		go startGRPCHealth(ctx, cfg.Monitoring.GRPCHealthPort, db, &logger)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info().Str("addr", cfg.Server.Address).Msg("itembook started")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http api stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http api shutdown")
	}
	logger.Info().Msg("itembook stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func retryConfig(maxRetries int) notify.RetryConfig {
	rc := notify.DefaultRetryConfig()
	if maxRetries > 0 {
		rc.MaxRetries = maxRetries
	}
	return rc
}

func senders(cfg config.NotificationsConfig, logger *zerolog.Logger) []notify.Sender {
	var out []notify.Sender
	if cfg.SMTP.Enabled {
		out = append(out, notify.NewEmailSender(cfg.SMTP))
	}
	if cfg.Telegram.Enabled {
		bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram admin channel disabled")
		} else {
			out = append(out, notify.NewTelegramSender(bot, cfg.Telegram.ChatID))
		}
	}
	return out
}
