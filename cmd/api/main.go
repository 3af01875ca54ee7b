package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablebook/internal/api"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/logging"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/service"
	"tablebook/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, tables, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	db, err := initDatabase(cfg, tables, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, registry := initPendingRegistry(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	// Воркер доставки уведомлений
	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	sender := worker.LogSender{Logger: logger.With().Str("component", "sender").Logger()}
	dispatcher := worker.NewDispatcher(db, sender, redisClient, retryPolicy, &logger)
	go dispatcher.Start(ctx)

	eventBus := events.NewEventBus()

	// Бизнес-сервисы
	hours := service.NewHoursService(db, cfg.Restaurant, &logger)
	finder := service.NewFinder(db, hours, &logger)
	scheduler := service.NewScheduler(db, finder, eventBus, dispatcher,
		cfg.Restaurant.MinAdvanceDuration(), cfg.Restaurant.MaxAdvanceDays, &logger)
	checkinGate := service.NewCheckinGate(db, registry, dispatcher, &logger)
	waitlist := service.NewWaitlist(db, scheduler, eventBus, dispatcher, &logger)
	scheduler.BindFreedHooks(waitlist, checkinGate)

	if err := hours.SeedHorizon(ctx, time.Now(), cfg.Restaurant.HorizonDays); err != nil {
		return err
	}

	sweeper := service.NewSweeper(scheduler, waitlist, hours,
		cfg.Restaurant.HorizonDays, cfg.Restaurant.SweepIntervalDuration(), &logger)
	go sweeper.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, scheduler, finder, checkinGate, waitlist, db, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Str("version", cfg.App.Version).Msg("tablebook started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, []models.Table, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	tablesPath := os.Getenv("TABLES_PATH")
	if tablesPath == "" {
		tablesPath = "configs/tables.yaml"
	}
	tablesData, err := os.ReadFile(tablesPath)
	if err != nil {
		logger.Error().Err(err).Msgf("Ошибка чтения %s", tablesPath)
		return nil, nil, zerolog.Logger{}, closer, err
	}

	var tablesConfig struct {
		Tables []models.Table `yaml:"tables"`
	}
	if err := yaml.Unmarshal(tablesData, &tablesConfig); err != nil {
		logger.Error().Err(err).Msg("Ошибка парсинга tables.yaml")
		return nil, nil, zerolog.Logger{}, closer, err
	}

	if err := config.ValidateTables(tablesConfig.Tables); err != nil {
		logger.Error().Err(err).Msg("Tables validation failed")
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, tablesConfig.Tables, logger, closer, nil
}

func initDatabase(cfg *config.Config, tables []models.Table, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return nil, err
	}

	if err := db.SyncTables(context.Background(), tables); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации столов")
	}
	return db, nil
}

func initPendingRegistry(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.PendingRegistry) {
	fallback := repository.NewMemoryPendingRegistry()
	if cfg.Redis.Address == "" {
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primary := repository.NewRedisPendingRegistry(redisClient, time.Duration(models.DefaultRedisTTL)*time.Second)
	return redisClient, repository.NewFailoverPendingRegistry(primary, fallback, logger)
}
