package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labkiosk/internal/api"
	"labkiosk/internal/config"
	"labkiosk/internal/database"
	"labkiosk/internal/domain"
	"labkiosk/internal/events"
	"labkiosk/internal/logging"
	"labkiosk/internal/metrics"
	"labkiosk/internal/models"
	"labkiosk/internal/notify"
	"labkiosk/internal/repository"
	"labkiosk/internal/service"
	"labkiosk/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := seedLabs(cfg, db, &logger); err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	stateRepo := initStateRepo(redisClient, &logger)

	notifier := initNotifier(cfg, &logger)
	notifyWorker := worker.NewNotifyWorker(db, notifier, redisClient, worker.RetryPolicy{}, &logger)

	eventBus := events.NewEventBus()
	authz := service.NewRoleAuthorizer(db, &logger)
	bookings := service.NewBookingService(db, authz, eventBus, notifyWorker, &logger)
	qr := service.NewQRService(db, authz, cfg.App.BaseURL, cfg.Kiosk.TokenTTLMinutes, &logger)
	kiosk := service.NewKioskService(db, stateRepo, eventBus, cfg.Kiosk, &logger)

	httpServer := api.NewHTTPServer(cfg.API, db, bookings, qr, kiosk, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go notifyWorker.Start(ctx)

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("labkiosk started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("labkiosk stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// seedLabs заливает каталог лабораторий из конфига в пустую базу.
func seedLabs(cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	if len(cfg.Labs) == 0 {
		return nil
	}

	ctx := context.Background()
	existing, err := db.GetActiveLabs(ctx)
	if err != nil {
		return fmt.Errorf("read labs: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for i := range cfg.Labs {
		lab := cfg.Labs[i]
		lab.IsActive = true
		if err := db.CreateLab(ctx, &lab); err != nil {
			return fmt.Errorf("seed lab %q: %w", lab.Name, err)
		}
	}
	logger.Info().Int("labs", len(cfg.Labs)).Msg("seeded lab catalog from config")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStateRepo строит хранилище состояния киосков: redis с памятью как
// запасным вариантом, либо чистая память, когда redis не настроен.
func initStateRepo(redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	ttl := time.Duration(models.KioskStateTTL) * time.Second
	memory := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return memory
	}

	primary := repository.NewRedisStateRepository(redisClient, ttl)
	return repository.NewFailoverStateRepository(primary, memory, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled {
		return notify.NewLogNotifier(logger)
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, falling back to log notifier")
		return notify.NewLogNotifier(logger)
	}
	return notifier
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
