package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/visibility/internal/api"
	"github.com/jonesrussell/north-cloud/visibility/internal/cache"
	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/database"
	"github.com/jonesrussell/north-cloud/visibility/internal/intent"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/visibility/internal/schedule"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	log = log.With(logger.String("service", cfg.Service.Name))
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()
	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.String("database", cfg.Database.Database))

	ctx := context.Background()

	redisClient, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		return 1
	}
	defer func() { _ = redisClient.Close() }()

	registry, err := connectors.NewRegistry(ctx, cfg.Providers, log)
	if err != nil {
		log.Error("Failed to build provider registry", logger.Error(err))
		return 1
	}
	log.Info("Providers ready", logger.Strings("enabled", registry.Enabled()))

	return runService(ctx, cfg, log, db, redisClient, registry)
}

func runService(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	db *sqlx.DB,
	redisClient *redis.Client,
	registry *connectors.Registry,
) int {
	tel := telemetry.NewProvider()

	runs := database.NewRunRepository(db)
	intents := database.NewIntentRepository(db)
	results := database.NewResultRepository(db)
	answerCache := cache.NewAnswerCache(redisClient, cfg.Visibility.CacheTTL, log)
	validator := citations.NewValidator(log, citations.WithBudget(cfg.Visibility.ProbeBudget))

	executor := orchestrator.NewExecutor(
		runs, intents, results, answerCache, registry, validator,
		cfg.Visibility, tel, log)
	worker := orchestrator.NewWorker(
		runs, executor,
		cfg.Visibility.PollInterval, cfg.Visibility.RunTimeout,
		tel, log)
	worker.Start(ctx)
	defer worker.Stop()

	service := orchestrator.NewRunService(runs, intents, intent.NewSiteFetcher(log), cfg.Visibility, tel, log)

	scheduler, err := schedule.New(service, cfg.Schedules, log)
	if err != nil {
		log.Error("Failed to build scheduler", logger.Error(err))
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	handlers := api.NewHandlers(runs, results, service, log)
	server := api.NewServer(cfg, handlers, tel, log)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info("Visibility service starting",
		logger.Int("port", cfg.Service.Port),
		logger.Bool("enabled", cfg.Visibility.Enabled))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", logger.Error(err))
			return 1
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", logger.Error(err))
		return 1
	}

	log.Info("Visibility service exited cleanly")
	return 0
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}
