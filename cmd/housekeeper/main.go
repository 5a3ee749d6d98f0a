package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seramic/shop-backend/internal/housekeeping"
	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "housekeeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "housekeeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "housekeeper stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "housekeeper shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := housekeeping.NewRedisLock(redisClient, redisClient.LockKey("housekeeping:"+env), cfg.Housekeeping.LockTTL)
	if err != nil {
		return err
	}

	retention, err := housekeeping.NewOutboxRetentionJob(housekeeping.OutboxRetentionParams{
		Logger:    logg,
		Outbox:    outbox.NewRepository(dbClient.DB()),
		Retention: cfg.Housekeeping.OutboxRetention,
	})
	if err != nil {
		return err
	}
	sweep, err := housekeeping.NewAccountSweepJob(logg, users.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	svc, err := housekeeping.NewService(housekeeping.ServiceParams{
		Logger:   logg,
		Registry: housekeeping.NewRegistry(retention, sweep),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Housekeeping.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Housekeeping.Interval.String(),
	}), "starting housekeeper")
	return svc.Run(ctx)
}
