package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/benchmark"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/devicetokens"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/lots"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/notifications"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/sweep"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/welfare"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/metrics"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/migrate"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/push/expo"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/redis"
)

const lockKeyFormat = "ga:sweep-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	sweepMetrics := metrics.NewSweepJobMetrics(prometheus.DefaultRegisterer)

	gormDB := dbClient.DB()
	notifRepo := notifications.NewRepository(gormDB)
	tokenRepo := devicetokens.NewRepository(gormDB)
	pushSender := notifications.NewExpoSender(expo.NewClient(cfg.Push), cfg.Push.Timeout)

	pipeline, err := notifications.NewService(notifRepo, tokenRepo, pushSender, cfg.Pipeline, pipelineMetrics, logg, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification pipeline", err)
		os.Exit(1)
	}

	comparator, err := benchmark.NewComparator(benchmark.NewRepository(gormDB), cfg.Tiers)
	if err != nil {
		logg.Error(context.Background(), "failed to create benchmark comparator", err)
		os.Exit(1)
	}
	evaluator := welfare.NewEvaluator(cfg.Welfare, logg, nil)

	welfareJob, err := sweep.NewWelfareSweepJob(sweep.WelfareSweepJobParams{
		Logger:     logg,
		Lots:       lots.NewRepository(gormDB),
		Evaluator:  evaluator,
		Comparator: comparator,
		Pipeline:   pipeline,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create welfare sweep job", err)
		os.Exit(1)
	}

	cleanupJob, err := sweep.NewNotificationCleanupJob(sweep.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifRepo,
		Retention:  cfg.Pipeline.RetentionDays,
		BatchSize:  cfg.Pipeline.CleanupBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	expiryJob, err := sweep.NewNotificationExpiryJob(sweep.NotificationExpiryJobParams{
		Logger:     logg,
		Repository: notifRepo,
		BatchSize:  cfg.Pipeline.CleanupBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification expiry job", err)
		os.Exit(1)
	}

	lock, err := sweep.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := sweep.NewService(sweep.ServiceParams{
		Logger:   logg,
		Registry: sweep.NewRegistry(welfareJob, cleanupJob, expiryJob),
		Lock:     lock,
		Metrics:  sweepMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweep worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
