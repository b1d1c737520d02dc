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
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/measurements"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/notifications"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/welfare"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/idempotency"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/metrics"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/pubsub"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/push/expo"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "measurement-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "measurement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "measurement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	gormDB := dbClient.DB()
	notifRepo := notifications.NewRepository(gormDB)
	tokenRepo := devicetokens.NewRepository(gormDB)
	pushSender := notifications.NewExpoSender(expo.NewClient(cfg.Push), cfg.Push.Timeout)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	pipeline, err := notifications.NewService(notifRepo, tokenRepo, pushSender, cfg.Pipeline, pipelineMetrics, logg, nil)
	requireResource(ctx, logg, "notification pipeline", err)

	comparator, err := benchmark.NewComparator(benchmark.NewRepository(gormDB), cfg.Tiers)
	requireResource(ctx, logg, "benchmark comparator", err)

	consumer, err := measurements.NewConsumer(measurements.ConsumerParams{
		Lots:         lots.NewRepository(gormDB),
		Evaluator:    welfare.NewEvaluator(cfg.Welfare, logg, nil),
		Comparator:   comparator,
		Pipeline:     pipeline,
		Subscription: pubsubClient.MeasurementSubscription(),
		Idempotency:  idempotencyManager,
		Logger:       logg,
	})
	requireResource(ctx, logg, "measurement consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "measurement worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "measurement worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
