package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tirestore-backend/internal/cron"
	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/instance"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/metrics"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	"github.com/angelmondragon/tirestore-backend/pkg/redis"
	"github.com/angelmondragon/tirestore-backend/pkg/sheets"
	"github.com/angelmondragon/tirestore-backend/pkg/storage/gcs"
)

const lockKeyFormat = "tirestore:scheduler:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	closeAll := func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}
	fail := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		closeAll()
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail("failed to bootstrap database", err)
	}
	closers = append(closers, dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		fail("failed to bootstrap redis", err)
	}
	closers = append(closers, redisClient.Close)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		fail("failed to bootstrap gcs", err)
	}

	publisher, closePublisher, err := pubsub.NewPublisher(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		fail("failed to bootstrap pubsub", err)
	}
	closers = append(closers, closePublisher)

	ledgerService := ledger.NewDisabledService()
	if cfg.FeatureFlags.LedgerEnabled {
		sheetsClient, err := sheets.NewClient(ctx, cfg.Sheets, cfg.GCP, logg)
		if err != nil {
			fail("failed to bootstrap sheets", err)
		}
		ledgerRepo, err := ledger.NewSheetRepository(sheetsClient)
		if err != nil {
			fail("failed to create ledger repository", err)
		}
		if ledgerService, err = ledger.NewService(ledgerRepo); err != nil {
			fail("failed to create ledger service", err)
		}
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:          orders.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		Objects:       gcsClient,
		Ledger:        ledgerService,
		Publisher:     publisher,
		Metrics:       metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
		PaymentWindow: cfg.Orders.PaymentWindow,
		SlipMaxBytes:  cfg.Orders.SlipMaxBytes,
		SlipPrefix:    cfg.GCS.SlipPrefix,
	})
	if err != nil {
		fail("failed to create order service", err)
	}

	expiryJob, err := cron.NewOrderExpiryJob(orderService, logg)
	if err != nil {
		fail("failed to create order expiry job", err)
	}

	lock, err := redis.NewLock(redisClient, lockKey(cfg.App.Env), cfg.Scheduler.LockTTL)
	if err != nil {
		fail("failed to create scheduler lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Scheduler.Interval,
	})
	if err != nil {
		fail("failed to create scheduler", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Scheduler.Interval.String(),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail("cron worker stopped unexpectedly", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
	closeAll()
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
