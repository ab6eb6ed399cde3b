package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/cron"
	"github.com/chitcircle/chitcircle-backend/internal/cycles"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/internal/stats"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/config"
	"github.com/chitcircle/chitcircle-backend/pkg/db"
	"github.com/chitcircle/chitcircle-backend/pkg/instance"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/metrics"
	"github.com/chitcircle/chitcircle-backend/pkg/migrate"
	"github.com/chitcircle/chitcircle-backend/pkg/redis"
)

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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	clk := clock.System{}

	groupRepo := groups.NewRepository(dbClient.DB())
	memberRepo := members.NewRepository(dbClient.DB())
	cycleRepo := cycles.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	penaltyRepo := penalties.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())
	statsRepo := stats.NewRepository(dbClient.DB())

	auditService, err := audit.NewService(auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notificationRepo, logg, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	cycleService, err := cycles.NewService(cycleRepo, dbClient, groupRepo, auditService, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create cycle service", err)
		os.Exit(1)
	}

	penaltyService, err := penalties.NewService(penaltyRepo, dbClient, paymentRepo, memberRepo, groupRepo, auditService, notificationService, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create penalty service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(paymentRepo, dbClient, memberRepo, groupRepo, cycleRepo, groupRepo, penaltyService, cycleService, auditService, notificationService, logg, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	statsService, err := stats.NewService(statsRepo, dbClient, groupRepo, memberRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)

	graceJob, err := cron.NewGracePeriodJob(cron.GracePeriodJobParams{
		Logger:   logg,
		Cycles:   cycleRepo,
		Payments: paymentService,
		Metrics:  sweepMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create grace period job", err)
		os.Exit(1)
	}

	readinessJob, err := cron.NewCycleReadinessJob(cron.CycleReadinessJobParams{
		Logger: logg,
		Cycles: cycleRepo,
		Checks: cycleService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cycle readiness job", err)
		os.Exit(1)
	}

	overdueJob, err := cron.NewOverdueCycleJob(cron.OverdueCycleJobParams{
		Logger:    logg,
		Cycles:    cycleRepo,
		Completer: cycleService,
		Metrics:   sweepMetrics,
		GraceDays: cfg.Engine.OverdueCycleGraceDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue cycle job", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:  logg,
		Groups:  groupRepo,
		Stats:   statsService,
		Metrics: sweepMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(graceJob, readinessJob, overdueJob, reconcileJob),
		Lock:     lock,
		Metrics:  sweepMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
