package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/chitcircle/chitcircle-backend/api/routes"
	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/cycles"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/internal/payouts"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/config"
	"github.com/chitcircle/chitcircle-backend/pkg/db"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/migrate"
	"github.com/chitcircle/chitcircle-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	payoutRepo := payouts.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

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

	groupService, err := groups.NewService(groupRepo, dbClient, memberRepo, cycleRepo, paymentRepo, auditService, notificationService, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}

	memberService, err := members.NewService(memberRepo, dbClient, groupRepo, auditService, notificationService)
	if err != nil {
		logg.Error(context.Background(), "failed to create member service", err)
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

	payoutService, err := payouts.NewService(payoutRepo, dbClient, groupRepo, memberRepo, cycleRepo, cycleService, paymentRepo, paymentService, penaltyService, auditService, notificationService, logg, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			groupService,
			memberService,
			paymentService,
			penaltyService,
			payoutService,
			notificationService,
			auditService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
