package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/notification-fanout/internal/config"
	"github.com/kursadbilgin/notification-fanout/internal/handler"
	"github.com/kursadbilgin/notification-fanout/internal/infra/postgresql"
	"github.com/kursadbilgin/notification-fanout/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notification-fanout/internal/infra/redis"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/queue"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"github.com/kursadbilgin/notification-fanout/internal/service"
	"github.com/kursadbilgin/notification-fanout/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	notifications := repository.NewGormNotificationRepo(db)
	deliveries := repository.NewGormDeliveryRepo(db)
	metrics := observability.NewMetrics()

	notificationService, err := service.NewNotificationService(notifications, deliveries, publisher, logger)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}

	sweeper, err := service.NewPendingSweeper(notifications, publisher, cfg.SweepInterval(), cfg.SweepStaleAfter(), logger)
	if err != nil {
		logger.Fatal("pending sweeper initialization failed", zap.Error(err))
	}
	sweeper.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)
	if err := handler.RegisterNotificationRoutes(app, notificationService, logger); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notification-fanout api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
	}
}
