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
	"github.com/kursadbilgin/notification-fanout/internal/config"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/kursadbilgin/notification-fanout/internal/handler"
	"github.com/kursadbilgin/notification-fanout/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/notification-fanout/internal/infra/redis"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/queue"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"github.com/kursadbilgin/notification-fanout/internal/sender"
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

	registry, err := buildSenderRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("sender initialization failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, cfg.ChannelRateLimits())
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	notifications := repository.NewGormNotificationRepo(db)
	deliveries := repository.NewGormDeliveryRepo(db)

	dispatcher, err := service.NewDispatcher(notifications, deliveries, registry, rateLimiter, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	if ttl := cfg.LeaseTTL(); ttl > 0 {
		locker, err := infraredis.NewRedisLocker(rdb)
		if err != nil {
			logger.Fatal("dispatch lease initialization failed", zap.Error(err))
		}
		dispatcher.SetLocker(locker, ttl)
	}

	publisher := queue.NewRabbitMQPublisher(rabbit)
	// One consumer channel per worker goroutine, each holding a single unacked job.
	consumer := queue.NewRabbitMQConsumer(rabbit, 1, logger)

	worker, err := service.NewWorkerService(
		dispatcher,
		consumer,
		publisher,
		service.RetryPolicy{MaxRetries: cfg.DispatchMaxRetries, BaseDelay: cfg.RetryBaseDelay()},
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notification-fanout worker started",
			zap.Int("concurrency", cfg.WorkerConcurrency),
			zap.Int("maxRetries", cfg.DispatchMaxRetries),
			zap.Strings("channels", channelNames(registry.Channels())),
		)
		return worker.Start(groupCtx)
	})

	if cfg.WorkerPort > 0 {
		app := fiber.New(fiber.Config{
			ErrorHandler:          transport.ErrorHandler(logger),
			DisableStartupMessage: true,
		})
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
		handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)

		g.Go(func() error {
			return app.Listen(fmt.Sprintf(":%d", cfg.WorkerPort))
		})
		g.Go(func() error {
			<-groupCtx.Done()
			return app.ShutdownWithTimeout(shutdownTimeout)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	logger.Info("worker shut down")
}

// buildSenderRegistry registers a sender for every configured channel. A
// channel without settings stays unregistered and its attempts fail as
// unsupported. Dry-run registers a log-only sender for every known channel.
func buildSenderRegistry(cfg *config.Config, logger *zap.Logger) (*sender.Registry, error) {
	registry := sender.NewRegistry()

	if cfg.DeliveryDryRun {
		for _, channel := range domain.KnownChannels {
			registry.MustRegister(channel, sender.NewLogSender(channel, logger))
		}
		return registry, nil
	}

	if cfg.SMSGatewayURL != "" {
		sms, err := sender.NewSMSSender(cfg.SMSGatewayURL)
		if err != nil {
			return nil, fmt.Errorf("sms sender: %w", err)
		}
		if err := registry.Register(domain.ChannelSMS, sms); err != nil {
			return nil, err
		}
	}

	if cfg.PostmarkServerToken != "" {
		email, err := sender.NewEmailSender(sender.EmailConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			From:         cfg.EmailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		if err := registry.Register(domain.ChannelEmail, email); err != nil {
			return nil, err
		}
	}

	if cfg.TelegramBotToken != "" {
		telegram, err := sender.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("telegram sender: %w", err)
		}
		if err := registry.Register(domain.ChannelTelegram, telegram); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func channelNames(channels []domain.Channel) []string {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.String())
	}
	return names
}
