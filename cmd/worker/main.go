// Package main runs the background worker: transactional email delivery and
// stale transaction reconciliation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/discounts"
	"github.com/learnhub/backend/internal/enrollments"
	"github.com/learnhub/backend/internal/notifications"
	"github.com/learnhub/backend/internal/payments"
	"github.com/learnhub/backend/internal/worker"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/events"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
	"github.com/learnhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.ReceiptsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReceiptsBucket:       cfg.AWS.ReceiptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer publisher.Close()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		logger.Fatal("payment provider", zap.Error(err))
	}

	authRepo := auth.NewRepository(pool)
	courseRepo := courses.NewRepository(pool)
	discountRepo := discounts.NewRepository(pool)
	enrollmentRepo := enrollments.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	var receiptStore payments.ReceiptStore
	if s3Client != nil {
		receiptStore = s3Client
	}
	paymentSvc := payments.NewService(cfg, payments.NewRepository(pool), courseRepo,
		discountRepo, enrollmentRepo, authRepo, provider, receiptStore, jobQueue, publisher, logger)

	mailer := notifications.NewMailer(cfg.Email, logger)
	emailRepo := notifications.NewRepository(pool)
	processor := worker.NewProcessor(paymentSvc, authRepo, mailer, emailRepo, jobQueue, logger)

	reconciler := worker.NewReconciler(paymentSvc, jobQueue,
		time.Duration(cfg.Worker.ReconcileAfterMinutes)*time.Minute,
		time.Duration(cfg.Worker.ReconcileIntervalSecs)*time.Second,
		logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go reconciler.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

// buildProvider mirrors the server's provider selection so reconciliation
// talks to the same gateway.
func buildProvider(cfg *config.Config, logger *zap.Logger) (payments.Provider, error) {
	var p payments.Provider
	switch cfg.Gateway.Provider {
	case "razorpay":
		rp, err := payments.NewRazorpayProvider(cfg.Gateway.Razorpay)
		if err != nil {
			return nil, err
		}
		p = rp
	default:
		p = payments.NewMockProvider(cfg.Gateway.MockSecret, cfg.App.BaseURL)
	}
	timeout := time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second
	return payments.WithBreaker(p, timeout, logger), nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
