// Package main runs the LearnHub payments and course platform HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/discounts"
	"github.com/learnhub/backend/internal/enrollments"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/mockgateway"
	"github.com/learnhub/backend/internal/notifications"
	"github.com/learnhub/backend/internal/payments"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/events"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
	"github.com/learnhub/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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
		} else {
			logger.Info("receipt storage enabled",
				zap.String("bucket", s3Client.ReceiptsBucket()))
		}
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer publisher.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		logger.Fatal("payment provider", zap.Error(err))
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Courses
	courseRepo := courses.NewRepository(pool)
	courseHandler := courses.NewHandler(courseRepo, logger)

	// Discounts
	discountRepo := discounts.NewRepository(pool)
	discountHandler := discounts.NewHandler(discountRepo, courseRepo, logger)

	// Enrollments
	enrollmentRepo := enrollments.NewRepository(pool)
	enrollmentHandler := enrollments.NewHandler(enrollmentRepo, courseRepo, logger)

	// Payments
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var receiptStore payments.ReceiptStore
	if s3Client != nil {
		receiptStore = s3Client
	}
	paymentSvc := payments.NewService(cfg, payments.NewRepository(pool), courseRepo,
		discountRepo, enrollmentRepo, authRepo, provider, receiptStore, jobQueue, publisher, logger)
	paymentHandler := payments.NewHandler(paymentSvc, logger)

	// Email logs
	emailRepo := notifications.NewRepository(pool)
	emailHandler := notifications.NewHandler(emailRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Middleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Public catalog
	router.GET("/api/courses", courseHandler.List)
	router.GET("/api/courses/:id", courseHandler.Get)

	// Gateway callback and webhook carry their own authentication: the
	// callback a signature over its parameters, the webhook an HMAC header.
	router.GET("/api/payment/callback", paymentHandler.Callback)
	router.POST("/api/payment/webhook", paymentHandler.Webhook)

	// Local gateway stand-in, development only. config.Load already refuses
	// the mock provider in production; this guard keeps the pages off prod
	// routers regardless of provider.
	if !cfg.App.IsProduction() {
		mockHandler := mockgateway.NewHandler(cfg.Gateway.MockSecret, 2*time.Second, logger)
		router.GET("/mock-gateway/pay", mockHandler.Pay)
		router.GET("/mock-gateway/simulate", mockHandler.Simulate)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Course management
		api.POST("/courses", middleware.RequireRole("admin", "university"), courseHandler.Create)
		api.PATCH("/courses/:id", middleware.RequireRole("admin", "university"), courseHandler.Update)
		// Not under /courses: a static "mine" segment would clash with the
		// public ":id" wildcard in gin's route tree.
		api.GET("/my/courses", middleware.RequireRole("admin", "university"), courseHandler.Mine)

		// Discounts
		api.POST("/discount/validate", discountHandler.Validate)
		api.POST("/discounts", middleware.RequireRole("admin", "partner"), discountHandler.Create)
		api.GET("/discounts", middleware.RequireRole("admin", "partner"), discountHandler.List)
		api.DELETE("/discounts/:id", middleware.RequireRole("admin", "partner"), discountHandler.Deactivate)

		// Payments
		api.POST("/payment/initiate", paymentHandler.Initiate)
		api.GET("/payment/status/:transactionId", paymentHandler.Status)
		api.GET("/payment/receipt/:transactionId", paymentHandler.Receipt)
		api.GET("/payment/transactions", paymentHandler.Transactions)
		api.POST("/payment/refund/:transactionId", middleware.RequireRole("admin", "finance"), paymentHandler.Refund)

		// Enrollments
		api.GET("/enrollments", enrollmentHandler.List)
		api.GET("/enrollments/:courseId", enrollmentHandler.Get)
		api.POST("/enrollments/:courseId/progress", enrollmentHandler.Progress)

		// Email delivery audit
		api.GET("/notifications/emails", middleware.RequireRole("admin", "finance"), emailHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// buildProvider selects the gateway from config and wraps it with the
// circuit breaker.
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
