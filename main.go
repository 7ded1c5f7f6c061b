package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awspkg "github.com/scotthooker/commerce-stripe/aws"
	"github.com/scotthooker/commerce-stripe/config"
	"github.com/scotthooker/commerce-stripe/controllers"
	"github.com/scotthooker/commerce-stripe/database"
	"github.com/scotthooker/commerce-stripe/idempotency"
	"github.com/scotthooker/commerce-stripe/kafka"
	"github.com/scotthooker/commerce-stripe/logger"
	"github.com/scotthooker/commerce-stripe/middleware"
	"github.com/scotthooker/commerce-stripe/providers"
	"github.com/scotthooker/commerce-stripe/repository"
	"github.com/scotthooker/commerce-stripe/routes"
	"github.com/scotthooker/commerce-stripe/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "payment-gateway"

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatal("[PaymentGateway] ❌ Failed to load config:", err)
	}

	// AWS is optional locally; without it SNS, metrics and log shipping are off.
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpoint)

	var shipper io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil && cfg.CloudWatchLogGroup != "" {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Println("[PaymentGateway] CloudWatch Logs unavailable:", err)
		} else {
			shipper = cw
		}
	}

	zlog, err := logger.New(cfg.Env, shipper)
	if err != nil {
		log.Fatal("[PaymentGateway] ❌ Failed to initialize logger:", err)
	}
	defer zlog.Sync() //nolint:errcheck

	db, err := database.ConnectPostgres(cfg.DSN(), zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zlog.Warn("Redis unavailable, idempotency keys are process-local", zap.Error(err))
		} else {
			defer rdb.Close() //nolint:errcheck
			idemStore = idempotency.NewRedisStore(rdb, 24*time.Hour)
		}
	}

	// Payment events fan out to every configured sink
	var publishers services.MultiEventPublisher
	var metrics awspkg.MetricsRecorder
	if awsErr != nil {
		zlog.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(awsErr))
	} else {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)
		if cfg.PaymentSNSTopicARN != "" {
			publishers = append(publishers, services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN))
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.PaymentEventsTopic, zlog)
		defer producer.Close() //nolint:errcheck
		publishers = append(publishers, producer)
	}

	// Provider and DI chain
	gwCfg := cfg.Gateway()
	provider := providers.NewStripeProvider(gwCfg.SecretKey, zlog)
	paymentRepo := repository.NewGormPaymentRepository(db)
	methodRepo := repository.NewGormPaymentMethodRepository(db)
	accountRepo := repository.NewGormAccountRepository(db)

	gateway := services.NewStripeGateway(
		gwCfg,
		services.NewPaymentService(provider, paymentRepo, publishers, zlog),
		services.NewPaymentMethodService(provider, methodRepo, accountRepo, zlog),
	)
	pc := &controllers.PaymentController{
		Gateway:  gateway,
		Config:   gwCfg,
		Payments: paymentRepo,
		Methods:  methodRepo,
		Accounts: accountRepo,
		Metrics:  metrics,
		Logger:   zlog,
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(zlog), middleware.SecurityHeaders())
	if metrics != nil {
		r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	}
	r.Use(middleware.Timeout(30 * time.Second))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName, "mode": gwCfg.Mode})
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	limiter.StartPruning(runCtx, 10*time.Minute)
	routes.RegisterPaymentRoutes(r, pc,
		middleware.RateLimitMiddleware(limiter),
		idempotency.Middleware(idemStore, func(c *gin.Context) string {
			return middleware.GetUserID(c).String()
		}, zlog),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Payment gateway started", zap.String("port", cfg.Port), zap.String("mode", gwCfg.Mode))
	<-quit
	zlog.Info("Shutting down payment gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}
