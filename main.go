package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Bames007/sauni/bootstrap"
	"github.com/Bames007/sauni/common/auth"
	apperrors "github.com/Bames007/sauni/common/errors"
	"github.com/Bames007/sauni/common/logger"
	"github.com/Bames007/sauni/common/middleware"
	"github.com/Bames007/sauni/config"
	"github.com/Bames007/sauni/controllers"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/routes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("Config load failed", zap.Error(err))
	}

	ctx := context.Background()
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var sink io.Writer
	if cfg.CloudWatchLogs && awsErr == nil {
		if cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.ServiceName); err == nil {
			sink = cw
		}
	}
	log, err := logger.New(cfg.AppEnv, sink)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	log = log.With(zap.String("service", cfg.ServiceName))

	if awsErr != nil {
		log.Warn("AWS config load failed; SNS, SQS, DynamoDB and CloudWatch are unavailable (non-fatal)", zap.Error(awsErr))
	} else if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
		log.Fatal("Config invalid after secrets override", zap.Error(err))
	}

	app, err := bootstrap.Build(ctx, cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Failed to build service", zap.Error(err))
	}

	checks := map[string]controllers.Pinger{"docstore": app.Backend.Ping}
	if app.DB != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	// Router
	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv != "production" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimit, cfg.RateBurst),
		middleware.Metrics(app.Metrics, cfg.ServiceName),
		apperrors.ErrorMiddleware(),
	)

	routes.RegisterRoutes(r, routes.Controllers{
		Payments: controllers.NewPaymentController(app.Payments),
		Webhooks: controllers.NewWebhookController(app.Webhooks),
		Admin:    controllers.NewAdminController(app.Payments, app.Outbox, log),
		Health:   controllers.NewHealthController(cfg.ServiceName, checks),
	}, auth.NewTokenManager(cfg.JWTSecret), cfg.RequestTimeout)

	// Background workers
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	var workers sync.WaitGroup
	if d := app.Dispatcher(); d != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			d.Run(workerCtx)
		}()
	}
	if c := app.VerifyConsumer(); c != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			c.Start(workerCtx)
		}()
	}

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("Admissions payment service started",
			zap.String("port", cfg.Port),
			zap.String("docstore", cfg.DocstoreDriver),
			zap.String("notify_mode", cfg.NotifyMode),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	workerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	workers.Wait()
	app.Close(shutdownCtx)

	log.Info("Admissions payment service stopped gracefully")
}
