// Package bootstrap wires configuration into the service graph shared by the
// HTTP server and admissionsctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/Bames007/sauni/config"
	"github.com/Bames007/sauni/database"
	"github.com/Bames007/sauni/lock"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/providers"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/sender"
	"github.com/Bames007/sauni/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockPrefix = "sau:lock:"

// App is the assembled service graph.
type App struct {
	Config   *config.Config
	AWS      sdkaws.Config
	Logger   *zap.Logger
	Metrics  *awspkg.MetricsClient
	Backend  *database.Backend
	DB       *gorm.DB // nil when Postgres is not configured
	Repo     *repository.Repository
	Outbox   repository.OutboxRepository // nil unless NOTIFY_MODE=outbox
	Payments services.PaymentService
	Webhooks services.WebhookService
	Queue    *awspkg.SQSConsumer // nil unless VERIFY_QUEUE_URL is set
	Sender   sender.EmailSender
	Tmpl     *services.Templates

	lockRedis *redis.Client
}

// Build opens every backing store named by cfg and constructs the services.
// The caller owns the returned App and must Close it.
func Build(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, AWS: awsCfg, Logger: logger, Metrics: awspkg.NewMetricsClient(awsCfg)}

	backend, err := database.OpenDocstore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}
	app.Backend = backend
	app.Repo = repository.New(backend.Store)

	if cfg.PostgresConfigured() {
		db, err := database.ConnectPostgres(cfg, logger, database.Models()...)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.DB = db
	} else {
		logger.Info("Postgres not configured; webhook receipts are not persisted")
	}

	app.Tmpl, err = services.LoadTemplates()
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.Sender, err = NewEmailSender(cfg, logger)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("email sender: %w", err)
	}

	var notifier services.Notifier
	if cfg.NotifyMode == config.NotifyOutbox {
		app.Outbox = repository.NewGormOutboxRepository(app.DB)
		notifier = services.NewOutboxNotifier(app.Outbox)
	} else {
		notifier = services.NewDirectNotifier(app.Sender, app.Tmpl, logger)
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	var publisher awspkg.SNSPublisher
	if cfg.PaymentSNSTopicARN != "" {
		publisher = awspkg.NewSNSClient(awsCfg)
	}

	gateway := providers.NewPaystackProvider(cfg.PaystackSecretKey, cfg.PaystackBaseURL, cfg.PaystackTimeout)
	app.Payments = services.NewPaymentService(app.Repo, gateway, notifier, locker, publisher,
		cfg.PaymentSNSTopicARN, app.Metrics, logger)

	var verifyQueue services.VerifyQueue
	if cfg.VerifyQueueURL != "" {
		app.Queue = awspkg.NewSQSConsumer(awsCfg, cfg.VerifyQueueURL, logger)
		verifyQueue = app.Queue
	}

	var webhookLogs repository.WebhookLogRepository
	if app.DB != nil {
		webhookLogs = repository.NewGormWebhookLogRepository(app.DB)
	}
	app.Webhooks = services.NewWebhookService(gateway, app.Repo.Payments, webhookLogs, app.Payments, verifyQueue, logger)

	return app, nil
}

// Dispatcher returns the outbox drain loop, or nil in direct mode.
func (a *App) Dispatcher() *services.Dispatcher {
	if a.Outbox == nil {
		return nil
	}
	return services.NewDispatcher(a.Outbox, a.Sender, a.Tmpl, a.Metrics, services.DispatcherConfig{
		Interval:    a.Config.OutboxInterval,
		MaxAttempts: a.Config.OutboxMaxAttempts,
	}, a.Logger)
}

// VerifyConsumer returns the SQS consumer, or nil without a queue.
func (a *App) VerifyConsumer() *services.VerifyRequestConsumer {
	if a.Queue == nil {
		return nil
	}
	return services.NewVerifyRequestConsumer(a.Queue, a.Payments, a.Metrics, a.Logger)
}

// Close releases every connection Build opened.
func (a *App) Close(ctx context.Context) {
	if a.Backend != nil {
		if err := a.Backend.Close(ctx); err != nil {
			a.Logger.Warn("Error closing docstore", zap.Error(err))
		}
	}
	if a.lockRedis != nil {
		_ = a.lockRedis.Close()
	}
	if err := database.ClosePostgres(a.DB); err != nil {
		a.Logger.Warn("Error closing postgres", zap.Error(err))
	}
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.LockDriver != config.LockRedis {
		return lock.NewKeyedMutex(), nil
	}
	client := a.Backend.Redis
	if client == nil {
		c, err := database.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis locker: %w", err)
		}
		a.lockRedis = c
		client = c
	}
	return lock.NewRedisLocker(client, lockPrefix, a.Config.LockTTL), nil
}

// NewEmailSender picks the provider named by EMAIL_PROVIDER.
func NewEmailSender(cfg *config.Config, logger *zap.Logger) (sender.EmailSender, error) {
	switch cfg.EmailProvider {
	case config.EmailZepto:
		return sender.NewZeptoSender(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	case config.EmailSMTP:
		return sender.NewSMTPSender(sender.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	default:
		return sender.NewLogSender(logger), nil
	}
}
