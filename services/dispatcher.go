package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/sender"
	"go.uber.org/zap"
)

// DispatcherConfig tunes the outbox drain loop.
type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration // retry n waits n*Backoff
	Lease       time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Backoff <= 0 {
		c.Backoff = 30 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	return c
}

// Dispatcher delivers queued notifications from the outbox.
type Dispatcher struct {
	repo      repository.OutboxRepository
	sender    sender.EmailSender
	templates *Templates
	metrics   *awspkg.MetricsClient
	cfg       DispatcherConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(
	repo repository.OutboxRepository,
	emailSender sender.EmailSender,
	templates *Templates,
	metrics *awspkg.MetricsClient,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		sender:    emailSender,
		templates: templates,
		metrics:   metrics,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

// Run drains the outbox every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("max_attempts", d.cfg.MaxAttempts),
	)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("Outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce claims one batch of due rows and attempts each. It returns how
// many were sent and how many were given up on.
func (d *Dispatcher) DrainOnce(ctx context.Context) (sent, failed int, err error) {
	rows, err := d.repo.ClaimDue(ctx, d.now().UTC(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		sendErr := d.deliver(ctx, row)
		if sendErr == nil {
			if err := d.repo.MarkSent(ctx, row.ID, d.now().UTC()); err != nil {
				d.logger.Error("Failed to mark notification sent", zap.String("id", row.ID.String()), zap.Error(err))
			}
			recordCount(ctx, d.metrics, d.logger, awspkg.MetricNotificationsSent, nil)
			sent++
			continue
		}

		attempt := row.Attempts + 1
		log := d.logger.With(
			zap.String("id", row.ID.String()),
			zap.String("reference", row.Reference),
			zap.Int("attempt", attempt),
			zap.Error(sendErr),
		)
		recordCount(ctx, d.metrics, d.logger, awspkg.MetricNotificationsFailed, nil)

		if attempt >= d.cfg.MaxAttempts {
			log.Error("Notification failed permanently")
			if err := d.repo.MarkFailed(ctx, row.ID, sendErr.Error()); err != nil {
				log.Error("Failed to mark notification failed", zap.NamedError("mark_error", err))
			}
			failed++
			continue
		}

		next := d.now().UTC().Add(time.Duration(attempt) * d.cfg.Backoff)
		log.Warn("Notification send failed, will retry", zap.Time("next_attempt_at", next))
		if err := d.repo.MarkRetry(ctx, row.ID, sendErr.Error(), next); err != nil {
			log.Error("Failed to schedule notification retry", zap.NamedError("mark_error", err))
		}
	}
	return sent, failed, nil
}

func (d *Dispatcher) deliver(ctx context.Context, row *models.NotificationOutbox) error {
	switch row.Kind {
	case models.NotificationKindPaymentConfirmation:
		var c models.PaymentConfirmation
		if err := json.Unmarshal(row.Payload, &c); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		body, err := d.templates.RenderPaymentConfirmation(c)
		if err != nil {
			return err
		}
		result, err := d.sender.SendEmail(ctx, row.Recipient, row.Subject, body)
		if err != nil {
			return err
		}
		d.logger.Info("notification sent",
			zap.String("reference", row.Reference),
			zap.String("message_id", result.MessageID),
		)
		return nil
	default:
		return fmt.Errorf("unsupported notification kind: %s", row.Kind)
	}
}
