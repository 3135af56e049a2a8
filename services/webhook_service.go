package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/providers"
	"github.com/Bames007/sauni/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// VerifyQueue accepts verification requests for asynchronous processing.
type VerifyQueue interface {
	SendMessage(ctx context.Context, body string) error
}

// WebhookService handles signed gateway callbacks.
type WebhookService interface {
	HandlePaystack(ctx context.Context, body []byte, signature string) *ServiceError
}

type webhookServiceImpl struct {
	gateway  providers.PaymentGateway
	payments repository.PaymentRepository
	logs     repository.WebhookLogRepository
	svc      PaymentService
	queue    VerifyQueue
	logger   *zap.Logger
}

// NewWebhookService creates a WebhookService. logs and queue may be nil:
// receipts are then not persisted and reconciliation runs inline.
func NewWebhookService(
	gateway providers.PaymentGateway,
	payments repository.PaymentRepository,
	logs repository.WebhookLogRepository,
	svc PaymentService,
	queue VerifyQueue,
	logger *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		gateway:  gateway,
		payments: payments,
		logs:     logs,
		svc:      svc,
		queue:    queue,
		logger:   logger,
	}
}

// HandlePaystack authenticates the callback and reconciles charge.success
// events against the stored record's amount. Only internal failures and
// contention return an error, so the gateway redelivers.
func (s *webhookServiceImpl) HandlePaystack(ctx context.Context, body []byte, signature string) *ServiceError {
	if signature == "" || !s.gateway.VerifyWebhookSignature(body, signature) {
		s.logger.Warn("Rejected webhook with invalid signature")
		return &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Invalid signature"}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("Invalid webhook payload", zap.Error(err))
		return badRequest("Invalid webhook payload")
	}

	receipt := s.saveReceipt(ctx, &event, body)
	log := s.logger.With(zap.String("event", event.Event), zap.String("reference", event.Data.Reference))

	if event.Event != models.WebhookEventChargeSuccess || event.Data.Reference == "" {
		log.Info("Ignoring webhook event")
		s.setOutcome(ctx, receipt, models.WebhookOutcomeIgnored)
		return nil
	}

	rec, err := s.payments.Get(ctx, event.Data.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Webhook for unknown reference, ignoring")
		s.setOutcome(ctx, receipt, models.WebhookOutcomeIgnored)
		return nil
	}
	if err != nil {
		log.Error("Failed to load payment for webhook", zap.Error(err))
		s.setOutcome(ctx, receipt, models.WebhookOutcomeError)
		return internalError("Failed to process webhook")
	}
	if rec.Status == models.PaymentStatusSuccess {
		log.Info("Payment already verified, ignoring webhook")
		s.setOutcome(ctx, receipt, models.WebhookOutcomeIgnored)
		return nil
	}

	// The stored record owns the student; metadata only fills a gap.
	prospectiveID := rec.ProspectiveID
	if meta := event.Data.ProspectiveID(); meta != "" && meta != prospectiveID {
		if prospectiveID == "" {
			prospectiveID = meta
		} else {
			log.Warn("Webhook prospective ID differs from stored record",
				zap.String("metadata_prospective_id", meta),
				zap.String("stored_prospective_id", rec.ProspectiveID),
			)
		}
	}
	req := &models.VerifyRequest{
		Reference:     event.Data.Reference,
		ProspectiveID: prospectiveID,
		Email:         rec.Email,
		Amount:        rec.Amount,
		Source:        "webhook",
	}

	if s.queue != nil {
		b, _ := json.Marshal(req)
		if err := s.queue.SendMessage(ctx, string(b)); err != nil {
			log.Error("Failed to enqueue verify request", zap.Error(err))
			s.setOutcome(ctx, receipt, models.WebhookOutcomeError)
			return internalError("Failed to process webhook")
		}
		s.setOutcome(ctx, receipt, models.WebhookOutcomeQueued)
		return nil
	}

	if _, svcErr := s.svc.Verify(ctx, req); svcErr != nil {
		if svcErr.StatusCode != http.StatusBadRequest {
			s.setOutcome(ctx, receipt, models.WebhookOutcomeError)
			return svcErr
		}
		log.Info("Webhook reconciliation finished without success", zap.String("message", svcErr.Message))
	}
	s.setOutcome(ctx, receipt, models.WebhookOutcomeReconciled)
	return nil
}

func (s *webhookServiceImpl) saveReceipt(ctx context.Context, event *models.WebhookEvent, body []byte) *models.WebhookLog {
	if s.logs == nil {
		return nil
	}
	receipt := &models.WebhookLog{
		Event:     event.Event,
		Reference: event.Data.Reference,
		Payload:   datatypes.JSON(body),
		Outcome:   models.WebhookOutcomeReceived,
	}
	if err := s.logs.Create(ctx, receipt); err != nil {
		s.logger.Error("Failed to save webhook receipt", zap.Error(err))
		return nil
	}
	return receipt
}

func (s *webhookServiceImpl) setOutcome(ctx context.Context, receipt *models.WebhookLog, outcome string) {
	if receipt == nil {
		return
	}
	if err := s.logs.SetOutcome(ctx, receipt.ID, outcome, time.Now().UTC()); err != nil {
		s.logger.Warn("Failed to update webhook receipt", zap.String("outcome", outcome), zap.Error(err))
	}
}
