package services

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"go.uber.org/zap"
)

// MessagePoller is the part of awspkg.SQSConsumer the consumer needs.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// VerifyRequestConsumer reconciles verification requests taken off SQS.
type VerifyRequestConsumer struct {
	poller  MessagePoller
	svc     PaymentService
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
}

func NewVerifyRequestConsumer(poller MessagePoller, svc PaymentService, metrics *awspkg.MetricsClient, logger *zap.Logger) *VerifyRequestConsumer {
	return &VerifyRequestConsumer{poller: poller, svc: svc, metrics: metrics, logger: logger}
}

func (c *VerifyRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting VerifyRequestConsumer (SQS)")

	err := c.poller.StartPolling(ctx, c.Handle)
	if err != nil && err != context.Canceled {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

// Handle processes one message. Business outcomes (400) consume the message;
// contention and internal failures leave it for redelivery.
func (c *VerifyRequestConsumer) Handle(ctx context.Context, body string) error {
	var req models.VerifyRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Invalid verify request JSON, dropping", zap.Error(err))
		return nil
	}
	if req.Source == "" {
		req.Source = "queue"
	}

	result, svcErr := c.svc.Verify(ctx, &req)
	recordCount(ctx, c.metrics, c.logger, awspkg.MetricSQSMessages, map[string]string{"Queue": "verify"})

	if svcErr != nil {
		if svcErr.StatusCode == http.StatusBadRequest {
			c.logger.Info("Queued verification finished without success",
				zap.String("reference", req.Reference),
				zap.String("message", svcErr.Message),
			)
			return nil
		}
		return svcErr
	}

	c.logger.Info("Queued verification succeeded",
		zap.String("reference", req.Reference),
		zap.Bool("success", result.Success),
	)
	return nil
}
