package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/sender"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Notifier hands a payment confirmation off for delivery. It runs after the
// payment state is committed; its error never changes a verification result.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, to string, c models.PaymentConfirmation) error
}

// DirectNotifier renders and sends the email in the request path.
type DirectNotifier struct {
	sender    sender.EmailSender
	templates *Templates
	logger    *zap.Logger
}

func NewDirectNotifier(emailSender sender.EmailSender, templates *Templates, logger *zap.Logger) *DirectNotifier {
	return &DirectNotifier{sender: emailSender, templates: templates, logger: logger}
}

func (n *DirectNotifier) PaymentConfirmed(ctx context.Context, to string, c models.PaymentConfirmation) error {
	body, err := n.templates.RenderPaymentConfirmation(c)
	if err != nil {
		return err
	}
	result, err := n.sender.SendEmail(ctx, to, PaymentConfirmationSubject, body)
	if err != nil {
		return fmt.Errorf("send payment confirmation: %w", err)
	}
	n.logger.Info("notification sent",
		zap.String("reference", c.Reference),
		zap.String("message_id", result.MessageID),
	)
	return nil
}

// OutboxNotifier queues the email in Postgres; the Dispatcher delivers it.
type OutboxNotifier struct {
	repo repository.OutboxRepository
}

func NewOutboxNotifier(repo repository.OutboxRepository) *OutboxNotifier {
	return &OutboxNotifier{repo: repo}
}

func (n *OutboxNotifier) PaymentConfirmed(ctx context.Context, to string, c models.PaymentConfirmation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal payment confirmation: %w", err)
	}
	row := &models.NotificationOutbox{
		Kind:      models.NotificationKindPaymentConfirmation,
		Recipient: to,
		Subject:   PaymentConfirmationSubject,
		Reference: c.Reference,
		Payload:   datatypes.JSON(payload),
	}
	if err := n.repo.Enqueue(ctx, row); err != nil {
		return fmt.Errorf("enqueue payment confirmation: %w", err)
	}
	return nil
}
