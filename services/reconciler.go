package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Bames007/sauni/common/logger"
	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/lock"
	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/repository"
	"go.uber.org/zap"
)

// Verify reconciles one reference against the gateway and moves the payment
// to a terminal status. Overlapping calls for the same reference get 409;
// sequential calls re-run the whole flow.
func (s *paymentServiceImpl) Verify(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResult, *ServiceError) {
	if req.Reference == "" || req.ProspectiveID == "" || req.Amount <= 0 {
		return nil, badRequest(msgMissingFields)
	}
	if !docstore.ValidKey(req.Reference) {
		return nil, badRequest(msgInvalidReference)
	}
	if !docstore.ValidKey(req.ProspectiveID) {
		return nil, badRequest(msgInvalidProspective)
	}

	log := logger.For(ctx, s.logger).With(
		zap.String("reference", req.Reference),
		zap.String("prospective_id", req.ProspectiveID),
	)
	if req.Source != "" {
		log = log.With(zap.String("source", req.Source))
	}

	release, err := s.locker.TryLock(ctx, "verify:"+req.Reference)
	if errors.Is(err, lock.ErrHeld) {
		log.Info("Verification already running for reference")
		return nil, &ServiceError{StatusCode: http.StatusConflict, Message: msgVerifyInProgress}
	}
	if err != nil {
		log.Error("Failed to acquire verification lock", zap.Error(err))
		return nil, internalError(msgVerifyInternal)
	}
	defer release()

	// From here the outcome is recorded even if the caller goes away.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.workTimeout)
	defer cancel()

	existing, err := s.beginVerification(work, req, log)
	if err != nil {
		log.Error("Failed to mark payment verifying", zap.Error(err))
		return nil, internalError(msgVerifyInternal)
	}

	start := time.Now()
	resp, gwErr := s.gateway.Verify(work, req.Reference)
	recordLatency(work, s.metrics, s.logger, awspkg.MetricGatewayLatency, time.Since(start))

	if gwErr != nil || resp == nil || !resp.Status || resp.Data == nil {
		msg := msgVerifyFailed
		note := msgVerifyFailed
		if resp != nil && resp.Message != "" {
			msg = resp.Message
			note = resp.Message
		}
		if gwErr != nil {
			note = gwErr.Error()
		}
		log.Warn("Gateway verification failed", zap.String("error", note))
		return nil, s.finish(work, req, log, existing, models.PaymentStatusVerificationFailed, docstore.Document{
			"error": note,
		}, msg)
	}

	tx := resp.Data
	if tx.Status != models.TransactionStatusSuccess {
		msg := tx.GatewayResponse
		if msg == "" {
			msg = msgPaymentNotSuccess
		}
		log.Info("Transaction not successful",
			zap.String("transaction_status", tx.Status),
			zap.String("gateway_response", tx.GatewayResponse),
		)
		return nil, s.finish(work, req, log, existing, models.PaymentStatusFailed, docstore.Document{
			"gatewayResponse": tx.GatewayResponse,
			"failedAt":        models.Timestamp(s.now()),
		}, msg)
	}

	if tx.Amount != req.Amount {
		msg := fmt.Sprintf("Payment amount mismatch. Expected: %s Naira, Received: %s Naira",
			models.KoboToNaira(req.Amount).String(), models.KoboToNaira(tx.Amount).String())
		log.Warn("Payment amount mismatch",
			zap.Int64("expected_amount", req.Amount),
			zap.Int64("paid_amount", tx.Amount),
		)
		return nil, s.finish(work, req, log, existing, models.PaymentStatusAmountMismatch, docstore.Document{
			"paidAmount":     tx.Amount,
			"expectedAmount": req.Amount,
		}, msg)
	}

	return s.commitSuccess(work, req, log, existing, tx)
}

// beginVerification marks the record verifying, or seeds one when the
// reference has never been seen. It returns the record as it was before.
func (s *paymentServiceImpl) beginVerification(ctx context.Context, req *models.VerifyRequest, log *zap.Logger) (*models.PaymentRecord, error) {
	now := models.Timestamp(s.now())

	existing, err := s.repo.Payments.Get(ctx, req.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("No payment record for reference, synthesizing one")
		seeded := &models.PaymentRecord{
			Reference:               req.Reference,
			ProspectiveID:           req.ProspectiveID,
			Email:                   req.Email,
			Amount:                  req.Amount,
			PaymentType:             models.PaymentTypeApplicationFee,
			Status:                  models.PaymentStatusVerifying,
			CreatedAt:               now,
			UpdatedAt:               now,
			VerifiedAt:              now,
			LastVerificationAttempt: now,
		}
		return nil, s.repo.Payments.Put(ctx, seeded)
	}
	if err != nil {
		return nil, err
	}

	if existing.ProspectiveID != "" && existing.ProspectiveID != req.ProspectiveID {
		log.Warn("Stored prospective ID differs from request",
			zap.String("stored_prospective_id", existing.ProspectiveID),
		)
	}

	return existing, s.repo.Payments.Transition(ctx, req.Reference, req.ProspectiveID, docstore.Document{
		"status":                  models.PaymentStatusVerifying,
		"verifiedAt":              now,
		"lastVerificationAttempt": now,
		"updatedAt":               now,
	})
}

// finish records a failed terminal status on both payment copies and turns
// the outcome into a 400, or a 500 when the write itself fails.
func (s *paymentServiceImpl) finish(
	ctx context.Context,
	req *models.VerifyRequest,
	log *zap.Logger,
	existing *models.PaymentRecord,
	status models.PaymentStatus,
	fields docstore.Document,
	msg string,
) *ServiceError {
	fields["status"] = status
	fields["updatedAt"] = models.Timestamp(s.now())

	if err := s.repo.Payments.Transition(ctx, req.Reference, req.ProspectiveID, fields); err != nil {
		log.Error("Failed to record payment outcome", zap.String("status", string(status)), zap.Error(err))
		return internalError(msgVerifyInternal)
	}

	event := models.PaymentEvent{
		Reference:     req.Reference,
		ProspectiveID: req.ProspectiveID,
		Email:         recipient(req, existing, nil),
		Status:        status,
		Amount:        req.Amount,
		Message:       msg,
		Timestamp:     s.now().UTC(),
	}
	switch status {
	case models.PaymentStatusFailed:
		event.EventType = models.EventPaymentFailed
		s.recordMetric(ctx, awspkg.MetricPaymentFailed, nil)
	case models.PaymentStatusAmountMismatch:
		event.EventType = models.EventPaymentAmountMismatch
		if paid, ok := fields["paidAmount"].(int64); ok {
			event.PaidAmount = paid
		}
		s.recordMetric(ctx, awspkg.MetricPaymentAmountMismatch, nil)
	default:
		event.EventType = models.EventPaymentVerificationFailed
		s.recordMetric(ctx, awspkg.MetricPaymentVerificationFailed, nil)
	}
	s.publishEvent(ctx, event)

	return badRequest(msg)
}

func (s *paymentServiceImpl) commitSuccess(
	ctx context.Context,
	req *models.VerifyRequest,
	log *zap.Logger,
	existing *models.PaymentRecord,
	tx *models.Transaction,
) (*models.VerifyResult, *ServiceError) {
	now := models.Timestamp(s.now())
	paidAt := tx.PaidAt
	if paidAt == "" {
		paidAt = now
	}

	fields := docstore.Document{
		"status":          models.PaymentStatusSuccess,
		"paidAmount":      tx.Amount,
		"channel":         tx.Channel,
		"paidAt":          paidAt,
		"gatewayResponse": tx.GatewayResponse,
		"currency":        tx.Currency,
		"customer": docstore.Document{
			"email": tx.Customer.Email,
			"code":  tx.Customer.CustomerCode,
		},
		"updatedAt":   now,
		"completedAt": now,
	}
	if tx.Fees != nil {
		fields["fees"] = *tx.Fees
	}
	if tx.Authorization != nil {
		fields["authorization"] = tx.Authorization
	}
	if tx.Log != nil {
		fields["log"] = tx.Log
	}

	paid := models.PaidApplication{
		ProspectiveID: req.ProspectiveID,
		Reference:     req.Reference,
		AmountKobo:    tx.Amount,
		PaidAt:        paidAt,
		Now:           now,
	}
	if err := s.repo.CommitSuccess(ctx, req.ProspectiveID, req.Reference, fields, paid); err != nil {
		log.Error("Failed to commit payment success", zap.Error(err))
		return nil, internalError(msgVerifyInternal)
	}

	log.Info("Payment verified",
		zap.Int64("amount", tx.Amount),
		zap.String("channel", tx.Channel),
	)
	s.recordMetric(ctx, awspkg.MetricPaymentSucceeded, map[string]string{"Channel": tx.Channel})

	to := recipient(req, existing, tx)
	s.notify(ctx, log, to, models.PaymentConfirmation{
		Reference:     req.Reference,
		ProspectiveID: req.ProspectiveID,
		AmountNaira:   models.KoboToNaira(tx.Amount).StringFixed(2),
		PaidAt:        paidAt,
	})

	s.publishEvent(ctx, models.PaymentEvent{
		EventType:     models.EventPaymentSucceeded,
		Reference:     req.Reference,
		ProspectiveID: req.ProspectiveID,
		Email:         to,
		Status:        models.PaymentStatusSuccess,
		Amount:        req.Amount,
		PaidAmount:    tx.Amount,
		Currency:      tx.Currency,
		Timestamp:     s.now().UTC(),
	})

	reference := tx.Reference
	if reference == "" {
		reference = req.Reference
	}
	return &models.VerifyResult{
		Success: true,
		Message: msgVerifySuccess,
		Transaction: &models.TransactionSummary{
			Reference: reference,
			Amount:    tx.Amount,
			PaidAt:    tx.PaidAt,
		},
	}, nil
}

// notify is best effort: failures are logged and counted, never returned.
func (s *paymentServiceImpl) notify(ctx context.Context, log *zap.Logger, to string, c models.PaymentConfirmation) {
	if s.notifier == nil {
		return
	}
	if to == "" {
		log.Warn("No recipient for payment confirmation, skipping")
		return
	}
	if err := s.notifier.PaymentConfirmed(ctx, to, c); err != nil {
		log.Error("Failed to send payment confirmation", zap.Error(err))
		s.recordMetric(ctx, awspkg.MetricNotificationsFailed, nil)
		return
	}
	s.recordMetric(ctx, awspkg.MetricNotificationsSent, nil)
}

// recipient picks the request email, then the stored one, then the
// gateway customer's.
func recipient(req *models.VerifyRequest, existing *models.PaymentRecord, tx *models.Transaction) string {
	if req.Email != "" {
		return req.Email
	}
	if existing != nil && existing.Email != "" {
		return existing.Email
	}
	if tx != nil {
		return tx.Customer.Email
	}
	return ""
}
