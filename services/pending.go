package services

import (
	"context"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	"go.uber.org/zap"
)

// CreatePending seeds a payment record at both locations before the gateway
// redirect. A reused reference is overwritten.
func (s *paymentServiceImpl) CreatePending(ctx context.Context, req *models.CreatePendingRequest) (string, *ServiceError) {
	if req.Reference == "" || req.ProspectiveID == "" {
		return "", badRequest(msgMissingFields)
	}
	if !docstore.ValidKey(req.Reference) {
		return "", badRequest(msgInvalidReference)
	}
	if !docstore.ValidKey(req.ProspectiveID) {
		return "", badRequest(msgInvalidProspective)
	}

	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = models.PaymentTypeApplicationFee
	}
	status := req.Status
	if status == "" {
		status = models.PaymentStatusPending
	}

	now := models.Timestamp(s.now())
	record := &models.PaymentRecord{
		Reference:     req.Reference,
		ProspectiveID: req.ProspectiveID,
		Email:         req.Email,
		Amount:        req.Amount,
		PaymentType:   paymentType,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Payments.Put(ctx, record); err != nil {
		s.logger.Error("Failed to create pending payment",
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		return "", internalError(msgCreatePendingFail)
	}

	s.logger.Info("Pending payment created",
		zap.String("reference", req.Reference),
		zap.String("prospective_id", req.ProspectiveID),
		zap.Int64("amount", req.Amount),
	)
	return req.Reference, nil
}
