package models

import "time"

const (
	EventPaymentSucceeded          = "payment_succeeded"
	EventPaymentFailed             = "payment_failed"
	EventPaymentAmountMismatch     = "payment_amount_mismatch"
	EventPaymentVerificationFailed = "payment_verification_failed"
)

// PaymentEvent is published to SNS after every terminal transition.
type PaymentEvent struct {
	EventType     string        `json:"event_type"`
	Reference     string        `json:"reference"`
	ProspectiveID string        `json:"prospective_id"`
	Email         string        `json:"email,omitempty"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"` // expected, kobo
	PaidAmount    int64         `json:"paid_amount,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	Message       string        `json:"message,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// VerifyRequest is accepted by POST /verify-payment and carried on the
// verification queue.
type VerifyRequest struct {
	Reference     string `json:"reference" binding:"required"`
	ProspectiveID string `json:"prospectiveId" binding:"required"`
	Email         string `json:"email"`
	Amount        int64  `json:"amount" binding:"required"`
	Source        string `json:"source,omitempty"`
}

type CreatePendingRequest struct {
	Reference     string        `json:"reference" binding:"required"`
	ProspectiveID string        `json:"prospectiveId" binding:"required"`
	Email         string        `json:"email"`
	Amount        int64         `json:"amount"`
	PaymentType   PaymentType   `json:"paymentType"`
	Status        PaymentStatus `json:"status"`
}

// TransactionSummary is returned to the caller on success, straight from
// the gateway transaction.
type TransactionSummary struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paidAt"`
}

// VerifyResult is the outcome of one reconciliation.
type VerifyResult struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Transaction *TransactionSummary `json:"transaction,omitempty"`
}
