package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a PaymentRecord.
type PaymentStatus string

const (
	PaymentStatusPending            PaymentStatus = "pending"
	PaymentStatusVerifying          PaymentStatus = "verifying"
	PaymentStatusSuccess            PaymentStatus = "success"
	PaymentStatusFailed             PaymentStatus = "failed"
	PaymentStatusAmountMismatch     PaymentStatus = "amount_mismatch"
	PaymentStatusVerificationFailed PaymentStatus = "verification_failed"
)

// Terminal reports whether a reconciliation call ends in s. A manual
// re-verification can still move a terminal record back to verifying.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusAmountMismatch, PaymentStatusVerificationFailed:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeApplicationFee PaymentType = "application_fee"
	PaymentTypeTuitionDeposit PaymentType = "tuition_deposit"
	PaymentTypeFullTuition    PaymentType = "full_tuition"
	PaymentTypeOther          PaymentType = "other"
)

type Customer struct {
	Email string `json:"email,omitempty"`
	Code  string `json:"code,omitempty"`
}

// PaymentRecord is stored at payments/{reference} and mirrored at
// applications/students/{prospectiveId}/payments/{reference}. Amounts are
// kobo. Timestamps are RFC 3339 strings and only set when the matching
// transition happened.
type PaymentRecord struct {
	Reference     string        `json:"reference"`
	ProspectiveID string        `json:"prospectiveId"`
	Email         string        `json:"email"`
	Amount        int64         `json:"amount"`
	PaymentType   PaymentType   `json:"paymentType"`
	Status        PaymentStatus `json:"status"`

	CreatedAt               string `json:"createdAt,omitempty"`
	UpdatedAt               string `json:"updatedAt,omitempty"`
	VerifiedAt              string `json:"verifiedAt,omitempty"`
	LastVerificationAttempt string `json:"lastVerificationAttempt,omitempty"`
	PaidAt                  string `json:"paidAt,omitempty"`
	FailedAt                string `json:"failedAt,omitempty"`
	CompletedAt             string `json:"completedAt,omitempty"`

	PaidAmount      *int64         `json:"paidAmount,omitempty"`
	ExpectedAmount  *int64         `json:"expectedAmount,omitempty"`
	Channel         string         `json:"channel,omitempty"`
	GatewayResponse string         `json:"gatewayResponse,omitempty"`
	Currency        string         `json:"currency,omitempty"`
	Fees            *int64         `json:"fees,omitempty"`
	Customer        *Customer      `json:"customer,omitempty"`
	Authorization   map[string]any `json:"authorization,omitempty"`
	Log             map[string]any `json:"log,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Timestamp formats t the way every record timestamp is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// KoboToNaira converts minor units to major units.
func KoboToNaira(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100))
}
