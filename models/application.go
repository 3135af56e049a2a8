package models

// ApplicationFeeKey is the per-student payments child holding the
// application fee summary.
const ApplicationFeeKey = "application_fee"

const ApplicationPaymentStatusPaid = "paid"

// ApplicationRecord holds the payment fields of
// applications/students/{prospectiveId}. The document carries many other
// applicant fields that this service never touches.
type ApplicationRecord struct {
	ProspectiveID     string  `json:"prospectiveId,omitempty"`
	Email             string  `json:"email,omitempty"`
	PaymentStatus     string  `json:"paymentStatus,omitempty"`
	AmountPaid        float64 `json:"amountPaid,omitempty"`
	PaystackReference string  `json:"paystackReference,omitempty"`
	PaidAt            string  `json:"paidAt,omitempty"`
	UpdatedAt         string  `json:"updatedAt,omitempty"`
}

// ApplicationFeeSummary lives at
// applications/students/{prospectiveId}/payments/application_fee. Amount is
// naira.
type ApplicationFeeSummary struct {
	Status            string  `json:"status"`
	PaidAt            string  `json:"paidAt,omitempty"`
	PaystackReference string  `json:"paystackReference,omitempty"`
	Amount            float64 `json:"amount"`
	Reference         string  `json:"reference"`
	VerifiedAt        string  `json:"verifiedAt,omitempty"`
}

// PaidApplication is what a successful reconciliation writes onto the
// application.
type PaidApplication struct {
	ProspectiveID string
	Reference     string
	AmountKobo    int64
	PaidAt        string
	Now           string
}
