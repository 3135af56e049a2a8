package models

import (
	"encoding/json"
	"strings"
)

// VerifyResponse is the body of GET /transaction/verify/{reference}.
type VerifyResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *Transaction `json:"data"`
}

type TransactionCustomer struct {
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
}

type Transaction struct {
	ID              int64               `json:"id"`
	Status          string              `json:"status"`
	Reference       string              `json:"reference"`
	Amount          int64               `json:"amount"`
	GatewayResponse string              `json:"gateway_response"`
	PaidAt          string              `json:"paid_at"`
	Channel         string              `json:"channel"`
	Currency        string              `json:"currency"`
	Fees            *int64              `json:"fees"`
	Customer        TransactionCustomer `json:"customer"`
	Authorization   map[string]any      `json:"authorization"`
	Log             map[string]any      `json:"log"`
	Metadata        json.RawMessage     `json:"metadata"`
}

const TransactionStatusSuccess = "success"

// ProspectiveID reads metadata.prospectiveId. Paystack sends metadata as an
// object, a JSON-encoded string or an empty string, so all three are handled.
func (t *Transaction) ProspectiveID() string {
	raw := t.Metadata
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return ""
		}
		raw = json.RawMessage(s)
	}

	var meta struct {
		ProspectiveID  string `json:"prospectiveId"`
		ProspectiveID2 string `json:"prospective_id"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	if meta.ProspectiveID != "" {
		return meta.ProspectiveID
	}
	return meta.ProspectiveID2
}

// WebhookEvent is the body Paystack posts to the webhook URL.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  Transaction `json:"data"`
}

const WebhookEventChargeSuccess = "charge.success"
