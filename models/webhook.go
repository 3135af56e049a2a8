package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookLog records every signed webhook delivery, processed or not.
type WebhookLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Event       string         `gorm:"type:varchar(100);not null;index" json:"event"`
	Reference   string         `gorm:"type:varchar(255);index" json:"reference"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Outcome     string         `gorm:"type:varchar(50)" json:"outcome"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (WebhookLog) TableName() string { return "paystack_webhook_logs" }

func (w *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

const (
	WebhookOutcomeReceived   = "received"
	WebhookOutcomeIgnored    = "ignored"
	WebhookOutcomeQueued     = "queued"
	WebhookOutcomeReconciled = "reconciled"
	WebhookOutcomeError      = "error"
)
