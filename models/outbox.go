package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

const NotificationKindPaymentConfirmation = "payment_confirmation"

// NotificationOutbox is one queued email. Rows are written after the payment
// state is committed and drained by the dispatcher.
type NotificationOutbox struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          string         `gorm:"type:varchar(50);not null;index" json:"kind"`
	Recipient     string         `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject       string         `gorm:"type:varchar(255);not null" json:"subject"`
	Reference     string         `gorm:"type:varchar(255);index" json:"reference"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status        OutboxStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts      int            `gorm:"not null" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt time.Time      `gorm:"index" json:"next_attempt_at"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }

func (n *NotificationOutbox) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = OutboxStatusPending
	}
	return nil
}

// PaymentConfirmation is the payload of a payment_confirmation notification.
type PaymentConfirmation struct {
	Reference     string `json:"reference"`
	ProspectiveID string `json:"prospectiveId"`
	AmountNaira   string `json:"amountNaira"`
	PaidAt        string `json:"paidAt"`
}

// OutboxFilter narrows List.
type OutboxFilter struct {
	Status OutboxStatus
	Limit  int
	Offset int
}
