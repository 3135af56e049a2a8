package repository

import (
	"context"
	"time"

	"github.com/Bames007/sauni/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	SetOutcome(ctx context.Context, id uuid.UUID, outcome string, at time.Time) error
}

type GormWebhookLogRepository struct {
	db *gorm.DB
}

func NewGormWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

func (r *GormWebhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *GormWebhookLogRepository) SetOutcome(ctx context.Context, id uuid.UUID, outcome string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"outcome": outcome, "processed_at": at}).Error
}
