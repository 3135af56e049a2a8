package repository

import (
	"context"
	"time"

	"github.com/Bames007/sauni/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository defines data-access operations for queued notifications.
type OutboxRepository interface {
	Enqueue(ctx context.Context, n *models.NotificationOutbox) error
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationOutbox, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, lastErr string, next time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error
	List(ctx context.Context, filter models.OutboxFilter) ([]models.NotificationOutbox, int64, error)
}

// GormOutboxRepository implements OutboxRepository using GORM.
type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) OutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) Enqueue(ctx context.Context, n *models.NotificationOutbox) error {
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// ClaimDue locks up to limit pending rows that are due and pushes their
// next_attempt_at out by lease, so concurrent dispatchers skip them.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	var rows []models.NotificationOutbox
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", models.OutboxStatusPending, now).
			Order("next_attempt_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&models.NotificationOutbox{}).
			Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *GormOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"sent_at":    at,
			"last_error": "",
		}).Error
}

func (r *GormOutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, lastErr string, next time.Time) error {
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      lastErr,
			"next_attempt_at": next,
		}).Error
}

func (r *GormOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error {
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastErr,
		}).Error
}

func (r *GormOutboxRepository) List(ctx context.Context, filter models.OutboxFilter) ([]models.NotificationOutbox, int64, error) {
	var rows []models.NotificationOutbox
	var total int64

	query := r.db.WithContext(ctx).Model(&models.NotificationOutbox{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := query.
		Offset(filter.Offset).Limit(limit).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
