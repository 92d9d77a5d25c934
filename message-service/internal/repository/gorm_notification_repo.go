package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
)

// GormNotificationRepository implements NotificationRepository using GORM.
// Notifications are only ever created and deleted by the message pipeline.
type GormNotificationRepository struct {
	db *gorm.DB
}

var _ NotificationRepository = (*GormNotificationRepository)(nil)

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var rows []domain.NotificationModel
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(rows))
	for i := range rows {
		notifications = append(notifications, *rows[i].ToDomain())
	}
	return notifications, nil
}

// MarkRead marks one of userID's notifications read. Notifications owned
// by someone else are reported as not found.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.NotificationModel{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing domain.NotificationModel
	err := r.db.WithContext(ctx).Select("id").
		First(&existing, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotificationNotFound
		}
		return false, err
	}
	return false, nil
}
