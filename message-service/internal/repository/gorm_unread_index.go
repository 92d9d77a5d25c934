package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
)

// GormUnreadIndex implements UnreadIndex over the messages table. Queries
// hit idx_messages_receiver_unread.
type GormUnreadIndex struct {
	db *gorm.DB
}

var _ UnreadIndex = (*GormUnreadIndex)(nil)

// NewGormUnreadIndex creates a new GORM-based unread index.
func NewGormUnreadIndex(db *gorm.DB) *GormUnreadIndex {
	return &GormUnreadIndex{db: db}
}

type unreadRow struct {
	ID        string
	SenderID  string
	Content   string
	CreatedAt time.Time
	Read      bool `gorm:"column:is_read"`
}

// UnreadFor returns the unread messages received by userID, oldest first,
// projecting only the list-view columns.
func (u *GormUnreadIndex) UnreadFor(ctx context.Context, userID string) ([]domain.UnreadMessage, error) {
	var rows []unreadRow
	if err := u.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Select("id", "sender_id", "content", "created_at", "is_read").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Order("created_at ASC, id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	unread := make([]domain.UnreadMessage, 0, len(rows))
	for _, row := range rows {
		unread = append(unread, domain.UnreadMessage{
			ID:        row.ID,
			SenderID:  row.SenderID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			Read:      row.Read,
		})
	}
	return unread, nil
}

// MarkRead flips every listed message that userID received and has not
// read yet. Foreign and already-read ids are skipped. All chunks commit
// together, so a repeated call with the same ids updates nothing.
func (u *GormUnreadIndex) MarkRead(ctx context.Context, userID string, ids []string) (*ReadResult, error) {
	ids = uniqueIDs(ids)
	result := &ReadResult{}
	if len(ids) == 0 {
		return result, nil
	}

	senders := make(map[string]struct{})
	roots := make(map[string]struct{})

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return eachChunk(ids, func(chunk []string) error {
			var affected []domain.MessageModel
			if err := tx.Select("id", "sender_id", "root_id").
				Where("receiver_id = ? AND is_read = ? AND id IN ?", userID, false, chunk).
				Find(&affected).Error; err != nil {
				return err
			}
			for _, m := range affected {
				senders[m.SenderID] = struct{}{}
				roots[m.RootID] = struct{}{}
			}

			res := tx.Model(&domain.MessageModel{}).
				Where("receiver_id = ? AND is_read = ? AND id IN ?", userID, false, chunk).
				Update("is_read", true)
			if res.Error != nil {
				return res.Error
			}
			result.Updated += res.RowsAffected
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	result.Senders = keys(senders)
	result.ThreadRoots = keys(roots)
	return result, nil
}

// MarkOneRead marks a single message read on behalf of its receiver. The
// bool reports whether the flag actually changed.
func (u *GormUnreadIndex) MarkOneRead(ctx context.Context, userID, id string) (*domain.Message, bool, error) {
	var (
		model   domain.MessageModel
		changed bool
	)

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		if model.ReceiverID != userID {
			return ErrNotReceiver
		}
		if model.Read {
			return nil
		}

		res := tx.Model(&domain.MessageModel{}).
			Where("id = ? AND is_read = ?", id, false).
			Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		model.Read = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return model.ToDomain(), changed, nil
}
