package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db       *gorm.DB
	ids      idgen.Generator
	pipeline pipeline
	now      func() time.Time
}

var _ MessageRepository = (*GormMessageRepository)(nil)

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB, ids idgen.Generator) *GormMessageRepository {
	return &GormMessageRepository{
		db:       db,
		ids:      ids,
		pipeline: pipeline{ids: ids},
		now:      time.Now,
	}
}

// timestamp returns the clock reading at the precision every supported
// driver round-trips.
func (r *GormMessageRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// Create inserts msg with a derived root id and notifies the receiver.
// msg is updated in place with the stored id, root and timestamps.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Notification, error) {
	if msg.ReceiverID == "" {
		return nil, ErrMissingReceiver
	}

	id, err := r.ids.Generate()
	if err != nil {
		return nil, err
	}

	model := domain.MessageToModel(&domain.Message{
		ID:         id,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		ParentID:   msg.ParentID,
		RootID:     id,
		Version:    1,
		CreatedAt:  r.timestamp(),
	})

	var notification *domain.NotificationModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if model.ParentID != nil {
			// The share lock holds off a cascade deleting the parent until
			// this reply has committed; the foreign key covers the rest.
			var parent domain.MessageModel
			if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
				Select("id", "root_id").
				First(&parent, "id = ?", *model.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrParentNotFound
				}
				return err
			}
			model.RootID = parent.RootID
		}

		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrParentNotFound
			}
			return fmt.Errorf("create message: %w", err)
		}

		n, err := r.pipeline.notifyReceiver(tx, model)
		if err != nil {
			return err
		}
		notification = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	*msg = *model.ToDomain()
	return notification.ToDomain(), nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Edit reads the current row, snapshots it and applies the new content in
// one transaction. The update is guarded by the version read at the start,
// so a concurrent edit that committed first turns this one into
// ErrVersionConflict and its history row is rolled back.
func (r *GormMessageRepository) Edit(ctx context.Context, params EditParams) (*EditResult, error) {
	var result EditResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.MessageModel
		if err := tx.First(&model, "id = ?", params.MessageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		if params.EditorID != "" && model.SenderID != params.EditorID {
			return ErrNotSender
		}
		if params.ExpectedVersion != nil && *params.ExpectedVersion != model.Version {
			return ErrVersionConflict
		}

		if model.Content == params.Content {
			result.Message = model.ToDomain()
			return nil
		}

		now := r.timestamp()
		history, err := r.pipeline.snapshotEdit(tx, &model, params.EditorID, now)
		if err != nil {
			return err
		}

		res := tx.Model(&domain.MessageModel{}).
			Where("id = ? AND version = ?", model.ID, model.Version).
			Updates(map[string]interface{}{
				"content": params.Content,
				"edited":  true,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("update message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		model.Content = params.Content
		model.Edited = true
		model.Version++

		result.Message = model.ToDomain()
		result.History = history.ToDomain()
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// ListTopLevel returns the thread roots userID sent or received, newest
// first, with the number of replies in each thread.
func (r *GormMessageRepository) ListTopLevel(ctx context.Context, userID string) ([]domain.MessageSummary, error) {
	db := r.db.WithContext(ctx)

	var models []domain.MessageModel
	if err := db.
		Where("parent_id IS NULL AND (sender_id = ? OR receiver_id = ?)", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	rootIDs := make([]string, 0, len(models))
	for _, m := range models {
		rootIDs = append(rootIDs, m.ID)
	}

	type replyCount struct {
		RootID     string
		ReplyCount int64
	}
	counts := make(map[string]int64, len(models))
	err := eachChunk(rootIDs, func(chunk []string) error {
		var rows []replyCount
		if err := db.Model(&domain.MessageModel{}).
			Select("root_id, COUNT(*) AS reply_count").
			Where("root_id IN ? AND parent_id IS NOT NULL", chunk).
			Group("root_id").
			Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			counts[row.RootID] = row.ReplyCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.MessageSummary, 0, len(models))
	for i := range models {
		summaries = append(summaries, domain.MessageSummary{
			Message:    *models[i].ToDomain(),
			ReplyCount: counts[models[i].ID],
		})
	}
	return summaries, nil
}

// ListThread returns the root and all transitive replies, oldest first,
// each with its edit history newest first.
func (r *GormMessageRepository) ListThread(ctx context.Context, rootID string) ([]domain.MessageWithHistory, error) {
	db := r.db.WithContext(ctx)

	var models []domain.MessageModel
	if err := db.Where("root_id = ?", rootID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, ErrMessageNotFound
	}

	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	histories := make(map[string][]domain.MessageHistory, len(models))
	err := eachChunk(ids, func(chunk []string) error {
		var rows []domain.MessageHistoryModel
		if err := db.Where("message_id IN ?", chunk).
			Order("edited_at DESC, id DESC").
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			histories[rows[i].MessageID] = append(histories[rows[i].MessageID], *rows[i].ToDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	thread := make([]domain.MessageWithHistory, 0, len(models))
	for i := range models {
		h := histories[models[i].ID]
		if h == nil {
			h = []domain.MessageHistory{}
		}
		thread = append(thread, domain.MessageWithHistory{
			Message: *models[i].ToDomain(),
			History: h,
		})
	}
	return thread, nil
}

// ListHistory returns the edits of one message, newest first.
func (r *GormMessageRepository) ListHistory(ctx context.Context, messageID string) ([]domain.MessageHistory, error) {
	var rows []domain.MessageHistoryModel
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("edited_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	history := make([]domain.MessageHistory, 0, len(rows))
	for i := range rows {
		history = append(history, *rows[i].ToDomain())
	}
	return history, nil
}

// ListConversations groups every message of userID by counterpart, most
// recently active conversation first.
func (r *GormMessageRepository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var models []domain.MessageModel
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	byCounterpart := make(map[string]*domain.ConversationSummary)
	for i := range models {
		msg := models[i].ToDomain()
		other := msg.Counterpart(userID)

		conv, ok := byCounterpart[other]
		if !ok {
			conv = &domain.ConversationSummary{CounterpartID: other, LastMessage: msg}
			byCounterpart[other] = conv
		}
		conv.MessageCount++
		if msg.ReceiverID == userID && !msg.Read {
			conv.UnreadCount++
		}
	}

	conversations := make([]domain.ConversationSummary, 0, len(byCounterpart))
	for _, conv := range byCounterpart {
		conversations = append(conversations, *conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessage, conversations[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return conversations[i].CounterpartID < conversations[j].CounterpartID
	})
	return conversations, nil
}

// RemoveActor cascades the removal of actorID in one transaction.
func (r *GormMessageRepository) RemoveActor(ctx context.Context, actorID string) (*domain.RemovalResult, error) {
	var result *domain.RemovalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := r.pipeline.cascadeActor(tx, actorID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
