package repository

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
)

// inClauseChunk bounds IN lists below the sqlite bind-variable limit.
const inClauseChunk = 500

// pipeline holds the side effects that run inside a message mutation's
// transaction. Each step receives the transaction handle, never r.db.
type pipeline struct {
	ids idgen.Generator
}

// notifyReceiver creates the one notification owed to msg's receiver.
func (p pipeline) notifyReceiver(tx *gorm.DB, msg *domain.MessageModel) (*domain.NotificationModel, error) {
	id, err := p.ids.Generate()
	if err != nil {
		return nil, err
	}
	n := domain.NotificationToModel(&domain.Notification{
		ID:        id,
		UserID:    msg.ReceiverID,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
	})
	if err := tx.Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// snapshotEdit appends the content an edit is about to replace.
func (p pipeline) snapshotEdit(tx *gorm.DB, msg *domain.MessageModel, editorID string, at time.Time) (*domain.MessageHistoryModel, error) {
	id, err := p.ids.Generate()
	if err != nil {
		return nil, err
	}
	snapshot := &domain.MessageHistory{
		ID:         id,
		MessageID:  msg.ID,
		OldContent: msg.Content,
		EditedAt:   at,
	}
	if editorID != "" {
		editor := editorID
		snapshot.EditedBy = &editor
	}
	h := domain.MessageHistoryToModel(snapshot)
	if err := tx.Create(h).Error; err != nil {
		return nil, fmt.Errorf("create message history: %w", err)
	}
	return h, nil
}

// cascadeActor deletes the messages an actor sent or received, every reply
// descending from them, and the notifications and history attached to
// either the actor or a deleted message.
func (p pipeline) cascadeActor(tx *gorm.DB, actorID string) (*domain.RemovalResult, error) {
	var seeds []domain.MessageModel
	if err := tx.Select("id", "sender_id", "receiver_id", "root_id", "parent_id").
		Where("sender_id = ? OR receiver_id = ?", actorID, actorID).
		Find(&seeds).Error; err != nil {
		return nil, fmt.Errorf("collect actor messages: %w", err)
	}

	doomed := make(map[string]*string, len(seeds)) // id -> parent id
	counterparts := make(map[string]struct{})
	roots := make(map[string]struct{})
	frontier := make([]string, 0, len(seeds))

	track := func(m domain.MessageModel) {
		doomed[m.ID] = m.ParentID
		roots[m.RootID] = struct{}{}
		for _, uid := range []string{m.SenderID, m.ReceiverID} {
			if uid != actorID {
				counterparts[uid] = struct{}{}
			}
		}
		frontier = append(frontier, m.ID)
	}
	for _, m := range seeds {
		track(m)
	}

	for len(frontier) > 0 {
		parents := frontier
		frontier = nil
		err := eachChunk(parents, func(chunk []string) error {
			var replies []domain.MessageModel
			if err := tx.Select("id", "sender_id", "receiver_id", "root_id", "parent_id").
				Where("parent_id IN ?", chunk).
				Find(&replies).Error; err != nil {
				return err
			}
			for _, m := range replies {
				if _, seen := doomed[m.ID]; !seen {
					track(m)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("collect replies: %w", err)
		}
	}

	ids := deepestFirst(doomed)
	result := &domain.RemovalResult{
		Counterparts: keys(counterparts),
		ThreadRoots:  keys(roots),
	}

	res := tx.Where("user_id = ?", actorID).Delete(&domain.NotificationModel{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete actor notifications: %w", res.Error)
	}
	result.NotificationsDeleted += res.RowsAffected

	res = tx.Where("edited_by = ?", actorID).Delete(&domain.MessageHistoryModel{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete actor history: %w", res.Error)
	}
	result.HistoryDeleted += res.RowsAffected

	// Dependents go first and replies before their parents, so none of the
	// ON DELETE CASCADE constraints has to fire and every count is direct.
	err := eachChunk(ids, func(chunk []string) error {
		res := tx.Where("message_id IN ?", chunk).Delete(&domain.NotificationModel{})
		if res.Error != nil {
			return res.Error
		}
		result.NotificationsDeleted += res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete message notifications: %w", err)
	}

	err = eachChunk(ids, func(chunk []string) error {
		res := tx.Where("message_id IN ?", chunk).Delete(&domain.MessageHistoryModel{})
		if res.Error != nil {
			return res.Error
		}
		result.HistoryDeleted += res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete message history: %w", err)
	}

	err = eachChunk(ids, func(chunk []string) error {
		var n int64
		if err := tx.Model(&domain.MessageModel{}).Where("id IN ?", chunk).Count(&n).Error; err != nil {
			return err
		}
		result.MessagesDeleted += n
		return tx.Where("id IN ?", chunk).Delete(&domain.MessageModel{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}

	return result, nil
}

// deepestFirst orders message ids so that every reply precedes its parent.
func deepestFirst(parents map[string]*string) []string {
	depth := make(map[string]int, len(parents))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		if p := parents[id]; p != nil {
			if _, ok := parents[*p]; ok {
				d = depthOf(*p) + 1
			}
		}
		depth[id] = d
		return d
	}

	ids := make([]string, 0, len(parents))
	for id := range parents {
		depthOf(id)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if depth[ids[i]] != depth[ids[j]] {
			return depth[ids[i]] > depth[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func eachChunk(ids []string, fn func(chunk []string) error) error {
	for start := 0; start < len(ids); start += inClauseChunk {
		end := start + inClauseChunk
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// uniqueIDs drops blanks and duplicates, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
