package domain

import "time"

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	SenderID   string    `gorm:"type:varchar(36);not null;index:idx_messages_sender_created,priority:1"`
	ReceiverID string    `gorm:"type:varchar(36);not null;index:idx_messages_receiver_unread,priority:1"`
	Content    string    `gorm:"type:text;not null"`
	ParentID   *string   `gorm:"type:varchar(36);index"`
	RootID     string    `gorm:"type:varchar(36);not null;index"`
	Edited     bool      `gorm:"not null;default:false"`
	Read       bool      `gorm:"column:is_read;not null;default:false;index:idx_messages_receiver_unread,priority:2"`
	Version    int64     `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"not null;index:idx_messages_sender_created,priority:2;index:idx_messages_receiver_unread,priority:3"`

	Parent *MessageModel `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		ParentID:   m.ParentID,
		RootID:     m.RootID,
		Edited:     m.Edited,
		Read:       m.Read,
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		ParentID:   msg.ParentID,
		RootID:     msg.RootID,
		Edited:     msg.Edited,
		Read:       msg.Read,
		Version:    msg.Version,
		CreatedAt:  msg.CreatedAt,
	}
}

// MessageHistoryModel is the GORM model for the message_histories table.
type MessageHistoryModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	MessageID  string    `gorm:"type:varchar(36);not null;index:idx_history_message_edited,priority:1"`
	OldContent string    `gorm:"type:text;not null"`
	EditedBy   *string   `gorm:"type:varchar(36);index"`
	EditedAt   time.Time `gorm:"not null;index:idx_history_message_edited,priority:2"`

	Message *MessageModel `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for MessageHistoryModel.
func (MessageHistoryModel) TableName() string {
	return "message_histories"
}

// ToDomain converts MessageHistoryModel to domain MessageHistory.
func (m *MessageHistoryModel) ToDomain() *MessageHistory {
	return &MessageHistory{
		ID:         m.ID,
		MessageID:  m.MessageID,
		OldContent: m.OldContent,
		EditedBy:   m.EditedBy,
		EditedAt:   m.EditedAt,
	}
}

// MessageHistoryToModel converts domain MessageHistory to MessageHistoryModel.
func MessageHistoryToModel(h *MessageHistory) *MessageHistoryModel {
	return &MessageHistoryModel{
		ID:         h.ID,
		MessageID:  h.MessageID,
		OldContent: h.OldContent,
		EditedBy:   h.EditedBy,
		EditedAt:   h.EditedAt,
	}
}

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_notifications_user_created,priority:1"`
	MessageID string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index:idx_notifications_user_created,priority:2"`

	Message *MessageModel `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for NotificationModel.
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts NotificationModel to domain Notification.
func (m *NotificationModel) ToDomain() *Notification {
	return &Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		MessageID: m.MessageID,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}

// NotificationToModel converts domain Notification to NotificationModel.
func NotificationToModel(n *Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		MessageID: n.MessageID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// Models lists every table owned by the service, for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&MessageModel{},
		&MessageHistoryModel{},
		&NotificationModel{},
	}
}
