package domain

import "time"

// Message is a user-to-user message, optionally replying to another one.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	ParentID   *string   `json:"parent_id,omitempty"`
	RootID     string    `json:"root_id"`
	Edited     bool      `json:"edited"`
	Read       bool      `json:"read"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsRoot reports whether m starts a thread.
func (m *Message) IsRoot() bool {
	return m.ParentID == nil
}

// IsParticipant reports whether userID sent or received m.
func (m *Message) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the other participant from userID's point of view.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// MessageHistory is an append-only snapshot of content replaced by an edit.
// EditedBy is nil when the editing actor was unknown.
type MessageHistory struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	OldContent string    `json:"old_content"`
	EditedBy   *string   `json:"edited_by,omitempty"`
	EditedAt   time.Time `json:"edited_at"`
}

// Notification tells a receiver that a message arrived.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
