package domain

import "time"

// UnreadMessage is the projection returned by the unread index.
type UnreadMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// MessageSummary is a top-level message in a user's message list.
type MessageSummary struct {
	Message
	ReplyCount int64 `json:"reply_count"`
}

// MessageWithHistory is a message together with its edits, newest first.
type MessageWithHistory struct {
	Message
	History []MessageHistory `json:"history"`
}

// ThreadView is a thread root plus every transitive reply, oldest first.
type ThreadView struct {
	RootID   string               `json:"root_id"`
	Messages []MessageWithHistory `json:"messages"`
}

// ConversationSummary groups a user's messages by counterpart.
type ConversationSummary struct {
	CounterpartID string   `json:"counterpart_id"`
	MessageCount  int64    `json:"message_count"`
	UnreadCount   int64    `json:"unread_count"`
	LastMessage   *Message `json:"last_message"`
}

// RemovalResult describes what an actor removal touched, so that derived
// views owned by other actors can be invalidated.
type RemovalResult struct {
	MessagesDeleted      int64    `json:"messages_deleted"`
	NotificationsDeleted int64    `json:"notifications_deleted"`
	HistoryDeleted       int64    `json:"history_deleted"`
	Counterparts         []string `json:"-"`
	ThreadRoots          []string `json:"-"`
}
