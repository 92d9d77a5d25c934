package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrParentNotFound       = errors.New("parent message not found")
	ErrMissingReceiver      = errors.New("message has no receiver")
	ErrNotSender            = errors.New("actor is not the sender")
	ErrNotReceiver          = errors.New("actor is not the receiver")
	ErrVersionConflict      = errors.New("message was modified concurrently")
	ErrNotificationNotFound = errors.New("notification not found")
)

// EditParams describes a content edit. An empty EditorID marks an edit
// by an unknown actor: the sender check is skipped and the history row
// records no editor.
type EditParams struct {
	MessageID       string
	EditorID        string
	Content         string
	ExpectedVersion *int64
}

// EditResult is the outcome of an edit. History is nil and Changed is
// false when the new content matched the stored content.
type EditResult struct {
	Message *domain.Message
	History *domain.MessageHistory
	Changed bool
}

// ReadResult is the outcome of a bulk read-marking.
type ReadResult struct {
	Updated     int64
	Senders     []string
	ThreadRoots []string
}

// MessageRepository persists messages. Every mutation runs together with
// its derived side effects in one transaction.
type MessageRepository interface {
	// Create inserts msg and its receiver notification atomically.
	Create(ctx context.Context, msg *domain.Message) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// Edit snapshots the prior content and applies the new one atomically.
	Edit(ctx context.Context, params EditParams) (*EditResult, error)
	ListTopLevel(ctx context.Context, userID string) ([]domain.MessageSummary, error)
	ListThread(ctx context.Context, rootID string) ([]domain.MessageWithHistory, error)
	ListHistory(ctx context.Context, messageID string) ([]domain.MessageHistory, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	// RemoveActor deletes everything that references actorID atomically.
	RemoveActor(ctx context.Context, actorID string) (*domain.RemovalResult, error)
}

// UnreadIndex queries and flips the read state of received messages.
type UnreadIndex interface {
	UnreadFor(ctx context.Context, userID string) ([]domain.UnreadMessage, error)
	MarkRead(ctx context.Context, userID string, ids []string) (*ReadResult, error)
	MarkOneRead(ctx context.Context, userID, id string) (*domain.Message, bool, error)
}

// NotificationRepository exposes notifications to their recipient.
type NotificationRepository interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
}
