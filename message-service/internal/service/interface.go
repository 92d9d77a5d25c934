package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
)

// MessageService defines the interface for messaging business logic. The
// cached views are returned as encoded JSON so that a cache hit is served
// byte for byte.
type MessageService interface {
	CreateMessage(ctx context.Context, actor domain.Actor, req *domain.CreateMessageRequest) (*domain.Message, error)
	EditMessage(ctx context.Context, actor domain.Actor, messageID string, req *domain.EditMessageRequest) (*domain.Message, error)
	GetMessage(ctx context.Context, actor domain.Actor, messageID string) (*domain.MessageWithHistory, error)
	MarkMessageRead(ctx context.Context, actor domain.Actor, messageID string) error
	MarkMessagesRead(ctx context.Context, actor domain.Actor, messageIDs []string) (int64, error)
	UnreadFor(ctx context.Context, actor domain.Actor) ([]domain.UnreadMessage, error)

	ListMessages(ctx context.Context, actor domain.Actor) ([]byte, error)
	ListConversations(ctx context.Context, actor domain.Actor) ([]byte, error)
	// GetThread returns the whole thread containing messageID, each
	// message with its edit history.
	GetThread(ctx context.Context, actor domain.Actor, messageID string) ([]byte, error)

	ListNotifications(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, actor domain.Actor, notificationID string) error

	// RemoveActor deletes every message, notification and history row
	// that references targetID. Actors may remove themselves; admins may
	// remove anyone.
	RemoveActor(ctx context.Context, actor domain.Actor, targetID string) (*domain.RemovalResult, error)
	// HandleActorRemoved applies an account deletion published by the
	// user service.
	HandleActorRemoved(ctx context.Context, userID string) error
}

// TokenRevoker invalidates outstanding tokens of a removed actor.
type TokenRevoker interface {
	RevokeUserTokens(userID string)
}
