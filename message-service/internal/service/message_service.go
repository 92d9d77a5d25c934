package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-live/message-service/internal/audit"
	"github.com/weiawesome/wes-io-live/message-service/internal/cache"
	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
	"github.com/weiawesome/wes-io-live/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-live/message-service/internal/repository"
	"github.com/weiawesome/wes-io-live/pkg/log"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 4000

// MaxBulkRead caps the ids accepted by one bulk read-marking.
const MaxBulkRead = 1000

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("message was modified concurrently")
)

// Removal triggers.
const (
	removalSourceAPI   = "api"
	removalSourceEvent = "event"
)

// messageServiceImpl implements MessageService interface.
type messageServiceImpl struct {
	messages      repository.MessageRepository
	unread        repository.UnreadIndex
	notifications repository.NotificationRepository
	views         *cache.ViewCache
	revoker       TokenRevoker
}

// NewMessageService creates a new message service. revoker may be nil.
func NewMessageService(
	messages repository.MessageRepository,
	unread repository.UnreadIndex,
	notifications repository.NotificationRepository,
	views *cache.ViewCache,
	revoker TokenRevoker,
) MessageService {
	return &messageServiceImpl{
		messages:      messages,
		unread:        unread,
		notifications: notifications,
		views:         views,
		revoker:       revoker,
	}
}

// CreateMessage stores a message and its receiver notification.
func (s *messageServiceImpl) CreateMessage(ctx context.Context, actor domain.Actor, req *domain.CreateMessageRequest) (*domain.Message, error) {
	l := log.Ctx(ctx)

	receiverID := strings.TrimSpace(req.ReceiverID)
	if receiverID == "" {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidInput)
	}
	if err := validateID("receiver_id", receiverID); err != nil {
		return nil, err
	}
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   actor.ID,
		ReceiverID: receiverID,
		Content:    req.Content,
	}
	if req.ParentID != nil {
		parentID := strings.TrimSpace(*req.ParentID)
		if err := validateID("parent_id", parentID); err != nil {
			return nil, err
		}
		if err := s.checkReplyAccess(ctx, actor, parentID); err != nil {
			return nil, err
		}
		msg.ParentID = &parentID
	}

	notification, err := s.messages.Create(ctx, msg)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMissingReceiver):
			return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidInput)
		case errors.Is(err, repository.ErrParentNotFound):
			return nil, fmt.Errorf("%w: parent message does not exist", ErrInvalidInput)
		}
		l.Error().Err(err).Str(log.FieldUserID, actor.ID).Msg("failed to create message")
		return nil, err
	}

	targets := cache.UserViews(msg.SenderID, msg.ReceiverID)
	if !msg.IsRoot() {
		targets = append(targets, cache.ThreadViews(msg.RootID)...)
	}
	s.invalidate(ctx, targets...)

	metrics.MessagesCreated.Inc()
	audit.LogWithDetail(ctx, audit.ActionCreateMessage, actor.ID, msg.ID, "notification="+notification.ID, "message created")
	return msg, nil
}

// EditMessage replaces the content of a message sent by actor.
func (s *messageServiceImpl) EditMessage(ctx context.Context, actor domain.Actor, messageID string, req *domain.EditMessageRequest) (*domain.Message, error) {
	l := log.Ctx(ctx)

	if err := validateID("id", messageID); err != nil {
		return nil, err
	}
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}

	result, err := s.messages.Edit(ctx, repository.EditParams{
		MessageID:       messageID,
		EditorID:        actor.ID,
		Content:         req.Content,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMessageNotFound):
			return nil, ErrMessageNotFound
		case errors.Is(err, repository.ErrNotSender):
			return nil, fmt.Errorf("%w: only the sender can edit a message", ErrForbidden)
		case errors.Is(err, repository.ErrVersionConflict):
			metrics.MessageEdits.WithLabelValues(metrics.EditConflict).Inc()
			audit.LogTarget(ctx, audit.ActionEditMessageConflict, actor.ID, messageID, "edit rejected by concurrent change")
			return nil, ErrConflict
		}
		l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to edit message")
		return nil, err
	}

	if !result.Changed {
		metrics.MessageEdits.WithLabelValues(metrics.EditNoop).Inc()
		return result.Message, nil
	}

	msg := result.Message
	s.invalidate(ctx, append(cache.UserViews(msg.SenderID, msg.ReceiverID), cache.ThreadViews(msg.RootID)...)...)

	metrics.MessageEdits.WithLabelValues(metrics.EditChanged).Inc()
	audit.LogTarget(ctx, audit.ActionEditMessage, actor.ID, msg.ID, "message edited")
	return msg, nil
}

// GetMessage returns a message with its edit history. Only participants
// and moderators may read it.
func (s *messageServiceImpl) GetMessage(ctx context.Context, actor domain.Actor, messageID string) (*domain.MessageWithHistory, error) {
	msg, err := s.visibleMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListHistory(ctx, msg.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to list message history")
		return nil, err
	}
	if history == nil {
		history = []domain.MessageHistory{}
	}

	return &domain.MessageWithHistory{Message: *msg, History: history}, nil
}

// MarkMessageRead marks one received message read.
func (s *messageServiceImpl) MarkMessageRead(ctx context.Context, actor domain.Actor, messageID string) error {
	if err := validateID("id", messageID); err != nil {
		return err
	}

	msg, changed, err := s.unread.MarkOneRead(ctx, actor.ID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMessageNotFound):
			return ErrMessageNotFound
		case errors.Is(err, repository.ErrNotReceiver):
			return fmt.Errorf("%w: only the receiver can mark a message read", ErrForbidden)
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to mark message read")
		return err
	}
	if !changed {
		return nil
	}

	s.invalidate(ctx, append(cache.UserViews(actor.ID, msg.SenderID), cache.ThreadViews(msg.RootID)...)...)

	metrics.MessagesMarkedRead.Inc()
	audit.LogTarget(ctx, audit.ActionReadMessage, actor.ID, messageID, "message marked read")
	return nil
}

// MarkMessagesRead marks the given received messages read and returns how
// many actually changed.
func (s *messageServiceImpl) MarkMessagesRead(ctx context.Context, actor domain.Actor, messageIDs []string) (int64, error) {
	if len(messageIDs) > MaxBulkRead {
		return 0, fmt.Errorf("%w: at most %d ids per request", ErrInvalidInput, MaxBulkRead)
	}
	for _, id := range messageIDs {
		if err := validateID("ids", id); err != nil {
			return 0, err
		}
	}

	result, err := s.unread.MarkRead(ctx, actor.ID, messageIDs)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, actor.ID).Msg("failed to mark messages read")
		return 0, err
	}
	if result.Updated == 0 {
		return 0, nil
	}

	targets := cache.UserViews(append([]string{actor.ID}, result.Senders...)...)
	s.invalidate(ctx, append(targets, cache.ThreadViews(result.ThreadRoots...)...)...)

	metrics.MessagesMarkedRead.Add(float64(result.Updated))
	audit.LogWithDetail(ctx, audit.ActionReadMessages, actor.ID, actor.ID,
		fmt.Sprintf("requested=%d updated=%d", len(messageIDs), result.Updated), "messages marked read")
	return result.Updated, nil
}

// UnreadFor lists actor's unread messages, oldest first.
func (s *messageServiceImpl) UnreadFor(ctx context.Context, actor domain.Actor) ([]domain.UnreadMessage, error) {
	unread, err := s.unread.UnreadFor(ctx, actor.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, actor.ID).Msg("failed to list unread messages")
		return nil, err
	}
	if unread == nil {
		unread = []domain.UnreadMessage{}
	}
	return unread, nil
}

// ListMessages returns actor's top-level messages, newest first.
func (s *messageServiceImpl) ListMessages(ctx context.Context, actor domain.Actor) ([]byte, error) {
	return s.views.Load(ctx, cache.ViewMessages, actor.ID, func(ctx context.Context) (any, error) {
		summaries, err := s.messages.ListTopLevel(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if summaries == nil {
			summaries = []domain.MessageSummary{}
		}
		return summaries, nil
	})
}

// ListConversations returns actor's messages grouped by counterpart.
func (s *messageServiceImpl) ListConversations(ctx context.Context, actor domain.Actor) ([]byte, error) {
	return s.views.Load(ctx, cache.ViewConversations, actor.ID, func(ctx context.Context) (any, error) {
		conversations, err := s.messages.ListConversations(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if conversations == nil {
			conversations = []domain.ConversationSummary{}
		}
		return conversations, nil
	})
}

// GetThread returns the thread containing messageID. Access is decided by
// the thread root, whichever message of the thread is named.
func (s *messageServiceImpl) GetThread(ctx context.Context, actor domain.Actor, messageID string) ([]byte, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	root := msg
	if !msg.IsRoot() {
		if root, err = s.loadMessage(ctx, msg.RootID); err != nil {
			return nil, err
		}
	}
	if !root.IsParticipant(actor.ID) && !actor.CanModerate() {
		return nil, fmt.Errorf("%w: not a participant of this thread", ErrForbidden)
	}

	rootID := root.ID
	payload, err := s.views.Load(ctx, cache.ViewThread, rootID, func(ctx context.Context) (any, error) {
		messages, err := s.messages.ListThread(ctx, rootID)
		if err != nil {
			return nil, err
		}
		return domain.ThreadView{RootID: rootID, Messages: messages}, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to load thread")
		return nil, err
	}
	return payload, nil
}

// ListNotifications returns actor's notifications, newest first.
func (s *messageServiceImpl) ListNotifications(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error) {
	notifications, err := s.notifications.ListForUser(ctx, actor.ID, unreadOnly)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, actor.ID).Msg("failed to list notifications")
		return nil, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return notifications, nil
}

// MarkNotificationRead marks one of actor's notifications read.
func (s *messageServiceImpl) MarkNotificationRead(ctx context.Context, actor domain.Actor, notificationID string) error {
	if err := validateID("id", notificationID); err != nil {
		return err
	}

	changed, err := s.notifications.MarkRead(ctx, actor.ID, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldTargetID, notificationID).Msg("failed to mark notification read")
		return err
	}
	if changed {
		audit.LogTarget(ctx, audit.ActionReadNotification, actor.ID, notificationID, "notification marked read")
	}
	return nil
}

// RemoveActor cascades the removal of targetID.
func (s *messageServiceImpl) RemoveActor(ctx context.Context, actor domain.Actor, targetID string) (*domain.RemovalResult, error) {
	targetID = strings.TrimSpace(targetID)
	if err := validateID("id", targetID); err != nil {
		return nil, err
	}
	if actor.ID != targetID && !actor.IsAdmin() {
		audit.LogTarget(ctx, audit.ActionRemoveActorDenied, actor.ID, targetID, "actor removal denied")
		return nil, fmt.Errorf("%w: only admins can remove other actors", ErrForbidden)
	}

	result, err := s.removeActor(ctx, targetID, removalSourceAPI)
	if err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionRemoveActor, actor.ID, targetID, removalDetail(result), "actor removed")
	return result, nil
}

// HandleActorRemoved applies an account deletion event.
func (s *messageServiceImpl) HandleActorRemoved(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	result, err := s.removeActor(ctx, userID, removalSourceEvent)
	if err != nil {
		return err
	}

	audit.LogWithDetail(ctx, audit.ActionRemoveActorByEvent, "", userID, removalDetail(result), "actor removed by account deletion")
	return nil
}

func (s *messageServiceImpl) removeActor(ctx context.Context, targetID, source string) (*domain.RemovalResult, error) {
	result, err := s.messages.RemoveActor(ctx, targetID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldTargetID, targetID).Str("source", source).Msg("failed to remove actor")
		return nil, err
	}

	if s.revoker != nil {
		s.revoker.RevokeUserTokens(targetID)
	}

	targets := cache.UserViews(append([]string{targetID}, result.Counterparts...)...)
	s.invalidate(ctx, append(targets, cache.ThreadViews(result.ThreadRoots...)...)...)

	metrics.ActorsRemoved.WithLabelValues(source).Inc()
	return result, nil
}

// loadMessage fetches a message without any access check.
func (s *messageServiceImpl) loadMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	if err := validateID("id", messageID); err != nil {
		return nil, err
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to get message")
		return nil, err
	}
	return msg, nil
}

// checkReplyAccess allows a reply only from a participant of the parent
// or a moderator. A missing parent is an input error.
func (s *messageServiceImpl) checkReplyAccess(ctx context.Context, actor domain.Actor, parentID string) error {
	parent, err := s.messages.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return fmt.Errorf("%w: parent message does not exist", ErrInvalidInput)
		}
		return err
	}
	if !parent.IsParticipant(actor.ID) && !actor.CanModerate() {
		audit.LogTarget(ctx, audit.ActionReplyDenied, actor.ID, parentID, "reply to foreign message denied")
		return fmt.Errorf("%w: not a participant of the parent message", ErrForbidden)
	}
	return nil
}

// visibleMessage loads a message that actor is allowed to read.
func (s *messageServiceImpl) visibleMessage(ctx context.Context, actor domain.Actor, messageID string) (*domain.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if !msg.IsParticipant(actor.ID) && !actor.CanModerate() {
		return nil, fmt.Errorf("%w: not a participant of this message", ErrForbidden)
	}
	return msg, nil
}

// invalidate drops views after a commit. The request context may already
// be cancelled by then, so the deletes run on a detached one.
func (s *messageServiceImpl) invalidate(ctx context.Context, targets ...cache.Target) {
	s.views.Invalidate(log.Detach(ctx), targets...)
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, MaxContentLength)
	}
	return nil
}

func validateID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if len(id) > idgen.MaxLength {
		return fmt.Errorf("%w: %s is too long", ErrInvalidInput, field)
	}
	return nil
}

func removalDetail(r *domain.RemovalResult) string {
	return fmt.Sprintf("messages=%d notifications=%d history=%d",
		r.MessagesDeleted, r.NotificationsDeleted, r.HistoryDeleted)
}
