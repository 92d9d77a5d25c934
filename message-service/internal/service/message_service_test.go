package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/message-service/internal/cache"
	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
)

func TestCreateMessageNotifiesReceiver(t *testing.T) {
	f := newFixture(t)

	msg := f.send(t, alice, bob, "hello", nil)

	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, msg.ID, msg.RootID)
	assert.False(t, msg.Read)
	assert.Equal(t, int64(1), f.count(t, &domain.NotificationModel{},
		"user_id = ? AND message_id = ? AND is_read = ?", "bob", msg.ID, false))

	notifications, err := f.svc.ListNotifications(t.Context(), bob, true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, msg.ID, notifications[0].MessageID)
}

func TestCreateMessageValidation(t *testing.T) {
	f := newFixture(t)
	missing := "does-not-exist"

	tests := []struct {
		name string
		req  domain.CreateMessageRequest
	}{
		{name: "missing receiver", req: domain.CreateMessageRequest{Content: "hi"}},
		{name: "blank receiver", req: domain.CreateMessageRequest{ReceiverID: "   ", Content: "hi"}},
		{name: "empty content", req: domain.CreateMessageRequest{ReceiverID: "bob"}},
		{name: "whitespace content", req: domain.CreateMessageRequest{ReceiverID: "bob", Content: " \n\t"}},
		{name: "content too long", req: domain.CreateMessageRequest{ReceiverID: "bob", Content: strings.Repeat("x", MaxContentLength+1)}},
		{name: "unknown parent", req: domain.CreateMessageRequest{ReceiverID: "bob", Content: "hi", ParentID: &missing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateMessage(t.Context(), alice, &tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	assert.Zero(t, f.count(t, &domain.MessageModel{}, "1 = 1"))
	assert.Zero(t, f.count(t, &domain.NotificationModel{}, "1 = 1"))
}

func TestCreateMessageInvalidatesBothParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	for _, a := range []domain.Actor{alice, bob, carol} {
		_, err := f.svc.ListMessages(ctx, a)
		require.NoError(t, err)
		_, err = f.svc.ListConversations(ctx, a)
		require.NoError(t, err)
	}
	require.True(t, f.mr.Exists(key(cache.ViewMessages, "alice")))

	f.send(t, alice, bob, "hi", nil)

	for _, owner := range []string{"alice", "bob"} {
		assert.False(t, f.mr.Exists(key(cache.ViewMessages, owner)), owner)
		assert.False(t, f.mr.Exists(key(cache.ViewConversations, owner)), owner)
	}
	assert.True(t, f.mr.Exists(key(cache.ViewMessages, "carol")))

	payload, err := f.svc.ListMessages(ctx, bob)
	require.NoError(t, err)
	var summaries []domain.MessageSummary
	require.NoError(t, json.Unmarshal(payload, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "hi", summaries[0].Content)
}

func TestReplyInvalidatesThread(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	root := f.send(t, alice, bob, "root", nil)
	_, err := f.svc.GetThread(ctx, bob, root.ID)
	require.NoError(t, err)
	require.True(t, f.mr.Exists(key(cache.ViewThread, root.ID)))

	reply := f.send(t, bob, alice, "reply", root)
	assert.Equal(t, root.ID, reply.RootID)
	assert.False(t, f.mr.Exists(key(cache.ViewThread, root.ID)))

	payload, err := f.svc.GetThread(ctx, alice, reply.ID)
	require.NoError(t, err)
	var thread domain.ThreadView
	require.NoError(t, json.Unmarshal(payload, &thread))
	assert.Equal(t, root.ID, thread.RootID)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "root", thread.Messages[0].Content)
	assert.Equal(t, "reply", thread.Messages[1].Content)
}

func TestCachedReadsAreByteIdentical(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	root := f.send(t, alice, bob, "one", nil)
	f.send(t, bob, alice, "two", root)

	for _, load := range []func() ([]byte, error){
		func() ([]byte, error) { return f.svc.ListMessages(ctx, alice) },
		func() ([]byte, error) { return f.svc.ListConversations(ctx, alice) },
		func() ([]byte, error) { return f.svc.GetThread(ctx, alice, root.ID) },
	} {
		first, err := load()
		require.NoError(t, err)
		second, err := load()
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestEditScenario(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	msg := f.send(t, alice, bob, "hello", nil)

	edited, err := f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "hello there"})
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello there", edited.Content)
	assert.Equal(t, int64(1), f.count(t, &domain.MessageHistoryModel{},
		"message_id = ? AND old_content = ? AND edited_by = ?", msg.ID, "hello", "alice"))

	again, err := f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, edited.Version, again.Version)
	assert.Equal(t, int64(1), f.count(t, &domain.MessageHistoryModel{}, "message_id = ?", msg.ID))

	detail, err := f.svc.GetMessage(ctx, bob, msg.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	assert.Equal(t, "hello", detail.History[0].OldContent)
}

func TestEditMessageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	msg := f.send(t, alice, bob, "hello", nil)
	stale := msg.Version - 1

	_, err := f.svc.EditMessage(ctx, bob, msg.ID, &domain.EditMessageRequest{Content: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.EditMessage(ctx, alice, "missing", &domain.EditMessageRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "new", Version: &stale})
	assert.ErrorIs(t, err, ErrConflict)

	assert.Zero(t, f.count(t, &domain.MessageHistoryModel{}, "1 = 1"))
}

func TestEditInvalidatesViews(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	msg := f.send(t, alice, bob, "hello", nil)

	_, err := f.svc.ListMessages(ctx, bob)
	require.NoError(t, err)
	_, err = f.svc.GetThread(ctx, bob, msg.ID)
	require.NoError(t, err)

	_, err = f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "changed"})
	require.NoError(t, err)

	assert.False(t, f.mr.Exists(key(cache.ViewMessages, "bob")))
	assert.False(t, f.mr.Exists(key(cache.ViewThread, msg.ID)))
}

func TestMarkMessagesReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	m1 := f.send(t, alice, bob, "1", nil)
	m2 := f.send(t, alice, bob, "2", nil)
	foreign := f.send(t, bob, alice, "3", nil)

	_, err := f.svc.ListConversations(ctx, alice)
	require.NoError(t, err)

	ids := []string{m1.ID, m2.ID, foreign.ID, "unknown"}
	updated, err := f.svc.MarkMessagesRead(ctx, bob, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.False(t, f.mr.Exists(key(cache.ViewConversations, "alice")), "sender views show the read flag")

	updated, err = f.svc.MarkMessagesRead(ctx, bob, ids)
	require.NoError(t, err)
	assert.Zero(t, updated)

	unread, err := f.svc.UnreadFor(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.NotNil(t, unread)

	_, err = f.svc.MarkMessagesRead(ctx, bob, make([]string, MaxBulkRead+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMarkMessageRead(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	msg := f.send(t, alice, bob, "hi", nil)

	assert.ErrorIs(t, f.svc.MarkMessageRead(ctx, alice, msg.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.MarkMessageRead(ctx, bob, "nope"), ErrMessageNotFound)

	require.NoError(t, f.svc.MarkMessageRead(ctx, bob, msg.ID))
	require.NoError(t, f.svc.MarkMessageRead(ctx, bob, msg.ID))
	assert.Equal(t, int64(1), f.count(t, &domain.MessageModel{}, "id = ? AND is_read = ?", msg.ID, true))
}

func TestUnreadForOrdersOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.send(t, alice, bob, "first", nil)
	f.send(t, carol, bob, "second", nil)
	f.send(t, bob, alice, "outgoing", nil)

	unread, err := f.svc.UnreadFor(t.Context(), bob)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "first", unread[0].Content)
	assert.Equal(t, "carol", unread[1].SenderID)
}

func TestMessageVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	msg := f.send(t, alice, bob, "private", nil)

	_, err := f.svc.GetMessage(ctx, carol, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetThread(ctx, carol, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetMessage(ctx, mod, msg.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetThread(ctx, admin, msg.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetThread(ctx, alice, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestThreadAccessFollowsRoot(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	secret := f.send(t, alice, bob, "alice-bob-secret", nil)

	parentID := secret.ID
	_, err := f.svc.CreateMessage(ctx, carol, &domain.CreateMessageRequest{ReceiverID: "alice", Content: "let me in", ParentID: &parentID})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int64(1), f.count(t, &domain.MessageModel{}, "1 = 1"))

	// carol is a participant of the reply but not of the thread.
	reply := f.send(t, bob, carol, "looping carol in", secret)
	_, err = f.svc.GetMessage(ctx, carol, reply.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetThread(ctx, carol, reply.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.send(t, mod, alice, "moderator note", secret)

	payload, err := f.svc.GetThread(ctx, alice, reply.ID)
	require.NoError(t, err)
	var thread domain.ThreadView
	require.NoError(t, json.Unmarshal(payload, &thread))
	assert.Equal(t, secret.ID, thread.RootID)
	assert.Len(t, thread.Messages, 3)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.send(t, alice, bob, "hi", nil)

	all, err := f.svc.ListNotifications(ctx, bob, false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	assert.ErrorIs(t, f.svc.MarkNotificationRead(ctx, alice, all[0].ID), ErrNotificationNotFound)
	require.NoError(t, f.svc.MarkNotificationRead(ctx, bob, all[0].ID))
	require.NoError(t, f.svc.MarkNotificationRead(ctx, bob, all[0].ID))

	unread, err := f.svc.ListNotifications(ctx, bob, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestRemoveActorCascades(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	root := f.send(t, alice, bob, "root", nil)
	reply := f.send(t, bob, carol, "bob loops carol in", root)
	kept := f.send(t, bob, carol, "unrelated", nil)
	_, err := f.svc.EditMessage(ctx, bob, reply.ID, &domain.EditMessageRequest{Content: "edited"})
	require.NoError(t, err)

	_, err = f.svc.ListMessages(ctx, carol)
	require.NoError(t, err)
	_, err = f.svc.GetThread(ctx, carol, kept.ID)
	require.NoError(t, err)

	result, err := f.svc.RemoveActor(ctx, alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.MessagesDeleted)

	assert.Zero(t, f.count(t, &domain.MessageModel{}, "sender_id = ? OR receiver_id = ?", "alice", "alice"))
	assert.Zero(t, f.count(t, &domain.NotificationModel{}, "user_id = ?", "alice"))
	assert.Zero(t, f.count(t, &domain.MessageHistoryModel{}, "edited_by = ?", "alice"))
	assert.Zero(t, f.count(t, &domain.MessageHistoryModel{}, "message_id = ?", reply.ID))
	assert.Equal(t, int64(1), f.count(t, &domain.MessageModel{}, "id = ?", kept.ID))

	assert.False(t, f.mr.Exists(key(cache.ViewMessages, "carol")), "counterpart views dropped")
	assert.True(t, f.mr.Exists(key(cache.ViewThread, kept.ID)))
	assert.Equal(t, []string{"alice"}, f.revoker.revoked)
}

func TestRemoveActorAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.send(t, alice, bob, "hi", nil)

	_, err := f.svc.RemoveActor(ctx, bob, "alice")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.RemoveActor(ctx, mod, "alice")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int64(1), f.count(t, &domain.MessageModel{}, "1 = 1"))

	_, err = f.svc.RemoveActor(ctx, admin, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.RemoveActor(ctx, admin, "alice")
	require.NoError(t, err)
	assert.Zero(t, f.count(t, &domain.MessageModel{}, "1 = 1"))
}

func TestHandleActorRemoved(t *testing.T) {
	f := newFixture(t)
	f.send(t, alice, bob, "hi", nil)

	require.NoError(t, f.svc.HandleActorRemoved(t.Context(), "bob"))
	assert.Zero(t, f.count(t, &domain.MessageModel{}, "1 = 1"))
	assert.Equal(t, []string{"bob"}, f.revoker.revoked)

	assert.ErrorIs(t, f.svc.HandleActorRemoved(t.Context(), " "), ErrInvalidInput)
}

func TestOperationsSurviveCacheOutage(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.mr.Close()

	msg := f.send(t, alice, bob, "still works", nil)

	payload, err := f.svc.ListMessages(ctx, bob)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "still works")

	_, err = f.svc.EditMessage(ctx, alice, msg.ID, &domain.EditMessageRequest{Content: "edited offline"})
	require.NoError(t, err)

	updated, err := f.svc.MarkMessagesRead(ctx, bob, []string{msg.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	_, err = f.svc.GetThread(ctx, bob, msg.ID)
	require.NoError(t, err)
}
