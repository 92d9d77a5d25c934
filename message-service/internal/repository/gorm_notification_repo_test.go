package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	f := newFixture(t)

	first := f.send(t, "2", "1", "first", nil)
	second := f.send(t, "3", "1", "second", nil)
	f.send(t, "1", "2", "outgoing", nil)

	all, err := f.notifications.ListForUser(t.Context(), "1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].MessageID)
	assert.Equal(t, first.ID, all[1].MessageID)

	changed, err := f.notifications.MarkRead(t.Context(), "1", all[1].ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.notifications.MarkRead(t.Context(), "1", all[1].ID)
	require.NoError(t, err)
	assert.False(t, changed)

	unread, err := f.notifications.ListForUser(t.Context(), "1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].MessageID)

	_, err = f.notifications.MarkRead(t.Context(), "2", all[0].ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}
