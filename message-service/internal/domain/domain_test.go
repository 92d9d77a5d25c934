package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"admin":     RoleAdmin,
		" Admin ":   RoleAdmin,
		"moderator": RoleModerator,
		"user":      RoleUser,
		"":          RoleUser,
		"root":      RoleUser,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseRole(in), in)
	}
}

func TestActorPermissions(t *testing.T) {
	assert.True(t, Actor{Role: RoleAdmin}.IsAdmin())
	assert.True(t, Actor{Role: RoleAdmin}.CanModerate())
	assert.True(t, Actor{Role: RoleModerator}.CanModerate())
	assert.False(t, Actor{Role: RoleModerator}.IsAdmin())
	assert.False(t, Actor{Role: RoleUser}.CanModerate())
}

func TestMessageModelRoundTrip(t *testing.T) {
	parent := "p-1"
	msg := &Message{
		ID:         "m-1",
		SenderID:   "a",
		ReceiverID: "b",
		Content:    "hi",
		ParentID:   &parent,
		RootID:     "r-1",
		Edited:     true,
		Read:       true,
		Version:    3,
		CreatedAt:  time.Unix(100, 0).UTC(),
	}
	assert.Equal(t, msg, MessageToModel(msg).ToDomain())
	assert.False(t, msg.IsRoot())
	assert.True(t, msg.IsParticipant("b"))
	assert.False(t, msg.IsParticipant("c"))
	assert.Equal(t, "b", msg.Counterpart("a"))
	assert.Equal(t, "a", msg.Counterpart("b"))
}
