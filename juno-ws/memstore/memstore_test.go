package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/tj/assert"
)

func TestConnections(t *testing.T) {
	ctx := context.Background()
	store := NewConnections()

	t.Run("update missing", func(t *testing.T) {
		status := connectiondao.UserStatusAway
		err := store.Update(ctx, "nope", connectiondao.Patch{UserStatus: &status})
		assert.True(t, errors.Is(err, connectiondao.ErrNotFound))

		got, err := store.Get(ctx, "nope")
		assert.Nil(t, err)
		assert.Nil(t, got)
	})

	t.Run("patch leaves other fields", func(t *testing.T) {
		assert.Nil(t, store.Put(ctx, connectiondao.Connection{ConnectionID: "a", UserID: "u", UserStatus: "busy"}))

		activity := "2024-01-01T00:00:00.000Z"
		assert.Nil(t, store.Update(ctx, "a", connectiondao.Patch{LastActivity: &activity}))

		got, err := store.Get(ctx, "a")
		assert.Nil(t, err)
		assert.Equal(t, "busy", got.UserStatus)
		assert.Equal(t, activity, got.LastActivity)
		assert.Equal(t, "u", got.UserID)
	})
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptions()

	assert.Nil(t, store.Replace(ctx, "a", "u", "e", []string{"x", "y"}, 0))
	assert.Nil(t, store.Replace(ctx, "b", "u", "e", []string{"x"}, 0))
	assert.Nil(t, store.Replace(ctx, "a", "u", "e", []string{"y"}, 0))

	subs, _ := store.QueryByTopic(ctx, "x")
	assert.Len(t, subs, 1)
	assert.Equal(t, "b", subs[0].ConnectionID)

	assert.Nil(t, store.DeleteByConnection(ctx, "a"))
	subs, _ = store.QueryByTopic(ctx, "y")
	assert.Len(t, subs, 0)
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	store := NewChat()

	for i, ts := range []string{"2024-01-01T00:00:01.000Z", "2024-01-01T00:00:02.000Z", "2024-01-01T00:00:03.000Z"} {
		role := chatdao.RoleUser
		if i%2 == 1 {
			role = chatdao.RoleAssistant
		}
		assert.Nil(t, store.SaveMessage(ctx, chatdao.NewMessage("u", "c", ts, role, ts, ts)))
	}

	msgs, err := store.RecentMessages(ctx, "u", "c", 2)
	assert.Nil(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "2024-01-01T00:00:02.000Z", msgs[0].Content)
	assert.Equal(t, "2024-01-01T00:00:03.000Z", msgs[1].Content)

	update := chatdao.ConversationUpdate{UserID: "u", ConversationID: "c", Title: "t", UpdatedAt: "1", AddedMessages: 2}
	assert.Nil(t, store.TouchConversation(ctx, update))
	update.UpdatedAt = "2"
	assert.Nil(t, store.TouchConversation(ctx, update))

	conv, err := store.GetConversation(ctx, "u", "c")
	assert.Nil(t, err)
	assert.Equal(t, 4, conv.MessageCount)
	assert.Equal(t, "1", conv.CreatedAt)
	assert.Equal(t, "2", conv.UpdatedAt)
}
