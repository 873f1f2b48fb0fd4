package chat_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/interopae/travel-concierge/backend/internal/model/chat"
	chat "github.com/interopae/travel-concierge/backend/internal/service/chat"
)

func TestServiceGetOrCreate(t *testing.T) {
	svc := chat.NewService("travel_concierge")
	ctx := context.Background()

	conv, created, err := svc.GetOrCreate(ctx, "u1", "trip")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "trip", conv.ID)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, "travel_concierge", conv.AppName)

	again, created, err := svc.GetOrCreate(ctx, "u1", "trip")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.CreatedAt, again.CreatedAt)
}

func TestServiceDefaultConversationIsPerUser(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()

	a, _, err := svc.GetOrCreate(ctx, "alice", "")
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(ctx, "bob", "")
	require.NoError(t, err)

	assert.Equal(t, chatmodel.DefaultConversationID, a.ID)
	assert.Equal(t, chatmodel.DefaultConversationID, b.ID)
	assert.Equal(t, 2, svc.Len())

	require.NoError(t, svc.SaveMessage(ctx, "alice", chatmodel.Message{Sender: chatmodel.SenderUser, Content: "hi"}))

	bobHistory, err := svc.LoadTranscript(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, bobHistory)
}

func TestServiceRequiresUser(t *testing.T) {
	svc := chat.NewService("app")
	_, _, err := svc.GetOrCreate(context.Background(), "", "x")
	assert.ErrorIs(t, err, chat.ErrUserRequired)
}

func TestServiceUserIDsAreOpaque(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()

	for _, userID := range []string{"alice ", " ", "al/ice%20", "ålice"} {
		conv, created, err := svc.GetOrCreate(ctx, userID, "trip")
		require.NoError(t, err, userID)
		assert.True(t, created)
		assert.Equal(t, userID, conv.UserID)

		require.NoError(t, svc.SaveMessage(ctx, userID, chatmodel.Message{ConversationID: "trip", Sender: chatmodel.SenderUser, Content: "hi"}))
		msgs, err := svc.LoadTranscript(ctx, userID, "trip")
		require.NoError(t, err, userID)
		assert.Len(t, msgs, 1)

		_, err = svc.Get(ctx, userID, "trip")
		require.NoError(t, err, userID)
	}

	_, err := svc.LoadTranscript(ctx, "alice", "trip")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)

	svc.Delete(ctx, "alice ", "trip")
	_, err = svc.Get(ctx, "alice ", "trip")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestServiceSaveAndLoadTranscript(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()

	_, _, err := svc.GetOrCreate(ctx, "u1", "c1")
	require.NoError(t, err)

	require.NoError(t, svc.SaveMessage(ctx, "u1", chatmodel.Message{ConversationID: "c1", Sender: chatmodel.SenderUser, Content: "find a hotel"}))
	require.NoError(t, svc.SaveMessage(ctx, "u1", chatmodel.Message{ConversationID: "c1", Sender: chatmodel.SenderAssistant, Content: "where to?"}))

	msgs, err := svc.LoadTranscript(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "find a hotel", msgs[0].Content)
	assert.Equal(t, chatmodel.SenderAssistant, msgs[1].Sender)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	msgs[0].Content = "mutated"
	fresh, err := svc.LoadTranscript(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "find a hotel", fresh[0].Content)
}

func TestServiceSaveMessageUnknownConversation(t *testing.T) {
	svc := chat.NewService("app")
	err := svc.SaveMessage(context.Background(), "u1", chatmodel.Message{ConversationID: "missing", Content: "x"})
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)

	_, err = svc.LoadTranscript(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestServiceDelete(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()

	id := chat.NewConversationID()
	_, _, err := svc.GetOrCreate(ctx, "u1", id)
	require.NoError(t, err)

	svc.Delete(ctx, "u1", id)
	svc.Delete(ctx, "u1", id)
	assert.Zero(t, svc.Len())
}

func TestServiceConcurrentAccess(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()
	_, _, err := svc.GetOrCreate(ctx, "u1", "c1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.SaveMessage(ctx, "u1", chatmodel.Message{ConversationID: "c1", Sender: chatmodel.SenderUser, Content: "x"})
			_, _ = svc.LoadTranscript(ctx, "u1", "c1")
		}()
	}
	wg.Wait()

	msgs, err := svc.LoadTranscript(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 50)
}

func TestServiceGet(t *testing.T) {
	svc := chat.NewService("app")
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1", "")
	require.ErrorIs(t, err, chat.ErrConversationNotFound)

	created, _, err := svc.GetOrCreate(ctx, "u1", "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, chatmodel.DefaultConversationID, got.ID)
}
