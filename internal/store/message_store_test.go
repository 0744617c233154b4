package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/archive"
	"github.com/vbonduro/glowly/internal/domain"
)

var _ archive.Archive = (*MessageStore)(nil)

func TestMessageStoreStoreAndList(t *testing.T) {
	messages := NewMessageStore(openTestDB(t))
	ctx := context.Background()

	err := messages.Store(ctx, "chat-1", "user-1", []domain.ChatMessage{
		{Role: "user", Content: "Is my skin dry?"},
		{Role: "assistant", Content: "A little. Try a humectant serum.", ContentType: "markdown"},
	})
	require.NoError(t, err)

	err = messages.Store(ctx, "chat-1", "user-1", []domain.ChatMessage{
		{Role: "user", Content: "Show me products"},
	})
	require.NoError(t, err)

	list, err := messages.List(ctx, "user-1", "chat-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "user", list[0].Role)
	assert.Equal(t, "text", list[0].ContentType)
	assert.Equal(t, "markdown", list[1].ContentType)
	assert.Equal(t, "Show me products", list[2].Content)
	assert.False(t, list[0].Timestamp.IsZero())
}

func TestMessageStoreKeepsTimestamp(t *testing.T) {
	messages := NewMessageStore(openTestDB(t))
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, messages.Store(ctx, "chat-1", "user-1", []domain.ChatMessage{
		{Role: "user", Content: "hello", Timestamp: ts},
	}))

	list, err := messages.List(ctx, "user-1", "chat-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, ts.Equal(list[0].Timestamp))
}

func TestMessageStoreListFallsBackToFirstChat(t *testing.T) {
	messages := NewMessageStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, messages.Store(ctx, "chat-a", "user-1", []domain.ChatMessage{{Role: "user", Content: "first chat"}}))
	require.NoError(t, messages.Store(ctx, "chat-b", "user-1", []domain.ChatMessage{{Role: "user", Content: "second chat"}}))

	list, err := messages.List(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first chat", list[0].Content)
	assert.Equal(t, "chat-a", list[0].ChatID)
}

func TestMessageStoreListUnknownUID(t *testing.T) {
	messages := NewMessageStore(openTestDB(t))

	list, err := messages.List(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMessageStoreRequiresChatID(t *testing.T) {
	messages := NewMessageStore(openTestDB(t))

	err := messages.Store(context.Background(), "", "user-1", []domain.ChatMessage{{Role: "user", Content: "x"}})
	assert.Error(t, err)
}
