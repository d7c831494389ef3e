// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

func TestFindOrCreateConversationIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, first.Participants)
	assert.ElementsMatch(t, []string{"alice", "bob"}, first.VisibleTo)

	// Same pair in reverse order resolves to the same conversation.
	second, err := s.FindOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A different pair gets its own conversation.
	other, err := s.FindOrCreateConversation(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestFindOrCreateConversationRequiresBothIDs(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.FindOrCreateConversation(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAppendMessageValidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  models.Message
	}{
		{"missing sender", models.Message{ChatID: conv.ID, ReceiverID: "bob", Text: "hi"}},
		{"missing receiver", models.Message{ChatID: conv.ID, SenderID: "alice", Text: "hi"}},
		{"missing chat id", models.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi"}},
		{"unknown kind", models.Message{ChatID: conv.ID, SenderID: "alice", ReceiverID: "bob", Kind: "hologram"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AppendMessage(ctx, &tt.msg)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAppendMessageAssignsIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	msg := &models.Message{ChatID: conv.ID, SenderID: "alice", ReceiverID: "bob", Text: "hello"}
	require.NoError(t, s.AppendMessage(ctx, msg))

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, models.MessageKindText, msg.Kind)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := NewMemoryStore()

	msg := &models.Message{ChatID: uuid.New(), SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	err := s.AppendMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessagesNewestFirstWithCursor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ChatID:     conv.ID,
			SenderID:   "alice",
			ReceiverID: "bob",
			Text:       string(rune('a' + i)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.AppendMessage(ctx, msg))
	}

	page, err := s.ListMessages(ctx, conv.ID, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "e", page[0].Text)
	assert.Equal(t, "d", page[1].Text)
	assert.Equal(t, "c", page[2].Text)

	next, err := s.ListMessages(ctx, conv.ID, page[2].CreatedAt, 3)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "b", next[0].Text)
	assert.Equal(t, "a", next[1].Text)
}

func TestListConversationsOrderedByNewestMessage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withBob, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, err := s.FindOrCreateConversation(ctx, "alice", "carol")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.AppendMessage(ctx, &models.Message{
		ChatID: withBob.ID, SenderID: "alice", ReceiverID: "bob",
		Text: "older", CreatedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, s.AppendMessage(ctx, &models.Message{
		ChatID: withCarol.ID, SenderID: "carol", ReceiverID: "alice",
		Text: "newer", CreatedAt: now,
	}))

	list, err := s.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withCarol.ID, list[0].ID)
	assert.Equal(t, "newer", list[0].LastMessageText)
	assert.Equal(t, "carol", list[0].LastMessageSenderID)
	assert.Equal(t, withBob.ID, list[1].ID)
}

func TestListConversationsIgnoresStaleSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	old := &models.Message{
		ChatID: conv.ID, SenderID: "alice", ReceiverID: "bob",
		Text: "first", CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, s.AppendMessage(ctx, old))
	require.NoError(t, s.TouchLastMessage(ctx, conv.ID, old))

	// Append a newer message without refreshing the snapshot; the inbox
	// must still surface it.
	newer := &models.Message{
		ChatID: conv.ID, SenderID: "bob", ReceiverID: "alice",
		Text: "second", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendMessage(ctx, newer))

	list, err := s.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].LastMessageText)
	assert.Equal(t, "first", list[0].LastMessage.Text)
}

func TestHideAndReopenConversation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, s.MarkDeletedForUser(ctx, conv.ID, "alice", time.Now()))

	list, err := s.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Still visible to the other participant.
	list, err = s.ListConversationsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Opening restores visibility.
	require.NoError(t, s.MarkOpened(ctx, conv.ID, "alice", time.Now()))
	list, err = s.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n := &models.Notification{
		UserID: "bob",
		Title:  "Alice",
		Body:   "hello",
		Data:   map[string]interface{}{"chatId": "abc"},
	}
	require.NoError(t, s.CreateNotification(ctx, n))
	require.NotEqual(t, uuid.Nil, n.ID)

	list, err := s.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	require.NoError(t, s.MarkNotificationRead(ctx, n.ID, time.Now()))
	list, err = s.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	require.True(t, list[0].Read)
	require.NotNil(t, list[0].ReadAt)

	require.NoError(t, s.SoftDeleteNotification(ctx, n.ID, time.Now()))
	list, err = s.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Deleted records reject further state changes.
	err = s.MarkNotificationRead(ctx, n.ID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserUpsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}))
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.DisplayName())

	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "u1", FirstName: "Grace"}))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.DisplayName())
}
