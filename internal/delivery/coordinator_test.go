// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// recordingRelay captures fan-out invocations.
type recordingRelay struct {
	calls []relayCall
}

type relayCall struct {
	chatID uuid.UUID
	msg    *models.Message
}

func (r *recordingRelay) RelayMessage(chatID uuid.UUID, msg *models.Message) {
	r.calls = append(r.calls, relayCall{chatID: chatID, msg: msg})
}

// recordingNotifier captures dispatch invocations and can fail.
type recordingNotifier struct {
	calls []dispatchCall
	err   error
}

type dispatchCall struct {
	userID  string
	title   string
	body    string
	data    map[string]interface{}
	persist bool
}

func (n *recordingNotifier) Dispatch(_ context.Context, userID, title, body string, data map[string]interface{}, persist bool) ([]models.PushTicket, error) {
	n.calls = append(n.calls, dispatchCall{userID: userID, title: title, body: body, data: data, persist: persist})
	if n.err != nil {
		return nil, n.err
	}
	return []models.PushTicket{{ID: "t1", Status: models.PushTicketOK}}, nil
}

func newTestPipeline(t *testing.T) (*Coordinator, *store.MemoryStore, *recordingRelay, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	relay := &recordingRelay{}
	notifier := &recordingNotifier{}

	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, &models.User{ID: "u1", FirstName: "Alice"}))
	require.NoError(t, st.UpsertUser(ctx, &models.User{ID: "u2", FirstName: "Bob"}))

	return NewCoordinator(st, relay, notifier), st, relay, notifier
}

func TestDeliverFirstMessageBetweenUsers(t *testing.T) {
	coord, st, relay, notifier := newTestPipeline(t)
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	result, err := coord.Deliver(ctx, SendCommand{
		ChatID:       conv.ID,
		SenderID:     "u1",
		ReceiverID:   "u2",
		Text:         "hi",
		ClientTempID: "tmp-42",
	})
	require.NoError(t, err)
	require.Equal(t, StageDone, result.Stage)

	// Exactly one message persisted with a server-generated id distinct
	// from the client correlation id.
	msgs, err := st.ListMessages(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "u1", msgs[0].SenderID)
	assert.Equal(t, "u2", msgs[0].ReceiverID)
	assert.NotEqual(t, uuid.Nil, msgs[0].ID)
	assert.Empty(t, msgs[0].ClientTempID)

	// Fan-out carries the same message plus the correlation id.
	require.Len(t, relay.calls, 1)
	assert.Equal(t, conv.ID, relay.calls[0].chatID)
	assert.Equal(t, msgs[0].ID, relay.calls[0].msg.ID)
	assert.Equal(t, "tmp-42", relay.calls[0].msg.ClientTempID)

	// One dispatch for the receiver with the sender's name in the title.
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "u2", notifier.calls[0].userID)
	assert.Contains(t, notifier.calls[0].title, "Alice")
	assert.Equal(t, "hi", notifier.calls[0].body)
	assert.Equal(t, conv.ID.String(), notifier.calls[0].data["chatId"])
	assert.True(t, notifier.calls[0].persist)
	assert.True(t, result.Notified)
}

func TestDeliverRelaysEvenWithNoSubscribers(t *testing.T) {
	coord, st, relay, notifier := newTestPipeline(t)
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	// Second scenario: the sender is the only party online or neither
	// is. Relay is still invoked (empty fan-out is a no-op downstream)
	// and the other participant is still notified.
	result, err := coord.Deliver(ctx, SendCommand{
		ChatID:     conv.ID,
		SenderID:   "u2",
		ReceiverID: "u1",
		Text:       "are you there?",
	})
	require.NoError(t, err)
	assert.Equal(t, StageDone, result.Stage)
	assert.Len(t, relay.calls, 1)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "u1", notifier.calls[0].userID)
	assert.Contains(t, notifier.calls[0].title, "Bob")
}

func TestDeliverUnknownConversationIsValidation(t *testing.T) {
	coord, _, relay, notifier := newTestPipeline(t)

	result, err := coord.Deliver(context.Background(), SendCommand{
		ChatID:     uuid.New(),
		SenderID:   "u1",
		ReceiverID: "u2",
		Text:       "hi",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StageReceived, result.Stage)
	assert.Empty(t, relay.calls)
	assert.Empty(t, notifier.calls)
}

func TestDeliverNonMemberIsValidation(t *testing.T) {
	coord, st, relay, _ := newTestPipeline(t)
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = coord.Deliver(ctx, SendCommand{
		ChatID:     conv.ID,
		SenderID:   "intruder",
		ReceiverID: "u2",
		Text:       "hi",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, relay.calls)

	// Nothing was persisted.
	msgs, err := st.ListMessages(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeliverNotifierFailureDoesNotPropagate(t *testing.T) {
	coord, st, relay, notifier := newTestPipeline(t)
	notifier.err = errors.New("gateway exploded")
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	result, err := coord.Deliver(ctx, SendCommand{
		ChatID:     conv.ID,
		SenderID:   "u1",
		ReceiverID: "u2",
		Text:       "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StageDone, result.Stage)
	assert.False(t, result.Notified)

	// The message survived the side-effect failure.
	msgs, err := st.ListMessages(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Len(t, relay.calls, 1)
}

func TestDeliverSkipsNotificationWhenIdentityUnresolved(t *testing.T) {
	st := store.NewMemoryStore()
	relay := &recordingRelay{}
	notifier := &recordingNotifier{}
	coord := NewCoordinator(st, relay, notifier)
	ctx := context.Background()

	// Neither participant exists in the user mirror.
	conv, err := st.FindOrCreateConversation(ctx, "ghost1", "ghost2")
	require.NoError(t, err)

	result, err := coord.Deliver(ctx, SendCommand{
		ChatID:     conv.ID,
		SenderID:   "ghost1",
		ReceiverID: "ghost2",
		Text:       "boo",
	})
	require.NoError(t, err)
	assert.Equal(t, StageDone, result.Stage)
	assert.Empty(t, notifier.calls)

	// Persist and relay still happened.
	msgs, err := st.ListMessages(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Len(t, relay.calls, 1)
}

func TestDeliverRefreshesLastMessageSnapshot(t *testing.T) {
	coord, st, _, _ := newTestPipeline(t)
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = coord.Deliver(ctx, SendCommand{
		ChatID:     conv.ID,
		SenderID:   "u1",
		ReceiverID: "u2",
		Text:       "snapshot me",
	})
	require.NoError(t, err)

	got, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "snapshot me", got.LastMessage.Text)
	assert.Equal(t, "u1", got.LastMessage.SenderID)
}
