// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// fakeGateway records sends and returns a canned response.
type fakeGateway struct {
	sends [][]models.PushMessage
	fail  error
}

func (g *fakeGateway) Send(_ context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
	g.sends = append(g.sends, messages)
	if g.fail != nil {
		return nil, g.fail
	}
	tickets := make([]models.PushTicket, len(messages))
	for i := range tickets {
		tickets[i] = models.PushTicket{ID: "t1", Status: models.PushTicketOK}
	}
	return tickets, nil
}

func newTestDispatcher(t *testing.T, gw Gateway) (*Dispatcher, *MemoryTokenStore, *store.MemoryStore) {
	t.Helper()
	tokens := NewMemoryTokenStore()
	records := store.NewMemoryStore()
	return NewDispatcher(gw, tokens, records, true, 0, 0), tokens, records
}

func TestDispatchNoTokenIsNoOp(t *testing.T) {
	gw := &fakeGateway{}
	d, _, records := newTestDispatcher(t, gw)

	tickets, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, true)
	require.NoError(t, err)
	assert.Nil(t, tickets)
	assert.Empty(t, gw.sends)

	// No record either: the no-op applies regardless of persist.
	list, err := records.ListNotifications(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDispatchInvalidTokenIsHardError(t *testing.T) {
	gw := &fakeGateway{}
	d, tokens, records := newTestDispatcher(t, gw)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID:    "bob",
		PushToken: "not-a-push-token",
	}))

	_, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, true)
	require.ErrorIs(t, err, ErrInvalidPushToken)
	assert.Empty(t, gw.sends)

	list, err := records.ListNotifications(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDispatchRecordsNotificationOnSuccess(t *testing.T) {
	gw := &fakeGateway{}
	d, tokens, records := newTestDispatcher(t, gw)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID:    "bob",
		PushToken: "ExponentPushToken[device1]",
	}))

	data := map[string]interface{}{"chatId": "c1"}
	tickets, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", data, true)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Len(t, gw.sends, 1)
	assert.Equal(t, "ExponentPushToken[device1]", gw.sends[0][0].To)
	assert.Equal(t, "default", gw.sends[0][0].Sound)

	list, err := records.ListNotifications(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Title)
	assert.Equal(t, "c1", list[0].Data["chatId"])
	assert.Len(t, list[0].Tickets, 1)
	assert.Empty(t, list[0].GatewayError)
}

func TestDispatchGatewayFailureStillRecordsExactlyOne(t *testing.T) {
	gw := &fakeGateway{fail: errors.New("gateway down")}
	d, tokens, records := newTestDispatcher(t, gw)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID:    "bob",
		PushToken: "ExponentPushToken[device1]",
	}))

	// The transport failure must be absorbed, not returned.
	_, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, true)
	require.NoError(t, err)

	list, err := records.ListNotifications(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Tickets)
	assert.Contains(t, list[0].GatewayError, "gateway down")
}

func TestDispatchPersistFalseSkipsRecord(t *testing.T) {
	gw := &fakeGateway{}
	d, tokens, records := newTestDispatcher(t, gw)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID:    "bob",
		PushToken: "ExponentPushToken[device1]",
	}))

	tickets, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, false)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	list, err := records.ListNotifications(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDispatchDisabled(t *testing.T) {
	gw := &fakeGateway{}
	tokens := NewMemoryTokenStore()
	records := store.NewMemoryStore()
	d := NewDispatcher(gw, tokens, records, false, 0, 0)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID:    "bob",
		PushToken: "ExponentPushToken[device1]",
	}))

	tickets, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, true)
	require.NoError(t, err)
	assert.Nil(t, tickets)
	assert.Empty(t, gw.sends)
}

func TestDispatchSkipsMalformedAmongValidTokens(t *testing.T) {
	gw := &fakeGateway{}
	d, tokens, _ := newTestDispatcher(t, gw)

	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID: "bob", PushToken: "ExponentPushToken[good]",
	}))
	require.NoError(t, tokens.Register(context.Background(), &models.Device{
		UserID: "bob", PushToken: "garbage",
	}))

	_, err := d.Dispatch(context.Background(), "bob", "Alice", "hi", nil, false)
	require.NoError(t, err)
	require.Len(t, gw.sends, 1)
	require.Len(t, gw.sends[0], 1)
	assert.Equal(t, "ExponentPushToken[good]", gw.sends[0][0].To)
}

func TestTokenStoreRegisterRemove(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, &models.Device{UserID: "u1", PushToken: "ExponentPushToken[a]"}))
	require.NoError(t, s.Register(ctx, &models.Device{UserID: "u1", PushToken: "ExponentPushToken[b]"}))
	// Re-registering the same token is idempotent.
	require.NoError(t, s.Register(ctx, &models.Device{UserID: "u1", PushToken: "ExponentPushToken[a]"}))

	tokens, err := s.TokensForUser(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ExponentPushToken[a]", "ExponentPushToken[b]"}, tokens)

	require.NoError(t, s.Remove(ctx, "u1", "ExponentPushToken[a]"))
	tokens, err = s.TokensForUser(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ExponentPushToken[b]"}, tokens)
}
