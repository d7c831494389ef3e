// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/metrics"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub for testing; the cancel func stops it.
func setupHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub, cancel
}

// createTestClient creates a client without a network connection.
func createTestClient(hub *Hub, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		send:   make(chan Event, 256),
	}
}

// registerClient registers a client and waits for the hub to settle.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func drainEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub.clients == nil {
		t.Fatal("clients map not initialized")
	}
	if hub.subscribers == nil || hub.clientSubs == nil {
		t.Fatal("subscription maps not initialized")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestPublishReachesOnlySubscribers(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatA := uuid.New()
	chatB := uuid.New()

	inA := createTestClient(hub, "u1")
	alsoInA := createTestClient(hub, "u2")
	inB := createTestClient(hub, "u3")
	registerClient(hub, inA)
	registerClient(hub, alsoInA)
	registerClient(hub, inB)

	hub.Subscribe(inA, chatA)
	hub.Subscribe(alsoInA, chatA)
	hub.Subscribe(inB, chatB)
	time.Sleep(20 * time.Millisecond)

	hub.Publish(chatA, Event{Type: EventTypeNewMessage, ChatID: chatA.String()})
	time.Sleep(20 * time.Millisecond)

	for _, c := range []*Client{inA, alsoInA} {
		ev := drainEvent(t, c)
		if ev.Type != EventTypeNewMessage {
			t.Fatalf("expected newMessage, got %s", ev.Type)
		}
	}
	select {
	case ev := <-inB.send:
		t.Fatalf("client in other conversation received %s", ev.Type)
	default:
	}
}

func TestPublishToEmptyConversationIsNoOp(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	client := createTestClient(hub, "u1")
	registerClient(hub, client)

	// No one subscribed to this conversation; nothing should arrive.
	hub.Publish(uuid.New(), Event{Type: EventTypeNewMessage})
	time.Sleep(20 * time.Millisecond)

	select {
	case ev := <-client.send:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestRelayMessage(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	client := createTestClient(hub, "u2")
	registerClient(hub, client)
	hub.Subscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	msg := &models.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: "u1",
		Text:     "hello",
	}
	hub.RelayMessage(chatID, msg)

	ev := drainEvent(t, client)
	if ev.Type != EventTypeNewMessage {
		t.Fatalf("expected newMessage, got %s", ev.Type)
	}
	if ev.ChatID != chatID.String() {
		t.Fatalf("expected chat id %s, got %s", chatID, ev.ChatID)
	}
	got, ok := ev.Data.(*models.Message)
	if !ok {
		t.Fatalf("expected *models.Message payload, got %T", ev.Data)
	}
	if got.ID != msg.ID || got.Text != "hello" {
		t.Fatal("relayed message does not match original")
	}
}

func TestUnregisterDropsSubscriptions(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	client := createTestClient(hub, "u1")
	registerClient(hub, client)
	hub.Subscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	if hub.SubscriberCount(chatID) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount(chatID))
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.SubscriberCount(chatID) != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount(chatID))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	client := createTestClient(hub, "u1")
	registerClient(hub, client)
	hub.Subscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	hub.Unsubscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	hub.Publish(chatID, Event{Type: EventTypeNewMessage})
	time.Sleep(20 * time.Millisecond)

	select {
	case ev := <-client.send:
		t.Fatalf("unexpected event after leave: %s", ev.Type)
	default:
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	slow := &Client{
		id:     clientIDCounter.Add(1),
		userID: "slow",
		hub:    hub,
		send:   make(chan Event, 1), // tiny buffer, never drained
	}
	registerClient(hub, slow)
	hub.Subscribe(slow, chatID)
	time.Sleep(20 * time.Millisecond)

	hub.Publish(chatID, Event{Type: EventTypeNewMessage})
	hub.Publish(chatID, Event{Type: EventTypeNewMessage})
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected slow client to be dropped, %d clients remain", hub.ClientCount())
	}
	if hub.SubscriberCount(chatID) != 0 {
		t.Fatalf("expected slow client's subscriptions removed, got %d", hub.SubscriberCount(chatID))
	}
}

// A dropped client's read pump may still be handling an inbound event;
// queueing on the closed session must be a silent no-op, not a panic.
func TestSendToDroppedClientIsNoOp(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	slow := &Client{
		id:     clientIDCounter.Add(1),
		userID: "slow",
		hub:    hub,
		send:   make(chan Event, 1), // tiny buffer, never drained
	}
	registerClient(hub, slow)
	hub.Subscribe(slow, chatID)
	time.Sleep(20 * time.Millisecond)

	hub.Publish(chatID, Event{Type: EventTypeNewMessage})
	hub.Publish(chatID, Event{Type: EventTypeNewMessage})
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected slow client to be dropped, %d clients remain", hub.ClientCount())
	}

	slow.trySend(Event{Type: EventTypePong})
	if slow.enqueue(Event{Type: EventTypePong}) {
		t.Fatal("expected enqueue to report the session closed")
	}
}

func TestGaugesTrackConnectionsAndSubscriptions(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	chatID := uuid.New()
	client := createTestClient(hub, "u1")
	registerClient(hub, client)
	hub.Subscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	if got := testutil.ToFloat64(metrics.WebSocketConnections); got != 1 {
		t.Fatalf("expected 1 active connection, gauge reads %v", got)
	}
	if got := testutil.ToFloat64(metrics.WebSocketSubscriptions); got != 1 {
		t.Fatalf("expected 1 active subscription, gauge reads %v", got)
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if got := testutil.ToFloat64(metrics.WebSocketConnections); got != 0 {
		t.Fatalf("expected 0 active connections, gauge reads %v", got)
	}
	if got := testutil.ToFloat64(metrics.WebSocketSubscriptions); got != 0 {
		t.Fatalf("expected 0 active subscriptions, gauge reads %v", got)
	}
}

func TestShutdownClosesClientsAndClearsSubscriptions(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	chatID := uuid.New()
	client := createTestClient(hub, "u1")
	registerClient(hub, client)
	hub.Subscribe(client, chatID)
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// The send channel was closed during shutdown.
	if _, ok := <-client.send; ok {
		t.Fatal("expected send channel closed")
	}
	if hub.ClientCount() != 0 || hub.SubscriberCount(chatID) != 0 {
		t.Fatal("expected all state cleared after shutdown")
	}
}
