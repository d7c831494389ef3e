// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/metrics"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was
	// canceled. This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Event types exchanged over the WebSocket connection.
const (
	EventTypeJoin        = "join"
	EventTypeLeave       = "leave"
	EventTypeSendMessage = "sendMessage"
	EventTypeNewMessage  = "newMessage"
	EventTypeError       = "error"
	EventTypePing        = "ping"
	EventTypePong        = "pong"
)

// Event is the envelope for all WebSocket traffic in both directions.
type Event struct {
	Type   string      `json:"type"`
	ChatID string      `json:"chatId,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// subscription pairs a client with the conversation it is joining or
// leaving.
type subscription struct {
	client *Client
	chatID uuid.UUID
}

// publishReq carries an event to every session subscribed to a
// conversation.
type publishReq struct {
	chatID uuid.UUID
	event  Event
}

// Hub routes conversation events to the sessions subscribed to them.
//
// Unlike a broadcast hub, delivery is scoped: an event published for a
// conversation reaches only clients that joined that conversation.
// Subscriptions live in hub memory only; when the hub restarts, all
// sessions are dropped and clients must reconnect and re-join.
type Hub struct {
	clients map[*Client]bool

	// subscribers indexes sessions by conversation; clientSubs is the
	// reverse index used to clean up on disconnect.
	subscribers map[uuid.UUID]map[*Client]bool
	clientSubs  map[*Client]map[uuid.UUID]bool

	Register    chan *Client
	Unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan publishReq

	mu sync.RWMutex
}

// NewHub creates a hub with no subscriptions.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[uuid.UUID]map[*Client]bool),
		clientSubs:  make(map[*Client]map[uuid.UUID]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		subscribe:   make(chan subscription, 64),
		unsubscribe: make(chan subscription, 64),
		publish:     make(chan publishReq, 256),
	}
}

// Subscribe joins the client to a conversation so it receives events
// published for it. Idempotent per (client, conversation).
func (h *Hub) Subscribe(c *Client, chatID uuid.UUID) {
	h.subscribe <- subscription{client: c, chatID: chatID}
}

// Unsubscribe removes the client from a conversation.
func (h *Hub) Unsubscribe(c *Client, chatID uuid.UUID) {
	h.unsubscribe <- subscription{client: c, chatID: chatID}
}

// Publish fans an event out to every session subscribed to the
// conversation. Publishing to a conversation with no subscribers is a
// no-op. Never blocks the caller: if the hub's queue is full the event
// is dropped with a warning, since live delivery is best-effort and the
// message is already durable.
func (h *Hub) Publish(chatID uuid.UUID, event Event) {
	select {
	case h.publish <- publishReq{chatID: chatID, event: event}:
	default:
		logging.Warn().
			Str("chat_id", chatID.String()).
			Str("event_type", event.Type).
			Msg("publish queue full, dropping event")
	}
}

// RelayMessage publishes a persisted message to the conversation's
// subscribers as a newMessage event. This is the hub's side of the
// delivery pipeline's relay stage.
func (h *Hub) RelayMessage(chatID uuid.UUID, msg *models.Message) {
	h.Publish(chatID, Event{
		Type:   EventTypeNewMessage,
		ChatID: chatID.String(),
		Data:   msg,
	})
}

// RunWithContext runs the hub's routing loop until the context is
// canceled. Designed for suture supervision: on shutdown every client
// is closed and all subscriptions are discarded, so a restarted hub
// begins empty.
//
// DETERMINISM: Uses priority-based selection so behavior is predictable
// when multiple channels are ready:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle and subscription changes
// - Priority 3: Published events
// Session state is therefore always settled before an event fans out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Lifecycle and subscription changes (non-blocking)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		case sub := <-h.subscribe:
			h.addSubscription(sub)
			continue
		case sub := <-h.unsubscribe:
			h.removeSubscription(sub)
			continue
		default:
		}

		// Priority 3: Published events, or wait for any activity
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case sub := <-h.subscribe:
			h.addSubscription(sub)
		case sub := <-h.unsubscribe:
			h.removeSubscription(sub)
		case req := <-h.publish:
			h.fanOut(req)
		}
	}
}

// updateGauges refreshes the connection and subscription gauges from
// the authoritative maps. Callers must hold h.mu.
func (h *Hub) updateGauges() {
	subs := 0
	for _, chats := range h.clientSubs {
		subs += len(chats)
	}
	metrics.WebSocketConnections.Set(float64(len(h.clients)))
	metrics.WebSocketSubscriptions.Set(float64(subs))
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.updateGauges()
	h.mu.Unlock()
	logging.Info().
		Str("user_id", c.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// removeClient drops the client and every subscription it holds.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
	}
	for chatID := range h.clientSubs[c] {
		delete(h.subscribers[chatID], c)
		if len(h.subscribers[chatID]) == 0 {
			delete(h.subscribers, chatID)
		}
	}
	delete(h.clientSubs, c)
	total := len(h.clients)
	h.updateGauges()
	h.mu.Unlock()
	logging.Info().
		Str("user_id", c.userID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

func (h *Hub) addSubscription(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sub.client]; !ok {
		// Client already disconnected; ignore the late join.
		return
	}
	if h.subscribers[sub.chatID] == nil {
		h.subscribers[sub.chatID] = make(map[*Client]bool)
	}
	h.subscribers[sub.chatID][sub.client] = true
	if h.clientSubs[sub.client] == nil {
		h.clientSubs[sub.client] = make(map[uuid.UUID]bool)
	}
	h.clientSubs[sub.client][sub.chatID] = true
	h.updateGauges()
}

func (h *Hub) removeSubscription(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subscribers[sub.chatID], sub.client)
	if len(h.subscribers[sub.chatID]) == 0 {
		delete(h.subscribers, sub.chatID)
	}
	delete(h.clientSubs[sub.client], sub.chatID)
	h.updateGauges()
}

// fanOut delivers the event to each subscribed session in a
// deterministic order.
//
// DETERMINISM: Clients are sorted by their monotonically assigned id so
// delivery order is reproducible in tests. A client whose send buffer
// is full is dropped rather than blocking the loop: the message is
// persisted regardless, and a client that cannot drain its buffer will
// resync over HTTP when it reconnects.
func (h *Hub) fanOut(req publishReq) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[req.chatID]
	if len(subs) == 0 {
		return
	}

	clients := make([]*Client, 0, len(subs))
	for client := range subs {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if !client.enqueue(req.event) {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		logging.Warn().
			Str("user_id", client.userID).
			Str("chat_id", req.chatID.String()).
			Msg("client send buffer full, dropping client")
		client.closeSend()
		delete(h.clients, client)
		for chatID := range h.clientSubs[client] {
			delete(h.subscribers[chatID], client)
			if len(h.subscribers[chatID]) == 0 {
				delete(h.subscribers, chatID)
			}
		}
		delete(h.clientSubs, client)
	}
	if len(toRemove) > 0 {
		h.updateGauges()
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	reason := getShutdownReason(ctx)
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every connection and clears all subscription
// state. Called during shutdown so a supervised restart starts clean.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.subscribers = make(map[uuid.UUID]map[*Client]bool)
	h.clientSubs = make(map[*Client]map[uuid.UUID]bool)
	h.updateGauges()
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of sessions joined to a
// conversation.
func (h *Hub) SubscriberCount(chatID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[chatID])
}
