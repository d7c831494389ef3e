// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/omarsaab96/unihelp-sub002/internal/delivery"
	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter generates unique, monotonically increasing IDs for
// clients so fan-out order is deterministic.
var clientIDCounter atomic.Uint64

// Deliverer accepts an inbound chat message and runs it through the
// persistence, fan-out, and notification pipeline.
type Deliverer interface {
	Deliver(ctx context.Context, cmd delivery.SendCommand) (*delivery.Result, error)
}

// Client is one authenticated WebSocket session. It bridges the
// connection to the hub (outbound events) and to the delivery
// coordinator (inbound sends).
type Client struct {
	id     uint64
	userID string

	hub       *Hub
	deliverer Deliverer
	conn      *websocket.Conn
	send      chan Event

	// sendMu guards send against the hub closing the channel while the
	// read pump is queueing an event on it.
	sendMu     sync.Mutex
	sendClosed bool
}

// NewClient creates a session for an upgraded connection.
func NewClient(hub *Hub, deliverer Deliverer, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		userID:    userID,
		hub:       hub,
		deliverer: deliverer,
		conn:      conn,
		send:      make(chan Event, 256),
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the user this session belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// inboundEvent is the raw wire shape of client-to-server events; Data
// is decoded per event type.
type inboundEvent struct {
	Type   string          `json:"type"`
	ChatID string          `json:"chatId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// sendPayload is the Data shape of a sendMessage event.
type sendPayload struct {
	ReceiverID   string              `json:"receiverId"`
	Text         string              `json:"text"`
	Kind         models.MessageKind  `json:"kind,omitempty"`
	Attachments  []models.Attachment `json:"attachments,omitempty"`
	ClientTempID string              `json:"tempId,omitempty"`
}

// readPump pumps events from the connection to the hub and coordinator.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev inboundEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("user_id", c.userID).Msg("unexpected websocket close error")
			}
			break
		}
		c.handleEvent(ev)
	}
}

// handleEvent dispatches one inbound event. Malformed events are
// reported back to the session and never terminate the connection.
func (c *Client) handleEvent(ev inboundEvent) {
	switch ev.Type {
	case EventTypePing:
		c.trySend(Event{Type: EventTypePong})

	case EventTypeJoin:
		chatID, err := uuid.Parse(ev.ChatID)
		if err != nil {
			c.trySend(errorEvent(ev.ChatID, "invalid chat id"))
			return
		}
		c.hub.Subscribe(c, chatID)

	case EventTypeLeave:
		chatID, err := uuid.Parse(ev.ChatID)
		if err != nil {
			c.trySend(errorEvent(ev.ChatID, "invalid chat id"))
			return
		}
		c.hub.Unsubscribe(c, chatID)

	case EventTypeSendMessage:
		c.handleSend(ev)

	default:
		logging.Debug().
			Str("user_id", c.userID).
			Str("event_type", ev.Type).
			Msg("ignoring unknown websocket event")
	}
}

// handleSend runs an inbound message through the delivery pipeline.
// Validation failures are echoed back to the sender; persistence
// failures are logged server-side only, and the client learns nothing
// until it resyncs over HTTP.
func (c *Client) handleSend(ev inboundEvent) {
	chatID, err := uuid.Parse(ev.ChatID)
	if err != nil {
		c.trySend(errorEvent(ev.ChatID, "invalid chat id"))
		return
	}

	var payload sendPayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			c.trySend(errorEvent(ev.ChatID, "malformed send payload"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	_, err = c.deliverer.Deliver(ctx, delivery.SendCommand{
		ChatID:       chatID,
		SenderID:     c.userID,
		ReceiverID:   payload.ReceiverID,
		Text:         payload.Text,
		Kind:         payload.Kind,
		Attachments:  payload.Attachments,
		ClientTempID: payload.ClientTempID,
	})
	if err != nil {
		if errors.Is(err, delivery.ErrValidation) {
			c.trySend(errorEvent(ev.ChatID, err.Error()))
			return
		}
		logging.Error().Err(err).
			Str("user_id", c.userID).
			Str("chat_id", ev.ChatID).
			Msg("message delivery failed")
	}
}

func errorEvent(chatID, msg string) Event {
	return Event{Type: EventTypeError, ChatID: chatID, Data: map[string]string{"message": msg}}
}

// trySend queues an event for the session without blocking the read
// loop; a full buffer drops the event, a closed session ignores it.
func (c *Client) trySend(ev Event) {
	c.enqueue(ev)
}

// enqueue queues an event for the write pump. It reports false when
// the buffer is full or the session is already closed.
func (c *Client) enqueue(ev Event) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound buffer exactly once. Only the hub
// calls this; enqueue checks the flag under the same lock, so a close
// can never race a send.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// writePump pumps events from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
