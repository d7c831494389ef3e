// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package delivery orchestrates the per-message pipeline: persist the
// message, relay it to live sessions, and attempt a push notification
// to the receiver. The pipeline is linear and fail-fast on
// persistence; the notification stage is strictly a side effect that
// can never abort or fail the earlier stages.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/metrics"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// Pipeline errors. ErrValidation aliases the store's sentinel so both
// layers' rejections match the same errors.Is check.
var (
	ErrValidation  = store.ErrValidation
	ErrPersistence = errors.New("persistence failed")
)

// Stage names the pipeline state a message reached.
type Stage string

const (
	StageReceived              Stage = "received"
	StagePersisted             Stage = "persisted"
	StageRelayed               Stage = "relayed"
	StageNotificationAttempted Stage = "notification_attempted"
	StageDone                  Stage = "done"
)

// SendCommand is one inbound message send, transport-agnostic: the
// WebSocket layer and the REST layer both submit these.
type SendCommand struct {
	ChatID       uuid.UUID
	SenderID     string
	ReceiverID   string
	Text         string
	Kind         models.MessageKind
	Attachments  []models.Attachment
	ClientTempID string
}

// Result reports how far a message traveled through the pipeline.
type Result struct {
	Message *models.Message
	Stage   Stage

	// Notified is true when a push dispatch was attempted for the
	// receiver; Tickets holds the gateway receipts when it succeeded.
	Notified bool
	Tickets  []models.PushTicket
}

// Relay fans a persisted message out to the conversation's live
// sessions.
type Relay interface {
	RelayMessage(chatID uuid.UUID, msg *models.Message)
}

// Notifier attempts a best-effort push to the user's devices.
type Notifier interface {
	Dispatch(ctx context.Context, userID, title, body string, data map[string]interface{}, persist bool) ([]models.PushTicket, error)
}

// Coordinator runs each message through persist, relay, and notify.
type Coordinator struct {
	store    store.Store
	relay    Relay
	notifier Notifier
}

// NewCoordinator wires the pipeline stages.
func NewCoordinator(st store.Store, relay Relay, notifier Notifier) *Coordinator {
	return &Coordinator{store: st, relay: relay, notifier: notifier}
}

// Deliver processes one send end to end.
//
// Stage transitions:
//  1. Received: the command is checked against the conversation; a
//     sender or receiver outside its membership is a validation error.
//  2. Persisted: the message is durably appended. Failure here is
//     terminal for the message; there is no retry or outbox.
//  3. Relayed: fan-out is invoked unconditionally after persistence.
//     An empty subscriber set is a no-op, not an error.
//  4. NotificationAttempted: the receiver is notified with a title
//     carrying the sender's display name. Identity resolution failure
//     skips the stage silently; dispatch errors are logged and
//     swallowed so the notification side effect can never undo a
//     persisted, relayed message.
//
// Concurrent sends into the same conversation are not serialized:
// near-simultaneous messages from both participants may persist and
// relay in either order, which is acceptable for chat and relied upon
// for throughput.
func (c *Coordinator) Deliver(ctx context.Context, cmd SendCommand) (*Result, error) {
	result := &Result{Stage: StageReceived}

	conv, err := c.store.GetConversation(ctx, cmd.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.MessagesRejected.WithLabelValues("validation").Inc()
			return result, fmt.Errorf("%w: unknown conversation %s", ErrValidation, cmd.ChatID)
		}
		metrics.MessagesRejected.WithLabelValues("persistence").Inc()
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(cmd.SenderID) || !conv.HasParticipant(cmd.ReceiverID) {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return result, fmt.Errorf("%w: sender and receiver must be conversation members", ErrValidation)
	}

	msg := &models.Message{
		ChatID:       cmd.ChatID,
		SenderID:     cmd.SenderID,
		ReceiverID:   cmd.ReceiverID,
		Text:         cmd.Text,
		Kind:         cmd.Kind,
		Attachments:  cmd.Attachments,
		ClientTempID: cmd.ClientTempID,
	}

	if err := c.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrValidation) {
			metrics.MessagesRejected.WithLabelValues("validation").Inc()
			return result, err
		}
		metrics.MessagesRejected.WithLabelValues("persistence").Inc()
		logging.Error().Err(err).
			Str("chat_id", cmd.ChatID.String()).
			Str("sender_id", cmd.SenderID).
			Msg("message persistence failed, message dropped")
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.Message = msg
	result.Stage = StagePersisted
	metrics.MessagesPersisted.Inc()

	// Refresh the cached inbox snapshot. Best-effort: the message is
	// already durable and readers join the message log anyway.
	if err := c.store.TouchLastMessage(ctx, cmd.ChatID, msg); err != nil {
		logging.Warn().Err(err).
			Str("chat_id", cmd.ChatID.String()).
			Msg("failed to refresh last-message snapshot")
	}

	c.relay.RelayMessage(cmd.ChatID, msg)
	result.Stage = StageRelayed
	metrics.EventsRelayed.Inc()

	c.notify(ctx, cmd, msg, result)
	result.Stage = StageDone
	return result, nil
}

// notify runs the notification stage. Every failure path is absorbed
// here: this is the isolation boundary between the chat pipeline and
// the push side effect.
func (c *Coordinator) notify(ctx context.Context, cmd SendCommand, msg *models.Message, result *Result) {
	sender, err := c.store.GetUser(ctx, cmd.SenderID)
	if err != nil {
		logging.Debug().Err(err).
			Str("sender_id", cmd.SenderID).
			Msg("sender identity unresolved, skipping notification")
		result.Stage = StageNotificationAttempted
		return
	}
	if _, err := c.store.GetUser(ctx, cmd.ReceiverID); err != nil {
		logging.Debug().Err(err).
			Str("receiver_id", cmd.ReceiverID).
			Msg("receiver identity unresolved, skipping notification")
		result.Stage = StageNotificationAttempted
		return
	}

	title := fmt.Sprintf("New message from %s", sender.DisplayName())
	data := map[string]interface{}{
		"chatId":   cmd.ChatID.String(),
		"senderId": cmd.SenderID,
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tickets, err := c.notifier.Dispatch(dispatchCtx, cmd.ReceiverID, title, msg.Text, data, true)
	result.Stage = StageNotificationAttempted
	if err != nil {
		logging.Warn().Err(err).
			Str("receiver_id", cmd.ReceiverID).
			Str("chat_id", cmd.ChatID.String()).
			Msg("push dispatch failed")
		return
	}
	result.Notified = true
	result.Tickets = tickets
}
