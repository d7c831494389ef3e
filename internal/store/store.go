// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package store provides durable persistence for conversations,
// messages, notification records, and mirrored user identities.
//
// Two implementations exist: a Postgres-backed store for production and
// an in-memory store for development and tests. Both provide atomic
// single-row create/append semantics; there is no cross-table
// transaction spanning a message append and the conversation's cached
// last-message snapshot, so the snapshot may transiently lag. Readers
// that need authoritative ordering join against the messages table, as
// ListConversationsForUser does.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrValidation indicates a write was rejected before persistence
	// because required fields were missing.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// MessageStore is the append-only chat message log. Messages are
// immutable once appended; there is no update or delete.
type MessageStore interface {
	// AppendMessage validates and durably appends the message,
	// assigning a server-generated id and timestamp in place.
	// Returns ErrValidation when sender, receiver, or chat id is
	// missing.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns messages for the conversation, newest
	// first. A non-zero before timestamp restarts the cursor for
	// pagination; limit caps the page size.
	ListMessages(ctx context.Context, chatID uuid.UUID, before time.Time, limit int) ([]*models.Message, error)
}

// ConversationStore maps participant pairs to conversation identities
// and tracks per-participant open/hide state.
type ConversationStore interface {
	// FindOrCreateConversation returns the conversation whose
	// participant set contains both ids, creating it atomically when
	// none exists. Idempotent for the unordered pair.
	FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error)

	// GetConversation returns the conversation by id, or ErrNotFound.
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// ListConversationsForUser returns the user's visible
	// conversations ordered descending by true most-recent message
	// time, joining the message log rather than trusting the cached
	// snapshot.
	ListConversationsForUser(ctx context.Context, userID string) ([]*models.ConversationSummary, error)

	// MarkOpened records that the user opened the conversation and
	// restores its visibility for them.
	MarkOpened(ctx context.Context, chatID uuid.UUID, userID string, t time.Time) error

	// MarkDeletedForUser soft-hides the conversation for the user.
	// Reversible: the next MarkOpened makes it visible again.
	MarkDeletedForUser(ctx context.Context, chatID uuid.UUID, userID string, t time.Time) error

	// TouchLastMessage updates the conversation's cached last-message
	// snapshot. Best-effort; not transactional with AppendMessage.
	TouchLastMessage(ctx context.Context, chatID uuid.UUID, msg *models.Message) error
}

// NotificationStore persists push notification records, which also
// back the in-app notification feed.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, t time.Time) error
	SoftDeleteNotification(ctx context.Context, id uuid.UUID, t time.Time) error
}

// UserStore holds the read-mostly user mirror used for display-name
// resolution.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
}

// Store is the full persistence surface the service wires together.
type Store interface {
	MessageStore
	ConversationStore
	NotificationStore
	UserStore

	Close() error
}

// validateMessage enforces the append precondition shared by all
// implementations.
func validateMessage(msg *models.Message) error {
	if msg.ChatID == uuid.Nil {
		return fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	if msg.SenderID == "" {
		return fmt.Errorf("%w: sender id is required", ErrValidation)
	}
	if msg.ReceiverID == "" {
		return fmt.Errorf("%w: receiver id is required", ErrValidation)
	}
	if !models.ValidKind(msg.Kind) {
		return fmt.Errorf("%w: unknown message kind %q", ErrValidation, msg.Kind)
	}
	return nil
}

// prepareMessage assigns the server-generated identity ahead of the
// durable write.
func prepareMessage(msg *models.Message) {
	msg.ID = uuid.New()
	if msg.Kind == "" {
		msg.Kind = models.MessageKindText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

// pairKey produces the canonical key for an unordered participant
// pair, used to make FindOrCreateConversation idempotent.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
