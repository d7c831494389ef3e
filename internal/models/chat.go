// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind identifies the content type of a chat message.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindAudio MessageKind = "audio"
	MessageKindFile  MessageKind = "file"
)

// ValidKind reports whether k is one of the supported message kinds.
// An empty kind is treated as text for backward compatibility with
// clients that predate attachment support.
func ValidKind(k MessageKind) bool {
	switch k {
	case "", MessageKindText, MessageKindImage, MessageKindAudio, MessageKindFile:
		return true
	}
	return false
}

// Attachment describes a file carried by a message. Only URL and MIME
// type are required; the remaining fields are client-supplied hints for
// rendering (image dimensions, audio duration).
type Attachment struct {
	URL      string  `json:"url" validate:"required,url"`
	MIME     string  `json:"mime" validate:"required"`
	Name     string  `json:"name,omitempty"`
	Size     int64   `json:"size,omitempty" validate:"min=0"`
	Width    int     `json:"width,omitempty" validate:"min=0"`
	Height   int     `json:"height,omitempty" validate:"min=0"`
	Duration float64 `json:"duration,omitempty" validate:"min=0"`
}

// Message is a single chat message. Messages are immutable once
// persisted; there are no edit or delete operations.
//
// Text may be empty for attachment-only messages. Sender and receiver
// are always members of the owning conversation.
type Message struct {
	ID          uuid.UUID    `json:"id"`
	ChatID      uuid.UUID    `json:"chatId"`
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Text        string       `json:"text"`
	Kind        MessageKind  `json:"kind"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`

	// ClientTempID is the client-supplied correlation id used to
	// reconcile an optimistic insert with the server-confirmed record.
	// Wire-only: it is echoed on the relayed event but never persisted.
	ClientTempID string `json:"tempId,omitempty"`
}

// LastMessage is a denormalized snapshot of a conversation's most
// recent message, cached for fast inbox rendering. The snapshot is
// updated outside the append transaction and may transiently lag the
// newest persisted message; inbox ordering therefore joins against the
// message store instead of trusting this field.
type LastMessage struct {
	Text     string    `json:"text"`
	SenderID string    `json:"senderId"`
	SentAt   time.Time `json:"sentAt"`
}

// Conversation groups participants sharing a message thread.
//
// Conversations are created lazily on first message between a pair and
// never hard-deleted; each participant may individually hide one via
// DeletedAt, which is reversed by the next open.
type Conversation struct {
	ID uuid.UUID `json:"id"`

	// Participants holds every user that has ever been a member.
	// Current usage creates pairs, but the model does not forbid more.
	Participants []string `json:"participants"`

	// ActiveParticipants is the subset that has not archived or left.
	ActiveParticipants []string `json:"activeParticipants"`

	// VisibleTo lists participants for whom the conversation should
	// currently appear in the inbox.
	VisibleTo []string `json:"visibleTo"`

	LastMessage *LastMessage `json:"lastMessage,omitempty"`

	// OpenedAt and DeletedAt are per-participant timestamps used to
	// compute unread state and soft-deletion visibility.
	OpenedAt  map[string]time.Time `json:"openedAt,omitempty"`
	DeletedAt map[string]time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ConversationSummary is the inbox listing shape: the conversation plus
// authoritative last-message fields computed from the message store.
type ConversationSummary struct {
	Conversation
	LastMessageText     string    `json:"lastMessage"`
	LastMessageAt       time.Time `json:"lastMessageAt"`
	LastMessageSenderID string    `json:"lastMessageSenderId"`
}
