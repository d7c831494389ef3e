// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the persisted record of a push attempt, doubling as
// the in-app notification feed entry. A record is written once per
// dispatch regardless of whether the gateway accepted the send, so the
// feed stays consistent even when delivery silently fails.
type Notification struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"userId"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`

	// Data is an arbitrary structured payload, e.g. the conversation id
	// the client should deep-link into.
	Data map[string]interface{} `json:"data,omitempty"`

	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	// Tickets holds the gateway receipts from the send attempt. A
	// ticket indicates gateway acceptance, not end-device delivery.
	// Empty when the gateway call itself failed at the transport level;
	// the failure is then recorded in GatewayError.
	Tickets      []PushTicket `json:"tickets,omitempty"`
	GatewayError string       `json:"gatewayError,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// PushTicket is the gateway's per-message acknowledgment.
type PushTicket struct {
	ID      string                 `json:"id,omitempty"`
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Push ticket statuses reported by the gateway.
const (
	PushTicketOK    = "ok"
	PushTicketError = "error"
)

// PushMessage is the wire shape accepted by the push gateway.
type PushMessage struct {
	To    string                 `json:"to"`
	Sound string                 `json:"sound,omitempty"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Device binds a user to a push token registered by a mobile client.
type Device struct {
	UserID       string    `json:"userId"`
	PushToken    string    `json:"pushToken"`
	Platform     string    `json:"platform,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}
