// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package push implements best-effort mobile push delivery: a token
// registry binding users to device push tokens, an HTTP gateway client
// speaking the Expo push protocol, and a dispatcher that records a
// Notification for every attempted send.
package push

import (
	"context"
	"errors"
	"strings"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// ErrInvalidPushToken indicates a registered token does not match the
// gateway's token format. It is a hard error to the dispatcher's
// caller, which is expected to catch it so push problems never abort
// the action that triggered the notification.
var ErrInvalidPushToken = errors.New("invalid push token")

// Gateway sends a batch of push messages and returns one ticket per
// message. A ticket records gateway acceptance, not device delivery.
type Gateway interface {
	Send(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error)
}

// ValidToken reports whether the token matches the gateway token
// format, e.g. "ExponentPushToken[xxxxxxxx]".
func ValidToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	var body string
	switch {
	case strings.HasPrefix(token, "ExponentPushToken["):
		body = token[len("ExponentPushToken[") : len(token)-1]
	case strings.HasPrefix(token, "ExpoPushToken["):
		body = token[len("ExpoPushToken[") : len(token)-1]
	default:
		return false
	}
	return body != ""
}
