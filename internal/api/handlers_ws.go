// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package api

import (
	"net/http"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/websocket"
)

// WebSocket upgrades the connection and attaches it to the hub. The
// caller identifies itself with the userId query parameter; joins and
// message sends then flow over the socket.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "userId query parameter is required", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		logging.Warn().
			Err(err).
			Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).
			Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, h.deliverer, conn, userID)
	h.hub.Register <- client
	client.Start()

	logging.Debug().
		Str("user_id", sanitizeLogValue(userID)).
		Msg("WebSocket client connected")
}
