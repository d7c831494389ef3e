// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package api

import (
	"net/http"
	"time"
)

// HealthLive reports process liveness. It never touches the store, so
// it stays green while a backend outage is being handled elsewhere.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	}, time.Now())
}

// HealthReady reports readiness. Stores that can probe their backend
// do so; the in-memory store is always ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "ok"
	code := http.StatusOK

	if p, ok := h.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	respondSuccess(w, code, map[string]interface{}{
		"status":      status,
		"connections": h.hub.ClientCount(),
	}, start)
}
