// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// ListNotifications returns the user's notification history, newest
// first. Soft-deleted entries are excluded.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "id")

	notifs, err := h.store.ListNotifications(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list notifications", err)
		return
	}

	respondSuccess(w, http.StatusOK, notifs, start)
}

// MarkNotificationRead stamps the notification as read. Marking an
// already-read notification refreshes the timestamp.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.updateNotification(w, r, h.store.MarkNotificationRead)
}

// DeleteNotification soft-deletes the notification so it no longer
// appears in listings. The row itself is retained.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	h.updateNotification(w, r, h.store.SoftDeleteNotification)
}

func (h *Handler) updateNotification(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, t time.Time) error) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid UUID", nil)
		return
	}

	if err := apply(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update notification", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"id": id.String()}, start)
}
