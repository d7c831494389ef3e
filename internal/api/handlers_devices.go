// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package api

import (
	"net/http"
	"time"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/push"
)

// RegisterDeviceRequest is the body of POST /devices.
type RegisterDeviceRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android"`
}

// RegisterDevice records a push token for the user. Registering the
// same token twice updates the existing device in place.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RegisterDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if !push.ValidToken(req.Token) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "token is not a valid Expo push token", nil)
		return
	}

	device := &models.Device{
		UserID:       req.UserID,
		PushToken:    req.Token,
		Platform:     req.Platform,
		RegisteredAt: time.Now().UTC(),
	}
	if err := h.tokens.Register(r.Context(), device); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register device", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"userId": req.UserID}, start)
}

// RemoveDeviceRequest is the body of DELETE /devices.
type RemoveDeviceRequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

// RemoveDevice drops a push token, typically on sign-out. Removing a
// token that was never registered is a no-op.
func (h *Handler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RemoveDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.tokens.Remove(r.Context(), req.UserID, req.Token); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove device", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"userId": req.UserID}, start)
}
