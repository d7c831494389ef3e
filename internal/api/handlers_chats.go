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

	"github.com/omarsaab96/unihelp-sub002/internal/delivery"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// InitChatRequest is the body of POST /chats/init. The field names
// match what the mobile client already sends.
type InitChatRequest struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required,nefield=SenderID"`
}

// InitChatResponse is the payload the mobile client expects back:
// the conversation id plus its recent message history.
type InitChatResponse struct {
	ChatID   uuid.UUID         `json:"chatId"`
	Messages []*models.Message `json:"messages"`
}

// InitChat finds or creates the conversation between two users and
// returns its recent history. Idempotent: repeated calls with the
// same pair, in either order, return the same conversation.
func (h *Handler) InitChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req InitChatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	conv, err := h.store.FindOrCreateConversation(r.Context(), req.SenderID, req.ReceiverID)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to initialize conversation", err)
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conv.ID, time.Time{}, h.cfg.Chat.DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load conversation history", err)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	respondSuccess(w, http.StatusOK, InitChatResponse{ChatID: conv.ID, Messages: messages}, start)
}

// ListChats returns the user's visible conversations, newest activity
// first. Ordering follows the true latest message in each
// conversation, not the cached snapshot.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "id")

	chats, err := h.store.ListConversationsForUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list conversations", err)
		return
	}
	if chats == nil {
		chats = []*models.ConversationSummary{}
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"chats": chats}, start)
}

// ListChatMessages returns a page of messages for a conversation,
// newest first. The "before" RFC3339 query parameter restarts the
// cursor; "limit" caps the page size.
func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	chatID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid UUID", nil)
		return
	}

	limit := getIntParam(r, "limit", h.cfg.Chat.DefaultPageSize)
	if limit <= 0 || limit > h.cfg.Chat.MaxPageSize {
		limit = h.cfg.Chat.DefaultPageSize
	}
	before := getTimeParam(r, "before")

	messages, err := h.store.ListMessages(r.Context(), chatID, before, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list messages", err)
		return
	}

	respondSuccess(w, http.StatusOK, messages, start)
}

// SendMessageRequest is the body of POST /chats/{id}/messages, the
// REST fallback for clients without a live socket.
type SendMessageRequest struct {
	SenderID     string              `json:"senderId" validate:"required"`
	ReceiverID   string              `json:"receiverId" validate:"required"`
	Text         string              `json:"text"`
	Kind         models.MessageKind  `json:"kind,omitempty"`
	Attachments  []models.Attachment `json:"attachments,omitempty"`
	ClientTempID string              `json:"tempId,omitempty"`
}

// SendChatMessage runs a message through the same delivery pipeline as
// the WebSocket path: persist, fan out to live sessions, notify.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	chatID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid UUID", nil)
		return
	}

	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	result, err := h.deliverer.Deliver(r.Context(), delivery.SendCommand{
		ChatID:       chatID,
		SenderID:     req.SenderID,
		ReceiverID:   req.ReceiverID,
		Text:         req.Text,
		Kind:         req.Kind,
		Attachments:  req.Attachments,
		ClientTempID: req.ClientTempID,
	})
	if err != nil {
		if errors.Is(err, delivery.ErrValidation) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deliver message", err)
		return
	}

	respondSuccess(w, http.StatusCreated, result.Message, start)
}

// chatStateRequest is the body of the open/hide endpoints.
type chatStateRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// OpenChat records that the user opened the conversation, restoring
// visibility if they had hidden it.
func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	h.updateChatState(w, r, h.store.MarkOpened)
}

// HideChat soft-hides the conversation for the user. The next open
// reverses it.
func (h *Handler) HideChat(w http.ResponseWriter, r *http.Request) {
	h.updateChatState(w, r, h.store.MarkDeletedForUser)
}

func (h *Handler) updateChatState(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, chatID uuid.UUID, userID string, t time.Time) error) {
	start := time.Now()

	chatID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid UUID", nil)
		return
	}

	var req chatStateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := apply(r.Context(), chatID, req.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update conversation", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"chatId": chatID.String()}, start)
}
