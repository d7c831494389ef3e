// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// MemoryStore is the in-process Store used for development and tests.
// All methods are safe for concurrent use. Data does not survive a
// restart.
type MemoryStore struct {
	mu sync.RWMutex

	conversations map[uuid.UUID]*models.Conversation
	pairIndex     map[string]uuid.UUID
	messages      map[uuid.UUID][]*models.Message
	notifications map[uuid.UUID]*models.Notification
	userNotifs    map[string][]uuid.UUID
	users         map[string]*models.User
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		pairIndex:     make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID][]*models.Message),
		notifications: make(map[uuid.UUID]*models.Notification),
		userNotifs:    make(map[string][]uuid.UUID),
		users:         make(map[string]*models.User),
	}
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *models.Message) error {
	prepareMessage(msg)
	if err := validateMessage(msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ChatID]; !ok {
		return fmt.Errorf("append message: conversation %s: %w", msg.ChatID, ErrNotFound)
	}
	stored := *msg
	stored.ClientTempID = "" // wire-only, never persisted
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], &stored)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, chatID uuid.UUID, before time.Time, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[chatID]
	out := make([]*models.Message, 0, limit)
	for i := len(log) - 1; i >= 0; i-- {
		m := log[i]
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) FindOrCreateConversation(_ context.Context, a, b string) (*models.Conversation, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both participant ids are required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(a, b)
	if id, ok := s.pairIndex[key]; ok {
		return cloneConversation(s.conversations[id]), nil
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:                 uuid.New(),
		Participants:       []string{a, b},
		ActiveParticipants: []string{a, b},
		VisibleTo:          []string{a, b},
		OpenedAt:           map[string]time.Time{},
		DeletedAt:          map[string]time.Time{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.conversations[conv.ID] = conv
	s.pairIndex[key] = conv.ID
	return cloneConversation(conv), nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return cloneConversation(conv), nil
}

func (s *MemoryStore) ListConversationsForUser(_ context.Context, userID string) ([]*models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ConversationSummary, 0)
	for _, conv := range s.conversations {
		if !contains(conv.VisibleTo, userID) {
			continue
		}
		sum := &models.ConversationSummary{Conversation: *cloneConversation(conv)}
		sum.LastMessageAt = conv.CreatedAt
		if log := s.messages[conv.ID]; len(log) > 0 {
			last := log[len(log)-1]
			sum.LastMessageText = last.Text
			sum.LastMessageSenderID = last.SenderID
			sum.LastMessageAt = last.CreatedAt
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkOpened(_ context.Context, chatID uuid.UUID, userID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", chatID, ErrNotFound)
	}
	conv.OpenedAt[userID] = t.UTC()
	if !contains(conv.VisibleTo, userID) {
		conv.VisibleTo = append(conv.VisibleTo, userID)
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MarkDeletedForUser(_ context.Context, chatID uuid.UUID, userID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", chatID, ErrNotFound)
	}
	conv.DeletedAt[userID] = t.UTC()
	conv.VisibleTo = remove(conv.VisibleTo, userID)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) TouchLastMessage(_ context.Context, chatID uuid.UUID, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", chatID, ErrNotFound)
	}
	conv.LastMessage = &models.LastMessage{
		Text:     msg.Text,
		SenderID: msg.SenderID,
		SentAt:   msg.CreatedAt,
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("%w: notification user id is required", ErrValidation)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.notifications[n.ID] = &cp
	s.userNotifs[n.UserID] = append(s.userNotifs[n.UserID], n.ID)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userNotifs[userID]
	out := make([]*models.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		n := s.notifications[ids[i]]
		if n == nil || n.DeletedAt != nil {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id uuid.UUID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.DeletedAt != nil {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	ts := t.UTC()
	n.Read = true
	n.ReadAt = &ts
	return nil
}

func (s *MemoryStore) SoftDeleteNotification(_ context.Context, id uuid.UUID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.DeletedAt != nil {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	ts := t.UTC()
	n.DeletedAt = &ts
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u *models.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.ActiveParticipants = append([]string(nil), c.ActiveParticipants...)
	cp.VisibleTo = append([]string(nil), c.VisibleTo...)
	cp.OpenedAt = make(map[string]time.Time, len(c.OpenedAt))
	for k, v := range c.OpenedAt {
		cp.OpenedAt[k] = v
	}
	cp.DeletedAt = make(map[string]time.Time, len(c.DeletedAt))
	for k, v := range c.DeletedAt {
		cp.DeletedAt[k] = v
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func remove(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
