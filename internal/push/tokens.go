// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package push

import (
	"context"
	"sync"
	"time"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// TokenStore is the registry binding users to their device push
// tokens. A user may hold several tokens (one per installed device);
// registering the same token twice refreshes its metadata.
type TokenStore interface {
	Register(ctx context.Context, device *models.Device) error
	TokensForUser(ctx context.Context, userID string) ([]string, error)
	Remove(ctx context.Context, userID, token string) error
	Close() error
}

// MemoryTokenStore is the in-process TokenStore used for development
// and tests.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	devices map[string]map[string]*models.Device
}

// NewMemoryTokenStore returns an empty in-memory token registry.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{devices: make(map[string]map[string]*models.Device)}
}

func (s *MemoryTokenStore) Register(_ context.Context, device *models.Device) error {
	if device.RegisteredAt.IsZero() {
		device.RegisteredAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.devices[device.UserID] == nil {
		s.devices[device.UserID] = make(map[string]*models.Device)
	}
	cp := *device
	s.devices[device.UserID][device.PushToken] = &cp
	return nil
}

func (s *MemoryTokenStore) TokensForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.devices[userID]))
	for token := range s.devices[userID] {
		out = append(out, token)
	}
	return out, nil
}

func (s *MemoryTokenStore) Remove(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.devices[userID], token)
	return nil
}

func (s *MemoryTokenStore) Close() error { return nil }
