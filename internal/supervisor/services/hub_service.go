// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package services wraps the service's long-running components as
// suture services.
package services

import (
	"context"
)

// ContextHub matches *websocket.Hub's RunWithContext method. The
// interface keeps this package free of a websocket import.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the WebSocket hub under supervision. The hub's
// RunWithContext already follows the suture.Service contract, so the
// wrapper only adds a name for lifecycle logging.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps a hub for the supervision tree.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service. It returns ctx.Err() on normal
// shutdown; the hub closes every client and clears all conversation
// subscriptions before returning, so a supervised restart starts
// empty.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in suture's log output.
func (s *HubService) String() string {
	return s.name
}
