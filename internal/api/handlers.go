// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package api provides the HTTP surface: conversation and message
// endpoints consumed by the mobile client, device token registration,
// the notification feed, the WebSocket upgrade, and operational
// endpoints (health, metrics).
package api

import (
	"context"
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"github.com/omarsaab96/unihelp-sub002/internal/config"
	"github.com/omarsaab96/unihelp-sub002/internal/delivery"
	"github.com/omarsaab96/unihelp-sub002/internal/push"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
	"github.com/omarsaab96/unihelp-sub002/internal/websocket"
)

// Deliverer is the delivery pipeline as the HTTP layer sees it.
type Deliverer interface {
	Deliver(ctx context.Context, cmd delivery.SendCommand) (*delivery.Result, error)
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	cfg       *config.Config
	store     store.Store
	deliverer Deliverer
	hub       *websocket.Hub
	tokens    push.TokenStore
	upgrader  gorillaws.Upgrader
}

// NewHandler wires an API handler.
func NewHandler(cfg *config.Config, st store.Store, deliverer Deliverer, hub *websocket.Hub, tokens push.TokenStore) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     st,
		deliverer: deliverer,
		hub:       hub,
		tokens:    tokens,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, cfg.Security.CORSOrigins)
			},
		},
	}
}

// checkOrigin accepts same-origin requests and any configured CORS
// origin; "*" disables the check.
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
