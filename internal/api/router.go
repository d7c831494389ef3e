// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omarsaab96/unihelp-sub002/internal/middleware"
)

// Routes assembles the HTTP routing table.
//
// The conversation endpoints keep the paths the mobile client already
// calls (/chats/init, /chats/{userId}); everything else is grouped by
// resource. The WebSocket upgrade and operational endpoints sit
// outside the general rate limiter so reconnect storms and scrapes are
// not throttled with API traffic.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Group(func(r chi.Router) {
		if !h.cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		}
		r.Use(middleware.Prometheus)

		// chi requires one wildcard name per segment, so {id} is a user
		// id on the inbox route and a conversation id everywhere else,
		// matching the paths the mobile client already calls.
		r.Route("/chats", func(r chi.Router) {
			r.Post("/init", h.InitChat)
			r.Get("/{id}", h.ListChats)
			r.Route("/{id}/messages", func(r chi.Router) {
				r.Get("/", h.ListChatMessages)
				r.Post("/", h.SendChatMessage)
			})
			r.Post("/{id}/open", h.OpenChat)
			r.Post("/{id}/hide", h.HideChat)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", h.RegisterDevice)
			r.Delete("/", h.RemoveDevice)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/{id}", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
			r.Delete("/{id}", h.DeleteNotification)
		})
	})

	return r
}
