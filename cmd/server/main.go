// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package main is the entry point for the UniHelp messaging server.
//
// The server carries one-to-one chat between UniHelp users: it
// persists messages, fans them out to live WebSocket sessions, and
// pushes a notification to the receiver's registered devices through
// the Expo gateway.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 sources (defaults, YAML, env)
//  2. Store: Postgres chat persistence (or in-memory for development)
//  3. Token registry: BadgerDB device token store (or in-memory)
//  4. Push dispatcher: Expo gateway behind a circuit breaker
//  5. WebSocket hub: real-time fan-out to connected clients
//  6. Delivery coordinator: persist, relay, notify pipeline
//  7. HTTP server: REST API plus the WebSocket upgrade endpoint
//
// The hub and the HTTP server run under a suture supervision tree so a
// hub crash restarts it without dropping the HTTP listener.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (see internal/config)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Common settings:
//   - DATABASE_DRIVER: postgres (default) or memory
//   - DATABASE_URL: Postgres connection string
//   - PUSH_ENABLED: toggle push dispatch (default true)
//   - PUSH_TOKEN_STORE_PATH: BadgerDB dir; empty = in-memory
//   - HTTP_PORT: HTTP listener port (default 8090)
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// listener drains in-flight requests, the hub closes every WebSocket
// session, and the stores are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omarsaab96/unihelp-sub002/internal/api"
	"github.com/omarsaab96/unihelp-sub002/internal/config"
	"github.com/omarsaab96/unihelp-sub002/internal/delivery"
	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/push"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
	"github.com/omarsaab96/unihelp-sub002/internal/supervisor"
	"github.com/omarsaab96/unihelp-sub002/internal/supervisor/services"
	ws "github.com/omarsaab96/unihelp-sub002/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("driver", cfg.Database.Driver).
		Bool("push_enabled", cfg.Push.Enabled).
		Int("port", cfg.Server.Port).
		Msg("Starting UniHelp messaging server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chat persistence.
	var st store.Store
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		st = pg
	case "memory":
		logging.Warn().Msg("Using in-memory store; messages are lost on restart")
		st = store.NewMemoryStore()
	default:
		logging.Fatal().Str("driver", cfg.Database.Driver).Msg("Unknown database driver")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// Device token registry. Badger persists tokens across restarts;
	// the in-memory registry is for development.
	var tokens push.TokenStore
	if cfg.Push.TokenStorePath != "" {
		badgerTokens, err := push.NewBadgerTokenStore(cfg.Push.TokenStorePath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Push.TokenStorePath).Msg("Failed to open token store")
		}
		tokens = badgerTokens
		logging.Info().Str("path", cfg.Push.TokenStorePath).Msg("BadgerDB token store opened")
	} else {
		logging.Warn().Msg("Using in-memory token store; device registrations are lost on restart")
		tokens = push.NewMemoryTokenStore()
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()

	// Push dispatch.
	gateway := push.NewExpoGateway(cfg.Push.GatewayURL, cfg.Push.AccessToken, cfg.Push.Timeout)
	dispatcher := push.NewDispatcher(gateway, tokens, st, cfg.Push.Enabled, cfg.Push.RatePerSecond, cfg.Push.RateBurst)

	// Real-time fan-out and the delivery pipeline.
	hub := ws.NewHub()
	coordinator := delivery.NewCoordinator(st, hub, dispatcher)

	handler := api.NewHandler(cfg, st, coordinator, hub, tokens)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// Supervision tree: the hub and the HTTP server restart
	// independently.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Signal handling for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel until the supervisor finishes.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
