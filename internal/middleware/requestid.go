// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package middleware provides the HTTP middleware shared by the API:
// request identity for tracing and Prometheus request instrumentation.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
)

// RequestID assigns each request a unique id, honoring an upstream
// X-Request-ID when present, and exposes it on the response header and
// the request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
