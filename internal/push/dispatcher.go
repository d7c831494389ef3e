// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package push

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/metrics"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
	"github.com/omarsaab96/unihelp-sub002/internal/store"
)

// Dispatcher sends best-effort push notifications and records a
// Notification per attempt. The gateway sits behind a circuit breaker
// and a rate limiter so a degraded push service cannot stall or flood
// the message pipeline.
type Dispatcher struct {
	gateway Gateway
	tokens  TokenStore
	records store.NotificationStore
	breaker *gobreaker.CircuitBreaker[[]models.PushTicket]
	limiter *rate.Limiter
	enabled bool
}

// NewDispatcher wires a dispatcher. ratePerSecond <= 0 disables rate
// limiting.
func NewDispatcher(gateway Gateway, tokens TokenStore, records store.NotificationStore, enabled bool, ratePerSecond float64, burst int) *Dispatcher {
	cbName := "push-gateway"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.PushTicket](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("push gateway circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}

	return &Dispatcher{
		gateway: gateway,
		tokens:  tokens,
		records: records,
		breaker: cb,
		limiter: limiter,
		enabled: enabled,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Dispatch attempts a push to every device the user has registered.
//
// Semantics:
//   - A user with no registered tokens is a silent no-op regardless of
//     persist: no gateway call, no record, nil error.
//   - Registered tokens that fail format validation are a hard error
//     (ErrInvalidPushToken) when none remain valid; no attempt is made
//     and no record is written. Callers are expected to catch this at
//     their boundary.
//   - Once an attempt is made and persist is true, exactly one
//     Notification record is written: tickets on success, the gateway
//     error message on transport failure. The gateway failure itself is
//     absorbed, never returned, because push delivery must not fail the
//     action that triggered it.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, title, body string, data map[string]interface{}, persist bool) ([]models.PushTicket, error) {
	if !d.enabled {
		metrics.PushDispatches.WithLabelValues("disabled").Inc()
		return nil, nil
	}

	tokens, err := d.tokens.TokensForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up push tokens: %w", err)
	}
	if len(tokens) == 0 {
		metrics.PushDispatches.WithLabelValues("no_token").Inc()
		return nil, nil
	}

	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !ValidToken(token) {
			logging.Warn().Str("user_id", userID).Msg("skipping malformed push token")
			continue
		}
		valid = append(valid, token)
	}
	if len(valid) == 0 {
		metrics.PushDispatches.WithLabelValues("invalid_token").Inc()
		return nil, fmt.Errorf("%w: user %s has no well-formed tokens", ErrInvalidPushToken, userID)
	}

	messages := make([]models.PushMessage, 0, len(valid))
	for _, token := range valid {
		messages = append(messages, models.PushMessage{
			To:    token,
			Sound: "default",
			Title: title,
			Body:  body,
			Data:  data,
		})
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("push rate limit: %w", err)
		}
	}

	start := time.Now()
	tickets, sendErr := d.breaker.Execute(func() ([]models.PushTicket, error) {
		return d.gateway.Send(ctx, messages)
	})
	metrics.PushGatewayDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		metrics.PushDispatches.WithLabelValues("gateway_error").Inc()
		logging.Warn().Err(sendErr).
			Str("user_id", userID).
			Int("tokens", len(valid)).
			Msg("push gateway send failed")
	} else {
		metrics.PushDispatches.WithLabelValues("sent").Inc()
	}

	if persist {
		record := &models.Notification{
			UserID:  userID,
			Title:   title,
			Body:    body,
			Data:    data,
			Tickets: tickets,
		}
		if sendErr != nil {
			record.GatewayError = sendErr.Error()
		}
		if err := d.records.CreateNotification(ctx, record); err != nil {
			return tickets, fmt.Errorf("record notification: %w", err)
		}
		metrics.NotificationsRecorded.Inc()
	}

	// Gateway failures are absorbed: the attempt is recorded above and
	// the caller's primary action proceeds.
	return tickets, nil
}
