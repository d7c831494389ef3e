// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// maxBatchSize is the gateway's documented cap on messages per request.
const maxBatchSize = 100

// ExpoGateway sends push messages to the Expo push service (or any
// endpoint speaking the same protocol).
type ExpoGateway struct {
	url         string
	accessToken string
	client      *http.Client
}

// NewExpoGateway creates a gateway client for the given endpoint. An
// empty accessToken omits the Authorization header, which the public
// Expo endpoint accepts.
func NewExpoGateway(url, accessToken string, timeout time.Duration) *ExpoGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExpoGateway{
		url:         url,
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
	}
}

// expoResponse is the gateway's reply envelope: per-message tickets in
// data, request-level failures in errors.
type expoResponse struct {
	Data   []models.PushTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts the batch to the gateway and returns one ticket per
// message in input order. Batches over the gateway cap are split
// transparently.
func (g *ExpoGateway) Send(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
	tickets := make([]models.PushTicket, 0, len(messages))
	for start := 0; start < len(messages); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch, err := g.sendBatch(ctx, messages[start:end])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, batch...)
	}
	return tickets, nil
}

func (g *ExpoGateway) sendBatch(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal push messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "UniHelp-Messaging/1.0")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send push batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, truncate(body, 512))
	}

	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("push gateway error %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}
	return parsed.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
