// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Delivery configuration constants
const (
	DefaultMaxAttempts = 5
	RequestTimeout     = 30 * time.Second
	MaxResponseLen     = 10 * 1024
	UserAgent          = "oCMS-Content/1.0"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery tries a delivery until it succeeds, fails permanently or
// runs out of attempts. Retries wait with exponential backoff and give up
// early when the dispatcher stops.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		delivery.Attempt++
		result := d.attemptDelivery(ctx, delivery)

		if result.Success {
			d.logger.Info("webhook delivered successfully",
				"delivery_id", delivery.ID,
				"event_type", delivery.Event,
				"url", delivery.URL,
				"status_code", result.StatusCode,
				"attempt", delivery.Attempt)
			return
		}

		errMsg := ""
		if result.Error != nil {
			errMsg = result.Error.Error()
		}

		if !result.ShouldRetry || delivery.Attempt >= d.cfg.MaxAttempts {
			d.logger.Warn("webhook delivery abandoned",
				"delivery_id", delivery.ID,
				"event_type", delivery.Event,
				"url", delivery.URL,
				"attempts", delivery.Attempt,
				"reason", errMsg)
			return
		}

		backoff := calculateBackoff(delivery.Attempt, d.cfg.InitialBackoff, d.cfg.MaxBackoff)
		d.logger.Info("webhook delivery scheduled for retry",
			"delivery_id", delivery.ID,
			"attempt", delivery.Attempt,
			"backoff", backoff.String(),
			"reason", errMsg)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-d.done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// attemptDelivery performs the actual HTTP POST request.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery-ID", delivery.ID)
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(delivery.Attempt))
	if d.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", GenerateSignature(delivery.Payload, d.cfg.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	return classifyResponse(resp.StatusCode, string(body))
}

func classifyResponse(status int, body string) DeliveryResult {
	if status >= 200 && status < 300 {
		return DeliveryResult{Success: true, StatusCode: status, ResponseBody: body}
	}

	res := DeliveryResult{
		StatusCode:   status,
		ResponseBody: body,
		Error:        fmt.Errorf("HTTP %d: %s", status, http.StatusText(status)),
		ShouldRetry:  true,
	}
	// Client errors are final except timeouts and throttling.
	if status >= 400 && status < 500 {
		res.ShouldRetry = status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return res
}

// calculateBackoff returns initial * 2^(attempt-1), capped at maxBackoff.
func calculateBackoff(attempt int, initial, maxBackoff time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return min(backoff, maxBackoff)
}
