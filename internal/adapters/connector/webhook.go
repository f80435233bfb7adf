package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/warden/internal/models"
)

// WebhookConnector delivers a decided payload to an external HTTP endpoint.
// 4xx responses mean the payload will never be accepted and map to
// ErrExecutionFatal; 5xx and transport errors map to ErrExecutionTransient
// so the job layer retries them.
type WebhookConnector struct {
	actionType string
	url        string
	client     *http.Client
}

// NewWebhookConnector creates a webhook connector for actionType posting to
// url. A nil client falls back to a default with a 30s timeout; the
// execution adapter's per-call deadline still applies on top.
func NewWebhookConnector(actionType, url string, client *http.Client) *WebhookConnector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookConnector{actionType: actionType, url: url, client: client}
}

// ActionType returns the proposal action type this connector serves.
func (c *WebhookConnector) ActionType() string { return c.actionType }

// Invoke posts the payload as JSON and returns the endpoint's response body
// as the execution result.
func (c *WebhookConnector) Invoke(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"organization_id": organizationID,
		"action_type":     c.actionType,
		"payload":         payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode webhook body: %w", models.ErrExecutionFatal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", models.ErrExecutionFatal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("webhook %s timed out: %w", c.url, models.ErrExecutionTransient)
		}
		return nil, fmt.Errorf("webhook %s unreachable: %v: %w", c.url, err, models.ErrExecutionTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %v: %w", err, models.ErrExecutionTransient)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result := map[string]any{"status_code": resp.StatusCode}
		var doc map[string]any
		if len(raw) > 0 && json.Unmarshal(raw, &doc) == nil {
			result["response"] = doc
		}
		return result, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("webhook %s rejected payload (%d): %w", c.url, resp.StatusCode, models.ErrExecutionFatal)
	default:
		return nil, fmt.Errorf("webhook %s returned %d: %w", c.url, resp.StatusCode, models.ErrExecutionTransient)
	}
}
