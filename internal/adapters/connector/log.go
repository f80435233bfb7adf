package connector

import (
	"context"
	"time"
)

// LogConnector records the invocation and succeeds. It is the default
// stand-in for action types with no external collaborator configured yet,
// keeping the governance flow exercisable end to end.
type LogConnector struct {
	actionType string
}

// NewLogConnector creates a log connector for actionType.
func NewLogConnector(actionType string) *LogConnector {
	return &LogConnector{actionType: actionType}
}

// ActionType returns the proposal action type this connector serves.
func (c *LogConnector) ActionType() string { return c.actionType }

// Invoke echoes the payload back as the execution result.
func (c *LogConnector) Invoke(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error) {
	return map[string]any{
		"action_type":     c.actionType,
		"organization_id": organizationID,
		"payload":         payload,
		"invoked_at":      time.Now().UTC().Format(time.RFC3339),
	}, nil
}
