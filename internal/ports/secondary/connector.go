package secondary

import "context"

// ActionConnector performs one kind of side effect against an external
// collaborator (task system, integration hook). Implementations must honor
// the context deadline; the execution adapter classifies their errors into
// retryable and fatal via models.ErrExecutionTransient / ErrExecutionFatal.
type ActionConnector interface {
	// ActionType returns the proposal action type this connector serves.
	ActionType() string

	// Invoke performs the side effect with the decided payload and returns
	// a result document for the execution record.
	Invoke(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error)
}

// ConnectorRegistry resolves connectors by action type.
type ConnectorRegistry interface {
	// Resolve returns the connector for actionType, or false when no
	// collaborator handles it (a fatal, non-retryable condition).
	Resolve(actionType string) (ActionConnector, bool)
}
