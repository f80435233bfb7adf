// Package connector contains the action connectors through which approved
// decisions touch the outside world, and the registry that resolves them by
// action type. Connectors return models.ErrExecutionTransient or
// models.ErrExecutionFatal wrapped errors so the execution adapter can
// classify retries without knowing transport details.
package connector

import (
	"context"

	"github.com/example/warden/internal/ports/secondary"
)

// Registry is a static action-type -> connector table built at wiring time.
// Registration happens before any worker starts; lookups are read-only.
type Registry struct {
	connectors map[string]secondary.ActionConnector
}

// NewRegistry creates a registry over the given connectors. Later
// registrations for the same action type win.
func NewRegistry(connectors ...secondary.ActionConnector) *Registry {
	r := &Registry{connectors: make(map[string]secondary.ActionConnector)}
	for _, c := range connectors {
		r.connectors[c.ActionType()] = c
	}
	return r
}

// Register adds a connector, replacing any existing one for the action type.
func (r *Registry) Register(c secondary.ActionConnector) {
	r.connectors[c.ActionType()] = c
}

// Resolve returns the connector for actionType.
func (r *Registry) Resolve(actionType string) (secondary.ActionConnector, bool) {
	c, ok := r.connectors[actionType]
	return c, ok
}

type funcConnector struct {
	actionType string
	invoke     func(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error)
}

// NewFunc wraps fn as a connector for actionType.
func NewFunc(actionType string, fn func(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error)) secondary.ActionConnector {
	return &funcConnector{actionType: actionType, invoke: fn}
}

func (f *funcConnector) ActionType() string { return f.actionType }

func (f *funcConnector) Invoke(ctx context.Context, organizationID string, payload map[string]any) (map[string]any, error) {
	return f.invoke(ctx, organizationID, payload)
}

var _ secondary.ConnectorRegistry = (*Registry)(nil)
