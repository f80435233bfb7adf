package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// OutboxService defines the primary port for the notification outbox
// consumer. The engine never delivers notifications; an external service
// polls queued entries and acknowledges the outcome.
type OutboxService interface {
	// PollQueued retrieves up to limit QUEUED entries, oldest first.
	PollQueued(ctx context.Context, limit int) ([]*models.OutboxEntry, error)

	// Ack marks an entry SENT or FAILED after a delivery attempt.
	Ack(ctx context.Context, entryID, status, deliveryError string) error

	// ListEntries lists entries with optional filters.
	ListEntries(ctx context.Context, filters OutboxFilters) ([]*models.OutboxEntry, error)
}

// OutboxFilters contains filter options for listing outbox entries.
type OutboxFilters struct {
	OrganizationID string
	Topic          string
	Status         string
	Limit          int
}
