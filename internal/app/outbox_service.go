package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// OutboxServiceImpl implements the OutboxService interface. The engine only
// queues notices; an external consumer polls and acknowledges them here.
type OutboxServiceImpl struct {
	outboxRepo secondary.OutboxRepository
}

// NewOutboxService creates a new OutboxService with injected dependencies.
func NewOutboxService(outboxRepo secondary.OutboxRepository) *OutboxServiceImpl {
	return &OutboxServiceImpl{outboxRepo: outboxRepo}
}

// PollQueued retrieves up to limit QUEUED entries, oldest first.
func (s *OutboxServiceImpl) PollQueued(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	return s.outboxRepo.ListQueued(ctx, limit)
}

// Ack marks an entry SENT or FAILED after a delivery attempt.
func (s *OutboxServiceImpl) Ack(ctx context.Context, entryID, status, deliveryError string) error {
	switch status {
	case models.OutboxSent:
		return s.outboxRepo.MarkSent(ctx, entryID, time.Now().UTC())
	case models.OutboxFailed:
		return s.outboxRepo.MarkFailed(ctx, entryID, deliveryError)
	default:
		return fmt.Errorf("invalid ack status %q: %w", status, models.ErrValidation)
	}
}

// ListEntries lists entries with optional filters.
func (s *OutboxServiceImpl) ListEntries(ctx context.Context, filters primary.OutboxFilters) ([]*models.OutboxEntry, error) {
	return s.outboxRepo.List(ctx, secondary.OutboxFilters{
		OrganizationID: filters.OrganizationID,
		Topic:          filters.Topic,
		Status:         filters.Status,
		Limit:          filters.Limit,
	})
}

// Ensure OutboxServiceImpl implements the interface
var _ primary.OutboxService = (*OutboxServiceImpl)(nil)
