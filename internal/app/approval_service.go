package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/approval"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// ApprovalServiceImpl implements the ApprovalService interface.
type ApprovalServiceImpl struct {
	assignmentRepo secondary.AssignmentRepository
	outboxRepo     secondary.OutboxRepository
	cfg            *config.Config
}

// NewApprovalService creates a new ApprovalService with injected dependencies.
func NewApprovalService(
	assignmentRepo secondary.AssignmentRepository,
	outboxRepo secondary.OutboxRepository,
	cfg *config.Config,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		assignmentRepo: assignmentRepo,
		outboxRepo:     outboxRepo,
		cfg:            cfg,
	}
}

// AckAssignment acknowledges a PENDING assignment.
func (s *ApprovalServiceImpl) AckAssignment(ctx context.Context, assignmentID string) error {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	guard := approval.CanAck(approval.TransitionContext{
		AssignmentID: assignmentID,
		Status:       assignment.Status,
	})
	if !guard.Allowed {
		return fmt.Errorf("%s: %w", guard.Reason, models.ErrValidation)
	}
	return s.assignmentRepo.Ack(ctx, assignmentID, time.Now().UTC())
}

// GetAssignment retrieves an assignment by ID.
func (s *ApprovalServiceImpl) GetAssignment(ctx context.Context, assignmentID string) (*models.ApprovalAssignment, error) {
	return s.assignmentRepo.GetByID(ctx, assignmentID)
}

// ListAssignments lists assignments with optional filters.
func (s *ApprovalServiceImpl) ListAssignments(ctx context.Context, filters primary.AssignmentFilters) ([]*models.ApprovalAssignment, error) {
	return s.assignmentRepo.List(ctx, secondary.AssignmentFilters{
		OrganizationID: filters.OrganizationID,
		ReviewerID:     filters.ReviewerID,
		Status:         filters.Status,
		Limit:          filters.Limit,
	})
}

// SweepSLA escalates breached assignments and expires assignments past the
// grace period. The repository's conditional updates claim each row exactly
// once, so the outbox entry written here never duplicates across concurrent
// sweeps.
func (s *ApprovalServiceImpl) SweepSLA(ctx context.Context) (primary.SweepResult, error) {
	now := time.Now().UTC()
	var result primary.SweepResult

	reason := fmt.Sprintf("SLA breached, rerouted to %s", s.cfg.EscalationReviewer)
	escalated, err := s.assignmentRepo.SweepEscalations(ctx, now, s.cfg.EscalationReviewer, reason)
	if err != nil {
		return result, fmt.Errorf("failed to sweep escalations: %w", err)
	}
	for _, a := range escalated {
		if err := s.notify(ctx, a, models.TopicSLAEscalated, now); err != nil {
			return result, err
		}
		result.Escalated++
	}

	expired, err := s.assignmentRepo.SweepExpirations(ctx, now, s.cfg.SLAGrace())
	if err != nil {
		return result, fmt.Errorf("failed to sweep expirations: %w", err)
	}
	for _, a := range expired {
		if err := s.notify(ctx, a, models.TopicAssignmentExpired, now); err != nil {
			return result, err
		}
		result.Expired++
	}

	return result, nil
}

func (s *ApprovalServiceImpl) notify(ctx context.Context, a *models.ApprovalAssignment, topic string, now time.Time) error {
	entry := &models.OutboxEntry{
		ID:             newID("obx"),
		OrganizationID: a.OrganizationID,
		Topic:          topic,
		Payload: map[string]any{
			"assignment_id": a.ID,
			"proposal_id":   a.ProposalID,
			"reviewer_id":   a.ReviewerID,
			"sla_due_at":    a.SLADueAt.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	}
	if err := s.outboxRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue %s notice: %w", topic, err)
	}
	return nil
}

// Ensure ApprovalServiceImpl implements the interface
var _ primary.ApprovalService = (*ApprovalServiceImpl)(nil)
