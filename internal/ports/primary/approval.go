package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// ApprovalService defines the primary port for approval assignments and the
// SLA sweep.
type ApprovalService interface {
	// AckAssignment acknowledges a PENDING assignment.
	AckAssignment(ctx context.Context, assignmentID string) error

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, assignmentID string) (*models.ApprovalAssignment, error)

	// ListAssignments lists assignments with optional filters.
	ListAssignments(ctx context.Context, filters AssignmentFilters) ([]*models.ApprovalAssignment, error)

	// SweepSLA escalates breached assignments (once each) and expires
	// assignments past the grace period, emitting one outbox entry per
	// transition. Idempotent: safe to run concurrently and repeatedly.
	SweepSLA(ctx context.Context) (SweepResult, error)
}

// SweepResult summarizes one SLA sweep pass.
type SweepResult struct {
	Escalated int
	Expired   int
}

// AssignmentFilters contains filter options for listing assignments.
type AssignmentFilters struct {
	OrganizationID string
	ReviewerID     string
	Status         string
	Limit          int
}
