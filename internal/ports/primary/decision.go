package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// DecisionService defines the primary port for recording decisions.
type DecisionService interface {
	// RecordDecision records the single active decision for a proposal,
	// snapshotting the proposal into the decision row. Fails with
	// models.ErrAlreadyDecided when an active decision exists. Approvals
	// enqueue an EXECUTE_DECISION job; nothing executes synchronously.
	RecordDecision(ctx context.Context, req RecordDecisionRequest) (*models.Decision, error)

	// SupersedeDecision corrects a prior decision with a new one
	// referencing it. The old row is never updated beyond the
	// superseded_by bookkeeping column.
	SupersedeDecision(ctx context.Context, decisionID string, req RecordDecisionRequest) (*models.Decision, error)

	// GetDecision retrieves a decision by ID.
	GetDecision(ctx context.Context, decisionID string) (*models.Decision, error)

	// ListDecisions lists decisions with optional filters.
	ListDecisions(ctx context.Context, filters DecisionFilters) ([]*models.Decision, error)
}

// RecordDecisionRequest contains parameters for recording a decision.
type RecordDecisionRequest struct {
	ProposalID      string
	Decision        string
	DecidedBy       string
	Reason          string
	ModifiedPayload map[string]any
}

// DecisionFilters contains filter options for listing decisions.
type DecisionFilters struct {
	OrganizationID string
	ProposalID     string
	DecidedBy      string
	Limit          int
}
