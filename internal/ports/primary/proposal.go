// Package primary defines the primary ports (driving interfaces) of the
// governance engine: the operations the HTTP API and CLI call into.
package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// ProposalService defines the primary port for proposal ingestion.
type ProposalService interface {
	// CreateProposal validates and stores a proposal, runs the policy
	// engine, and either records an auto-decision (returned inline) or
	// creates an approval assignment with an SLA deadline.
	CreateProposal(ctx context.Context, req CreateProposalRequest) (*CreateProposalResponse, error)

	// GetProposal retrieves a proposal by ID.
	GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error)

	// ListProposals lists proposals with optional filters.
	ListProposals(ctx context.Context, filters ProposalFilters) ([]*models.Proposal, error)
}

// CreateProposalRequest contains parameters for proposal ingestion.
type CreateProposalRequest struct {
	OrganizationID string
	ActionType     string
	Scope          string
	Payload        map[string]any
	RiskLevel      string
	CorrelationID  string
	// ReviewerID receives the approval assignment when no rule matches.
	// Falls back to the configured default reviewer.
	ReviewerID string
}

// CreateProposalResponse contains the result of proposal ingestion.
type CreateProposalResponse struct {
	Proposal *models.Proposal
	// Decision is set when the policy engine auto-decided in this call.
	Decision *models.Decision
	// Assignment is set when the proposal awaits human approval.
	Assignment *models.ApprovalAssignment
}

// ProposalFilters contains filter options for listing proposals.
type ProposalFilters struct {
	OrganizationID string
	ActionType     string
	CorrelationID  string
	Limit          int
}
