package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// ProposalServiceImpl implements the ProposalService interface. Ingestion is
// the single entry into governance: store the proposal, run the policy
// engine, and either auto-decide or open an approval assignment.
type ProposalServiceImpl struct {
	proposalRepo   secondary.ProposalRepository
	assignmentRepo secondary.AssignmentRepository
	policySvc      primary.PolicyService
	decisionSvc    primary.DecisionService
	cfg            *config.Config
}

// NewProposalService creates a new ProposalService with injected dependencies.
func NewProposalService(
	proposalRepo secondary.ProposalRepository,
	assignmentRepo secondary.AssignmentRepository,
	policySvc primary.PolicyService,
	decisionSvc primary.DecisionService,
	cfg *config.Config,
) *ProposalServiceImpl {
	return &ProposalServiceImpl{
		proposalRepo:   proposalRepo,
		assignmentRepo: assignmentRepo,
		policySvc:      policySvc,
		decisionSvc:    decisionSvc,
		cfg:            cfg,
	}
}

// CreateProposal validates and stores a proposal, then routes it through
// governance: a matching policy rule records the decision inline, otherwise
// an approval assignment with an SLA deadline is opened.
func (s *ProposalServiceImpl) CreateProposal(ctx context.Context, req primary.CreateProposalRequest) (*primary.CreateProposalResponse, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("organization is required: %w", models.ErrValidation)
	}
	if req.ActionType == "" {
		return nil, fmt.Errorf("action type is required: %w", models.ErrValidation)
	}
	if !models.ValidProposalScope(req.Scope) {
		return nil, fmt.Errorf("invalid proposal scope %q: %w", req.Scope, models.ErrValidation)
	}
	if !models.ValidRiskLevel(req.RiskLevel) {
		return nil, fmt.Errorf("invalid risk level %q: %w", req.RiskLevel, models.ErrValidation)
	}

	proposal := &models.Proposal{
		ID:             newID("prop"),
		OrganizationID: req.OrganizationID,
		ActionType:     req.ActionType,
		Scope:          req.Scope,
		Payload:        req.Payload,
		RiskLevel:      req.RiskLevel,
		CorrelationID:  req.CorrelationID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	decision, assignment, err := s.govern(ctx, proposal, req.ReviewerID)
	if err != nil {
		return nil, err
	}
	return &primary.CreateProposalResponse{
		Proposal:   proposal,
		Decision:   decision,
		Assignment: assignment,
	}, nil
}

// govern routes a stored proposal: evaluate policy, record an auto-decision
// or open an assignment. Shared with the playbook engine, which stores its
// action-step proposals itself so the run step linkage exists before any
// decision can fire.
func (s *ProposalServiceImpl) govern(ctx context.Context, proposal *models.Proposal, reviewerID string) (*models.Decision, *models.ApprovalAssignment, error) {
	eval, err := s.policySvc.EvaluateProposal(ctx, *proposal)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate proposal %s: %w", proposal.ID, err)
	}

	if eval.Matched {
		actor := models.PolicyActor(eval.Rule.ID)
		decision, err := s.decisionSvc.RecordDecision(ctxutil.WithActorID(ctx, actor), primary.RecordDecisionRequest{
			ProposalID: proposal.ID,
			Decision:   eval.AutoDecision,
			DecidedBy:  actor,
			Reason:     eval.Reason,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to record auto-decision for %s: %w", proposal.ID, err)
		}
		return decision, nil, nil
	}

	if reviewerID == "" {
		reviewerID = s.cfg.DefaultReviewer
	}
	now := time.Now().UTC()
	assignment := &models.ApprovalAssignment{
		ID:             newID("asn"),
		ProposalID:     proposal.ID,
		OrganizationID: proposal.OrganizationID,
		ReviewerID:     reviewerID,
		Status:         models.AssignmentPending,
		SLADueAt:       now.Add(s.cfg.SLAWindow()),
		CreatedAt:      now,
	}
	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, nil, fmt.Errorf("failed to create assignment for %s: %w", proposal.ID, err)
	}
	return nil, assignment, nil
}

// GetProposal retrieves a proposal by ID.
func (s *ProposalServiceImpl) GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error) {
	return s.proposalRepo.GetByID(ctx, proposalID)
}

// ListProposals lists proposals with optional filters.
func (s *ProposalServiceImpl) ListProposals(ctx context.Context, filters primary.ProposalFilters) ([]*models.Proposal, error) {
	return s.proposalRepo.List(ctx, secondary.ProposalFilters{
		OrganizationID: filters.OrganizationID,
		ActionType:     filters.ActionType,
		CorrelationID:  filters.CorrelationID,
		Limit:          filters.Limit,
	})
}

// Ensure ProposalServiceImpl implements the interface
var _ primary.ProposalService = (*ProposalServiceImpl)(nil)
