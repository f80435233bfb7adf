package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/decision"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// DecisionServiceImpl implements the DecisionService interface. Recording a
// decision is the pivot of the whole flow: it closes the open assignment,
// appends the reasoning ledger entry, emits the outbox notice, and enqueues
// the follow-up job. Nothing executes synchronously in this service.
type DecisionServiceImpl struct {
	decisionRepo   secondary.DecisionRepository
	proposalRepo   secondary.ProposalRepository
	assignmentRepo secondary.AssignmentRepository
	jobRepo        secondary.JobRepository
	playbookRepo   secondary.PlaybookRepository
	outboxRepo     secondary.OutboxRepository
	evidenceRepo   secondary.EvidenceRepository
	cfg            *config.Config
}

// NewDecisionService creates a new DecisionService with injected dependencies.
func NewDecisionService(
	decisionRepo secondary.DecisionRepository,
	proposalRepo secondary.ProposalRepository,
	assignmentRepo secondary.AssignmentRepository,
	jobRepo secondary.JobRepository,
	playbookRepo secondary.PlaybookRepository,
	outboxRepo secondary.OutboxRepository,
	evidenceRepo secondary.EvidenceRepository,
	cfg *config.Config,
) *DecisionServiceImpl {
	return &DecisionServiceImpl{
		decisionRepo:   decisionRepo,
		proposalRepo:   proposalRepo,
		assignmentRepo: assignmentRepo,
		jobRepo:        jobRepo,
		playbookRepo:   playbookRepo,
		outboxRepo:     outboxRepo,
		evidenceRepo:   evidenceRepo,
		cfg:            cfg,
	}
}

// RecordDecision records the single active decision for a proposal.
func (s *DecisionServiceImpl) RecordDecision(ctx context.Context, req primary.RecordDecisionRequest) (*models.Decision, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, req.ProposalID)
	if err != nil {
		// Unknown proposal surfaces as not-found, not as a validation
		// failure; the API maps the two to different status codes.
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("proposal %s: %w", req.ProposalID, models.ErrNotFound)
		}
		return nil, err
	}

	guard := decision.CanRecordDecision(decision.RecordContext{
		ProposalID:     req.ProposalID,
		ProposalExists: proposal != nil,
		Verdict:        req.Decision,
		ValidVerdict:   models.ValidVerdict(req.Decision),
		Actor:          req.DecidedBy,
		HasModified:    req.ModifiedPayload != nil,
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%s: %w", guard.Reason, models.ErrValidation)
	}

	dec := s.build(proposal, req, "")
	if err := s.decisionRepo.CreateIfAbsent(ctx, dec); err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, proposal, dec); err != nil {
		return nil, err
	}
	return dec, nil
}

// SupersedeDecision corrects a prior decision with a new one referencing it.
func (s *DecisionServiceImpl) SupersedeDecision(ctx context.Context, decisionID string, req primary.RecordDecisionRequest) (*models.Decision, error) {
	old, err := s.decisionRepo.GetByID(ctx, decisionID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	guard := decision.CanSupersedeDecision(decision.SupersedeContext{
		DecisionID:        decisionID,
		DecisionExists:    old != nil,
		AlreadySuperseded: old != nil && old.SupersededBy != "",
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%s: %w", guard.Reason, models.ErrValidation)
	}

	// The correction always targets the original proposal.
	req.ProposalID = old.ProposalID
	proposal, err := s.proposalRepo.GetByID(ctx, old.ProposalID)
	if err != nil {
		return nil, err
	}

	recordGuard := decision.CanRecordDecision(decision.RecordContext{
		ProposalID:     req.ProposalID,
		ProposalExists: true,
		Verdict:        req.Decision,
		ValidVerdict:   models.ValidVerdict(req.Decision),
		Actor:          req.DecidedBy,
		HasModified:    req.ModifiedPayload != nil,
	})
	if !recordGuard.Allowed {
		return nil, fmt.Errorf("%s: %w", recordGuard.Reason, models.ErrValidation)
	}

	dec := s.build(proposal, req, old.ID)
	if err := s.decisionRepo.Supersede(ctx, old.ID, dec); err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, proposal, dec); err != nil {
		return nil, err
	}
	return dec, nil
}

// GetDecision retrieves a decision by ID.
func (s *DecisionServiceImpl) GetDecision(ctx context.Context, decisionID string) (*models.Decision, error) {
	return s.decisionRepo.GetByID(ctx, decisionID)
}

// ListDecisions lists decisions with optional filters.
func (s *DecisionServiceImpl) ListDecisions(ctx context.Context, filters primary.DecisionFilters) ([]*models.Decision, error) {
	return s.decisionRepo.List(ctx, secondary.DecisionFilters{
		OrganizationID: filters.OrganizationID,
		ProposalID:     filters.ProposalID,
		DecidedBy:      filters.DecidedBy,
		Limit:          filters.Limit,
	})
}

func (s *DecisionServiceImpl) build(proposal *models.Proposal, req primary.RecordDecisionRequest, supersedesID string) *models.Decision {
	return &models.Decision{
		ID:               newID("dec"),
		ProposalID:       proposal.ID,
		OrganizationID:   proposal.OrganizationID,
		Decision:         req.Decision,
		DecidedBy:        req.DecidedBy,
		Reason:           req.Reason,
		ModifiedPayload:  req.ModifiedPayload,
		ProposalSnapshot: proposalSnapshot(proposal),
		SupersedesID:     supersedesID,
		CreatedAt:        time.Now().UTC(),
	}
}

// finalize performs the bookkeeping that follows a recorded decision. The
// decision row is already durable at this point; each follow-up failure is
// returned so the caller can retry its own operation, but the decision
// itself stands.
func (s *DecisionServiceImpl) finalize(ctx context.Context, proposal *models.Proposal, dec *models.Decision) error {
	now := time.Now().UTC()

	if err := s.assignmentRepo.Complete(ctx, proposal.ID, now); err != nil {
		return fmt.Errorf("failed to complete assignment for %s: %w", proposal.ID, err)
	}

	entry := &models.OutboxEntry{
		ID:             newID("obx"),
		OrganizationID: proposal.OrganizationID,
		Topic:          models.TopicDecisionRecorded,
		Payload: map[string]any{
			"proposal_id": proposal.ID,
			"decision_id": dec.ID,
			"decision":    dec.Decision,
			"decided_by":  dec.DecidedBy,
			"reason":      dec.Reason,
		},
		CreatedAt: now,
	}
	if err := s.outboxRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue decision notice: %w", err)
	}

	ledger := &models.ReasoningLedgerEntry{
		ID:         newID("rsn"),
		EntityType: models.LinkFromDecision,
		EntityID:   dec.ID,
		Summary:    fmt.Sprintf("%s by %s: %s", dec.Decision, dec.DecidedBy, dec.Reason),
		Confidence: 1.0,
		Model:      "warden-engine",
		CreatedAt:  now,
	}
	if err := s.evidenceRepo.CreateLedgerEntry(ctx, ledger); err != nil {
		return fmt.Errorf("failed to append reasoning ledger entry: %w", err)
	}

	if dec.Executable() {
		job := &models.AsyncJob{
			ID:             newID("job"),
			OrganizationID: proposal.OrganizationID,
			Type:           models.JobExecuteDecision,
			EntityID:       dec.ID,
			CorrelationID:  proposal.CorrelationID,
			Priority:       models.DefaultJobPriority,
			MaxAttempts:    s.cfg.MaxAttempts,
			ScheduledAt:    now,
			CreatedAt:      now,
		}
		if err := s.jobRepo.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue execution job for %s: %w", dec.ID, err)
		}
		return nil
	}

	// A rejected run-step proposal never executes, so the run engine must be
	// poked directly to route the step's failure edge.
	runStep, err := s.playbookRepo.GetRunStepByProposal(ctx, proposal.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	job := &models.AsyncJob{
		ID:             newID("job"),
		OrganizationID: proposal.OrganizationID,
		Type:           models.JobAdvancePlaybookStep,
		EntityID:       runStep.ID,
		CorrelationID:  runStep.RunID,
		Priority:       models.DefaultJobPriority,
		MaxAttempts:    s.cfg.MaxAttempts,
		ScheduledAt:    now,
		CreatedAt:      now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue advance job for %s: %w", runStep.ID, err)
	}
	return nil
}

// proposalSnapshot copies the proposal into the decision row so the decision
// is self-contained even if readers never join back to proposals.
func proposalSnapshot(p *models.Proposal) map[string]any {
	return map[string]any{
		"id":              p.ID,
		"organization_id": p.OrganizationID,
		"action_type":     p.ActionType,
		"scope":           p.Scope,
		"payload":         p.Payload,
		"risk_level":      p.RiskLevel,
		"correlation_id":  p.CorrelationID,
		"created_at":      p.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Ensure DecisionServiceImpl implements the interface
var _ primary.DecisionService = (*DecisionServiceImpl)(nil)
