package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/warden/internal/core/policy"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
	"github.com/example/warden/internal/tracing"
)

// PolicyServiceImpl implements the PolicyService interface.
type PolicyServiceImpl struct {
	ruleRepo secondary.PolicyRuleRepository
	engine   policy.Config
}

// NewPolicyService creates a new PolicyService with injected dependencies.
func NewPolicyService(ruleRepo secondary.PolicyRuleRepository, engine policy.Config) *PolicyServiceImpl {
	return &PolicyServiceImpl{ruleRepo: ruleRepo, engine: engine}
}

// AddRule creates a new policy rule.
func (s *PolicyServiceImpl) AddRule(ctx context.Context, req primary.AddRuleRequest) (*models.PolicyRule, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("organization is required: %w", models.ErrValidation)
	}
	if req.ActionType == "" {
		return nil, fmt.Errorf("action type is required: %w", models.ErrValidation)
	}
	if req.Scope != models.ScopeAny && !models.ValidProposalScope(req.Scope) {
		return nil, fmt.Errorf("invalid rule scope %q: %w", req.Scope, models.ErrValidation)
	}
	if !models.ValidRiskLevel(req.MaxRiskLevel) {
		return nil, fmt.Errorf("invalid max risk level %q: %w", req.MaxRiskLevel, models.ErrValidation)
	}
	if !models.ValidVerdict(req.AutoDecision) {
		return nil, fmt.Errorf("invalid auto decision %q: %w", req.AutoDecision, models.ErrValidation)
	}

	rule := &models.PolicyRule{
		ID:                 newID("rule"),
		OrganizationID:     req.OrganizationID,
		ActionType:         req.ActionType,
		Scope:              req.Scope,
		MaxRiskLevel:       req.MaxRiskLevel,
		Conditions:         req.Conditions,
		AutoDecision:       req.AutoDecision,
		AutoDecisionReason: req.AutoDecisionReason,
		Enabled:            true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create policy rule: %w", err)
	}
	return rule, nil
}

// GetRule retrieves a rule by ID.
func (s *PolicyServiceImpl) GetRule(ctx context.Context, ruleID string) (*models.PolicyRule, error) {
	return s.ruleRepo.GetByID(ctx, ruleID)
}

// ListRules lists rules with optional filters.
func (s *PolicyServiceImpl) ListRules(ctx context.Context, filters primary.PolicyRuleFilters) ([]*models.PolicyRule, error) {
	return s.ruleRepo.List(ctx, secondary.PolicyRuleFilters{
		OrganizationID: filters.OrganizationID,
		ActionType:     filters.ActionType,
		EnabledOnly:    filters.EnabledOnly,
	})
}

// SetRuleEnabled enables or disables a rule.
func (s *PolicyServiceImpl) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error {
	return s.ruleRepo.SetEnabled(ctx, ruleID, enabled)
}

// EvaluateProposal runs the pure engine against the organization's current
// rule set. A broken rule set (malformed condition) is recorded on the span
// and degrades to "no match": auto-approval never happens on a broken rule.
func (s *PolicyServiceImpl) EvaluateProposal(ctx context.Context, proposal models.Proposal) (policy.Evaluation, error) {
	ctx, span := tracing.StartSpan(ctx, "policy.evaluate")
	var evalErr error
	defer func() { span.End(evalErr) }()
	span.WithAttributes(map[string]string{
		"proposal.id":     proposal.ID,
		"proposal.action": proposal.ActionType,
	})

	rules, err := s.ruleRepo.ListForEvaluation(ctx, proposal.OrganizationID, proposal.ActionType)
	if err != nil {
		evalErr = fmt.Errorf("failed to load policy rules: %w", err)
		return policy.Evaluation{}, evalErr
	}

	eval, err := policy.Evaluate(rules, proposal, s.engine)
	if errors.Is(err, models.ErrPolicyEvaluation) {
		evalErr = err
		return policy.Evaluation{Reason: "policy evaluation failed, routed to human approval"}, nil
	}
	if err != nil {
		evalErr = err
		return policy.Evaluation{}, err
	}
	return eval, nil
}

// Ensure PolicyServiceImpl implements the interface
var _ primary.PolicyService = (*PolicyServiceImpl)(nil)
