package primary

import (
	"context"

	"github.com/example/warden/internal/core/policy"
	"github.com/example/warden/internal/models"
)

// PolicyService defines the primary port for policy rule management and
// evaluation.
type PolicyService interface {
	// AddRule creates a new policy rule.
	AddRule(ctx context.Context, req AddRuleRequest) (*models.PolicyRule, error)

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, ruleID string) (*models.PolicyRule, error)

	// ListRules lists rules with optional filters.
	ListRules(ctx context.Context, filters PolicyRuleFilters) ([]*models.PolicyRule, error)

	// SetRuleEnabled enables or disables a rule.
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error

	// EvaluateProposal runs the pure engine against the organization's
	// current rule set. Evaluation errors are logged and surface as
	// "no match"; a broken rule never approves anything.
	EvaluateProposal(ctx context.Context, proposal models.Proposal) (policy.Evaluation, error)
}

// AddRuleRequest contains parameters for creating a policy rule.
type AddRuleRequest struct {
	OrganizationID     string
	ActionType         string
	Scope              string
	MaxRiskLevel       string
	Conditions         []models.Condition
	AutoDecision       string
	AutoDecisionReason string
}

// PolicyRuleFilters contains filter options for listing policy rules.
type PolicyRuleFilters struct {
	OrganizationID string
	ActionType     string
	EnabledOnly    bool
}
