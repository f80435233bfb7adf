// Package policy contains the pure auto-decision rule evaluator.
// Evaluation has no side effects and no hidden state: identical
// (proposal, rule set, config) inputs always produce identical results.
package policy

import (
	"fmt"
	"sort"

	"github.com/example/warden/internal/core/predicate"
	"github.com/example/warden/internal/models"
)

// Config carries evaluation settings. Threaded through the call explicitly;
// there is no global kill switch.
type Config struct {
	// Enabled is the policy engine kill switch. When false no rule ever
	// matches and every proposal routes to human approval.
	Enabled bool
}

// Evaluation is the outcome of evaluating a proposal against a rule set.
type Evaluation struct {
	Matched      bool
	Rule         *models.PolicyRule
	AutoDecision string
	Reason       string
}

// Evaluate applies the first satisfying rule to the proposal, in the
// deterministic total order (scope specificity desc, createdAt asc, id asc).
// A rule satisfies when it is enabled, covers the proposal's scope, its risk
// ceiling dominates the proposal's risk level, and all its conditions hold
// against the payload.
//
// A malformed condition aborts evaluation with an error wrapping
// models.ErrPolicyEvaluation; the caller must treat that as "no match" and
// log it. Silent non-determinism here would be a wrong auto-approval.
func Evaluate(rules []models.PolicyRule, proposal models.Proposal, cfg Config) (Evaluation, error) {
	if !cfg.Enabled {
		return Evaluation{Reason: "policy engine disabled"}, nil
	}

	ordered := Order(rules)
	for i := range ordered {
		rule := &ordered[i]
		if !rule.Enabled {
			continue
		}
		if rule.OrganizationID != proposal.OrganizationID || rule.ActionType != proposal.ActionType {
			continue
		}
		if !rule.AppliesTo(proposal.Scope) {
			continue
		}
		if !rule.Dominates(proposal.RiskLevel) {
			continue
		}
		ok, err := predicate.All(rule.Conditions, proposal.Payload)
		if err != nil {
			return Evaluation{}, fmt.Errorf("rule %s: %v: %w", rule.ID, err, models.ErrPolicyEvaluation)
		}
		if !ok {
			continue
		}
		reason := rule.AutoDecisionReason
		if reason == "" {
			reason = fmt.Sprintf("matched rule %s", rule.ID)
		}
		return Evaluation{
			Matched:      true,
			Rule:         rule,
			AutoDecision: rule.AutoDecision,
			Reason:       reason,
		}, nil
	}

	return Evaluation{Reason: "no matching rule"}, nil
}

// Order returns rules sorted into the evaluation order. The sort is total:
// scope specificity descending, creation time ascending, then ID ascending
// so two rules created in the same instant still order deterministically.
func Order(rules []models.PolicyRule) []models.PolicyRule {
	ordered := make([]models.PolicyRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := models.ScopeSpecificity(ordered[i].Scope), models.ScopeSpecificity(ordered[j].Scope)
		if si != sj {
			return si > sj
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}
