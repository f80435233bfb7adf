package models

import "time"

// PolicyRule is a per-organization auto-decision rule keyed by
// (actionType, scope). Rules are evaluated in a deterministic total order:
// scope specificity descending, then createdAt ascending, then ID ascending.
type PolicyRule struct {
	ID                 string
	OrganizationID     string
	ActionType         string
	Scope              string
	MaxRiskLevel       string
	Conditions         []Condition
	AutoDecision       string
	AutoDecisionReason string
	Enabled            bool
	CreatedAt          time.Time
}

// ScopeSpecificity returns the ordering weight of a rule scope. Higher is
// more specific and wins the tie-break. ANY is the least specific wildcard.
func ScopeSpecificity(scope string) int {
	switch scope {
	case ScopeInitiative:
		return 3
	case ScopeUser:
		return 2
	case ScopeOrg:
		return 1
	default: // ANY
		return 0
	}
}

// AppliesTo reports whether the rule's scope covers the proposal's scope.
func (r *PolicyRule) AppliesTo(proposalScope string) bool {
	return r.Scope == ScopeAny || r.Scope == proposalScope
}

// Dominates reports whether the rule's risk ceiling covers the proposal's
// risk level. A MEDIUM ceiling covers LOW and MEDIUM proposals, never HIGH.
func (r *PolicyRule) Dominates(riskLevel string) bool {
	return RiskRank(r.MaxRiskLevel) >= RiskRank(riskLevel)
}
