// Package models contains domain types for warden entities.
// SQL persistence lives in internal/adapters/sqlite; these types carry no
// storage concerns beyond nullable-field conventions.
package models

import "time"

// Proposal is an action a producer wants performed, awaiting governance.
// Immutable once created; downstream records reference it, never mutate it.
type Proposal struct {
	ID             string
	OrganizationID string
	ActionType     string
	Scope          string
	Payload        map[string]any
	RiskLevel      string
	CorrelationID  string
	CreatedAt      time.Time
}

// Proposal scope constants.
const (
	ScopeUser       = "USER"
	ScopeOrg        = "ORG"
	ScopeInitiative = "INITIATIVE"
	// ScopeAny is valid only on policy rules, as a wildcard.
	ScopeAny = "ANY"
)

// Risk level constants, ordered LOW < MEDIUM < HIGH.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// riskRank orders risk levels for dominance checks. Unknown levels rank
// above HIGH so a typo can never widen an auto-approval.
var riskRank = map[string]int{
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// RiskRank returns the ordering rank of a risk level, or 4 for unknown levels.
func RiskRank(level string) int {
	if r, ok := riskRank[level]; ok {
		return r
	}
	return 4
}

// ValidRiskLevel reports whether level is one of LOW, MEDIUM, HIGH.
func ValidRiskLevel(level string) bool {
	_, ok := riskRank[level]
	return ok
}

// ValidProposalScope reports whether scope is valid on a proposal
// (ANY is reserved for policy rules).
func ValidProposalScope(scope string) bool {
	return scope == ScopeUser || scope == ScopeOrg || scope == ScopeInitiative
}
