package models

import "time"

// EvidenceObject is a redacted raw input preserved for audit. Insert-only.
type EvidenceObject struct {
	ID             string
	OrganizationID string
	Kind           string
	Content        string
	SHA256         string
	CreatedAt      time.Time
}

// ExplainabilityLink associates evidence (weighted) with a governance
// record. Adding links is the only mutation surface besides insert.
type ExplainabilityLink struct {
	ID         string
	FromType   string
	FromID     string
	EvidenceID string
	Weight     float64
	Note       string
	CreatedAt  time.Time
}

// Link source types.
const (
	LinkFromProposal  = "PROPOSAL"
	LinkFromDecision  = "DECISION"
	LinkFromExecution = "EXECUTION"
	LinkFromRunStep   = "RUN_STEP"
)

// ValidLinkFromType reports whether t names a linkable entity type.
func ValidLinkFromType(t string) bool {
	switch t {
	case LinkFromProposal, LinkFromDecision, LinkFromExecution, LinkFromRunStep:
		return true
	}
	return false
}

// ReasoningLedgerEntry is a server-generated, immutable reasoning summary
// with a numeric confidence. Client-supplied reasoning text is never
// accepted; corrections append a new entry and readers take the latest per
// (EntityType, EntityID).
type ReasoningLedgerEntry struct {
	ID         string
	EntityType string
	EntityID   string
	Summary    string
	Confidence float64
	Model      string
	CreatedAt  time.Time
}
