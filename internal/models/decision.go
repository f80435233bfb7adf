package models

import "time"

// Decision is the recorded human or policy verdict on a proposal.
// At most one non-superseded decision exists per proposal; corrections
// append a new decision referencing the old one, never an update.
type Decision struct {
	ID               string
	ProposalID       string
	OrganizationID   string
	Decision         string
	DecidedBy        string
	Reason           string
	ModifiedPayload  map[string]any
	ProposalSnapshot map[string]any
	SupersedesID     string
	SupersededBy     string
	CreatedAt        time.Time
}

// Decision verdict constants.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
	DecisionModified = "MODIFIED"
)

// ValidVerdict reports whether v is a valid decision verdict.
func ValidVerdict(v string) bool {
	return v == DecisionApproved || v == DecisionRejected || v == DecisionModified
}

// Executable reports whether the verdict results in a side effect.
// REJECTED decisions are recorded but never executed.
func (d *Decision) Executable() bool {
	return d.Decision == DecisionApproved || d.Decision == DecisionModified
}

// EffectivePayload returns the payload the execution adapter should send:
// the modified payload for MODIFIED decisions, otherwise the snapshot payload.
func (d *Decision) EffectivePayload() map[string]any {
	if d.Decision == DecisionModified && d.ModifiedPayload != nil {
		return d.ModifiedPayload
	}
	if payload, ok := d.ProposalSnapshot["payload"].(map[string]any); ok {
		return payload
	}
	return nil
}

// PolicyActor builds the decidedBy value for a policy auto-decision.
func PolicyActor(ruleID string) string {
	return "policy:" + ruleID
}
