// Package decision contains the pure business logic for recording decisions.
// Guards evaluate preconditions without side effects; the hard idempotency
// guarantee lives in the storage layer's conditional insert.
package decision

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// RecordContext provides context for decision-recording guards.
type RecordContext struct {
	ProposalID     string
	ProposalExists bool
	Verdict        string
	ValidVerdict   bool
	Actor          string
	HasModified    bool
}

// CanRecordDecision evaluates whether a decision may be recorded.
// Rules:
// - Proposal must exist
// - Verdict must be APPROVED, REJECTED, or MODIFIED
// - Actor must be set (user or policy identity)
// - A modified payload requires a MODIFIED verdict
func CanRecordDecision(ctx RecordContext) GuardResult {
	if !ctx.ProposalExists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("proposal %s not found", ctx.ProposalID),
		}
	}
	if !ctx.ValidVerdict {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("invalid decision %q (must be APPROVED, REJECTED, or MODIFIED)", ctx.Verdict),
		}
	}
	if ctx.Actor == "" {
		return GuardResult{Allowed: false, Reason: "decision actor is required"}
	}
	if ctx.HasModified && ctx.Verdict != "MODIFIED" {
		return GuardResult{
			Allowed: false,
			Reason:  "modified payload is only valid with a MODIFIED decision",
		}
	}
	return GuardResult{Allowed: true}
}

// SupersedeContext provides context for decision-supersede guards.
type SupersedeContext struct {
	DecisionID        string
	DecisionExists    bool
	AlreadySuperseded bool
}

// CanSupersedeDecision evaluates whether a decision may be superseded.
// Rules:
// - Decision must exist
// - Decision must not already be superseded (corrections chain forward)
func CanSupersedeDecision(ctx SupersedeContext) GuardResult {
	if !ctx.DecisionExists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("decision %s not found", ctx.DecisionID),
		}
	}
	if ctx.AlreadySuperseded {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("decision %s is already superseded", ctx.DecisionID),
		}
	}
	return GuardResult{Allowed: true}
}
