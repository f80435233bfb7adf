// Package approval contains the pure state machine for approval
// assignments: PENDING -> ACKED -> DONE, with escalation on SLA breach and
// expiry after a grace period. The sweep itself relies on atomic conditional
// updates in the storage layer; these guards serve the interactive paths.
package approval

import (
	"fmt"
	"time"
)

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

// TransitionContext provides context for assignment transitions.
type TransitionContext struct {
	AssignmentID string
	Status       string
}

// CanAck evaluates whether an assignment can be acknowledged.
// Rules:
// - Status must be PENDING
func CanAck(ctx TransitionContext) GuardResult {
	if ctx.Status != "PENDING" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only ack PENDING assignments (current status: %s)", ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// CanComplete evaluates whether an assignment can be completed.
// Rules:
// - Status must be PENDING or ACKED (a decision closes either)
func CanComplete(ctx TransitionContext) GuardResult {
	if ctx.Status != "PENDING" && ctx.Status != "ACKED" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only complete open assignments (current status: %s)", ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// EscalationDue reports whether an assignment has breached its SLA and has
// not been escalated yet. Escalation happens at most once.
func EscalationDue(status string, slaDueAt time.Time, escalatedAt *time.Time, now time.Time) bool {
	return status == "PENDING" && escalatedAt == nil && slaDueAt.Before(now)
}

// ExpiryDue reports whether an open assignment has exhausted the grace
// period past its SLA deadline.
func ExpiryDue(status string, slaDueAt time.Time, grace time.Duration, now time.Time) bool {
	if status != "PENDING" && status != "ACKED" {
		return false
	}
	return slaDueAt.Add(grace).Before(now)
}
