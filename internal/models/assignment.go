package models

import "time"

// ApprovalAssignment binds a pending proposal to a reviewer with an SLA
// deadline. Escalation fields are set at most once, on first SLA breach.
type ApprovalAssignment struct {
	ID               string
	ProposalID       string
	OrganizationID   string
	ReviewerID       string
	Status           string
	SLADueAt         time.Time
	EscalatedToUser  string
	EscalatedAt      *time.Time
	EscalationReason string
	AckedAt          *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// Assignment status constants.
const (
	AssignmentPending = "PENDING"
	AssignmentAcked   = "ACKED"
	AssignmentDone    = "DONE"
	AssignmentExpired = "EXPIRED"
)

// Escalated reports whether the assignment has already been escalated.
func (a *ApprovalAssignment) Escalated() bool {
	return a.EscalatedAt != nil
}

// Open reports whether the assignment still awaits a decision.
func (a *ApprovalAssignment) Open() bool {
	return a.Status == AssignmentPending || a.Status == AssignmentAcked
}
