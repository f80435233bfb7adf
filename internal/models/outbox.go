package models

import "time"

// OutboxEntry is one user-facing notice derived from the governance flow.
// The engine never delivers notifications itself; an external consumer polls
// QUEUED entries and marks them SENT or FAILED. Substantive columns are
// never updated, only status bookkeeping.
type OutboxEntry struct {
	ID             string
	OrganizationID string
	Topic          string
	Payload        map[string]any
	Status         string
	LastError      string
	CreatedAt      time.Time
	SentAt         *time.Time
}

// Outbox topics. Every async failure mode must surface here; silent failure
// of the async path is a design bug.
const (
	TopicSLAEscalated      = "SLA_ESCALATED"
	TopicAssignmentExpired = "ASSIGNMENT_EXPIRED"
	TopicJobDeadLetter     = "JOB_DEAD_LETTER"
	TopicRunFailed         = "RUN_FAILED"
	TopicRunStalled        = "RUN_STALLED"
	TopicDecisionRecorded  = "DECISION_RECORDED"
)

// Outbox status constants.
const (
	OutboxQueued = "QUEUED"
	OutboxSent   = "SENT"
	OutboxFailed = "FAILED"
)
