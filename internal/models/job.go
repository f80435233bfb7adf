package models

import "time"

// AsyncJob is one durable unit of asynchronous work. The async_jobs table is
// the source of truth; the worker pool is a replaceable execution substrate.
type AsyncJob struct {
	ID             string
	OrganizationID string
	Type           string
	EntityID       string
	CorrelationID  string
	Priority       int
	Status         string
	Attempts       int
	MaxAttempts    int
	ScheduledAt    time.Time
	ClaimedBy      string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Job type constants.
const (
	JobExecuteDecision     = "EXECUTE_DECISION"
	JobAdvancePlaybookStep = "ADVANCE_PLAYBOOK_STEP"
)

// Job status constants.
const (
	JobQueued     = "QUEUED"
	JobRunning    = "RUNNING"
	JobSuccess    = "SUCCESS"
	JobFailed     = "FAILED"
	JobDeadLetter = "DEAD_LETTER"
	JobCancelled  = "CANCELLED"
)

// DefaultJobPriority is the priority assigned when the caller does not care.
// Lower numbers are claimed first.
const DefaultJobPriority = 5

// Terminal reports whether the job can no longer change state.
func (j *AsyncJob) Terminal() bool {
	switch j.Status {
	case JobSuccess, JobDeadLetter, JobCancelled:
		return true
	}
	return false
}
