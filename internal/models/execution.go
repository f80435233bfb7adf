package models

import "time"

// Execution is the append-only result of one attempt to run an approved
// decision. A retried execution creates a new row, never overwrites.
type Execution struct {
	ID             string
	DecisionID     string
	OrganizationID string
	Status         string
	Result         map[string]any
	ErrorCode      string
	DurationMs     int64
	CreatedAt      time.Time
}

// Execution status constants.
const (
	ExecutionSuccess = "SUCCESS"
	ExecutionFailed  = "FAILED"
)
