package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// JobService defines the primary port for the async job registry. Claim,
// Complete, and Fail are internal worker operations, not user-facing.
type JobService interface {
	// Enqueue records a new unit of asynchronous work.
	Enqueue(ctx context.Context, req EnqueueRequest) (*models.AsyncJob, error)

	// Claim atomically claims the next due job for a worker; nil when the
	// queue is empty.
	Claim(ctx context.Context, workerID string) (*models.AsyncJob, error)

	// Complete marks a claimed job successful.
	Complete(ctx context.Context, jobID string) error

	// Fail records a failed attempt, applying the retry policy: retryable
	// errors requeue with exponential backoff until maxAttempts, fatal
	// errors and exhausted budgets dead-letter with an outbox notice.
	Fail(ctx context.Context, jobID string, jobErr error) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*models.AsyncJob, error)

	// ListJobs lists jobs with optional filters.
	ListJobs(ctx context.Context, filters JobFilters) ([]*models.AsyncJob, error)
}

// EnqueueRequest contains parameters for enqueuing a job.
type EnqueueRequest struct {
	OrganizationID string
	Type           string
	EntityID       string
	CorrelationID  string
	Priority       int
	// MaxAttempts defaults to the configured budget when zero.
	MaxAttempts int
}

// JobFilters contains filter options for listing jobs.
type JobFilters struct {
	OrganizationID string
	Type           string
	Status         string
	CorrelationID  string
	Limit          int
}
