package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// JobRepository implements secondary.JobRepository with SQLite. The
// async_jobs table is the durable queue; Claim is the contention point and
// uses a conditional update keyed on the candidate's current status, so two
// workers can never claim the same job.
type JobRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// claimRetries bounds how often Claim re-picks a candidate after losing a
// race to another worker before reporting an empty queue.
const claimRetries = 3

// NewJobRepository creates a new SQLite job repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewJobRepository(db *sql.DB, logWriter secondary.LogWriter) *JobRepository {
	return &JobRepository{db: db, logWriter: logWriter}
}

// Create persists a new job in QUEUED state.
func (r *JobRepository) Create(ctx context.Context, job *models.AsyncJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO async_jobs (id, organization_id, type, entity_id, correlation_id, priority, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'QUEUED', 0, ?, ?, ?, ?)`,
		job.ID,
		job.OrganizationID,
		job.Type,
		job.EntityID,
		nullString(job.CorrelationID),
		job.Priority,
		job.MaxAttempts,
		sqlTime(job.ScheduledAt),
		sqlTime(job.CreatedAt),
		sqlTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "async_job", job.ID)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.AsyncJob, error) {
	row := r.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Claim atomically claims the oldest due QUEUED job for workerID. The
// candidate select and the conditional update are separate statements; the
// update's WHERE status = 'QUEUED' guard makes the claim atomic, and losing
// the race just means picking the next candidate.
func (r *JobRepository) Claim(ctx context.Context, workerID string) (*models.AsyncJob, error) {
	now := sqlTime(time.Now())

	for attempt := 0; attempt < claimRetries; attempt++ {
		var id string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM async_jobs WHERE status = 'QUEUED' AND scheduled_at <= ? ORDER BY priority, created_at, id LIMIT 1`,
			now,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find claimable job: %w", err)
		}

		result, err := r.db.ExecContext(ctx,
			`UPDATE async_jobs SET status = 'RUNNING', claimed_by = ?, updated_at = ? WHERE id = ? AND status = 'QUEUED'`,
			workerID, now, id,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			continue // lost the race, try the next candidate
		}

		job, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.logWriter != nil {
			_ = r.logWriter.LogUpdate(ctx, "async_job", id, "status", "QUEUED", "RUNNING")
		}
		return job, nil
	}

	return nil, nil
}

// Complete transitions a RUNNING job to SUCCESS.
func (r *JobRepository) Complete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = 'SUCCESS', updated_at = ? WHERE id = ? AND status = 'RUNNING'`,
		sqlTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job %s is not RUNNING", id)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "async_job", id, "status", "RUNNING", "SUCCESS")
	}
	return nil
}

// FailRetry records a failed attempt and requeues the job for nextRunAt.
func (r *JobRepository) FailRetry(ctx context.Context, id, errMsg string, nextRunAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = 'QUEUED', attempts = attempts + 1, last_error = ?, scheduled_at = ?, claimed_by = NULL, updated_at = ?
		 WHERE id = ? AND status = 'RUNNING'`,
		errMsg, sqlTime(nextRunAt), sqlTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job %s is not RUNNING", id)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "async_job", id, "status", "RUNNING", "QUEUED")
	}
	return nil
}

// FailDead records a failed attempt and dead-letters the job.
func (r *JobRepository) FailDead(ctx context.Context, id, errMsg string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = 'DEAD_LETTER', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ? AND status = 'RUNNING'`,
		errMsg, sqlTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job %s is not RUNNING", id)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "async_job", id, "status", "RUNNING", "DEAD_LETTER")
	}
	return nil
}

// CancelQueuedByCorrelation cancels all still-QUEUED jobs with the given
// correlation ID. RUNNING jobs are untouched.
func (r *JobRepository) CancelQueuedByCorrelation(ctx context.Context, correlationID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = 'CANCELLED', updated_at = ? WHERE correlation_id = ? AND status = 'QUEUED'`,
		sqlTime(time.Now()), correlationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel jobs: %w", err)
	}
	affected, _ := result.RowsAffected()

	if affected > 0 && r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "async_job", correlationID, "status", "QUEUED", "CANCELLED")
	}
	return int(affected), nil
}

// List retrieves jobs matching the given filters.
func (r *JobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*models.AsyncJob, error) {
	query := selectJob + ` WHERE 1=1`
	args := []any{}

	if filters.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filters.OrganizationID)
	}
	if filters.Type != "" {
		query += " AND type = ?"
		args = append(args, filters.Type)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, filters.CorrelationID)
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AsyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM async_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

const selectJob = `SELECT id, organization_id, type, entity_id, correlation_id, priority, status, attempts, max_attempts, scheduled_at, claimed_by, last_error, created_at, updated_at FROM async_jobs`

func scanJob(row rowScanner) (*models.AsyncJob, error) {
	var (
		job           models.AsyncJob
		correlationID sql.NullString
		scheduledAt   time.Time
		claimedBy     sql.NullString
		lastError     sql.NullString
		createdAt     time.Time
		updatedAt     time.Time
	)
	err := row.Scan(
		&job.ID, &job.OrganizationID, &job.Type, &job.EntityID, &correlationID, &job.Priority,
		&job.Status, &job.Attempts, &job.MaxAttempts, &scheduledAt, &claimedBy, &lastError,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.CorrelationID = correlationID.String
	job.ScheduledAt = scheduledAt
	job.ClaimedBy = claimedBy.String
	job.LastError = lastError.String
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return &job, nil
}

var _ secondary.JobRepository = (*JobRepository)(nil)
