package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/job"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// JobServiceImpl implements the JobService interface. The retry policy
// itself lives in internal/core/job; this service applies it to the durable
// registry and surfaces dead letters on the outbox.
type JobServiceImpl struct {
	jobRepo      secondary.JobRepository
	decisionRepo secondary.DecisionRepository
	playbookRepo secondary.PlaybookRepository
	outboxRepo   secondary.OutboxRepository
	cfg          *config.Config
}

// NewJobService creates a new JobService with injected dependencies.
func NewJobService(
	jobRepo secondary.JobRepository,
	decisionRepo secondary.DecisionRepository,
	playbookRepo secondary.PlaybookRepository,
	outboxRepo secondary.OutboxRepository,
	cfg *config.Config,
) *JobServiceImpl {
	return &JobServiceImpl{
		jobRepo:      jobRepo,
		decisionRepo: decisionRepo,
		playbookRepo: playbookRepo,
		outboxRepo:   outboxRepo,
		cfg:          cfg,
	}
}

// Enqueue records a new unit of asynchronous work.
func (s *JobServiceImpl) Enqueue(ctx context.Context, req primary.EnqueueRequest) (*models.AsyncJob, error) {
	if req.Type != models.JobExecuteDecision && req.Type != models.JobAdvancePlaybookStep {
		return nil, fmt.Errorf("unknown job type %q: %w", req.Type, models.ErrValidation)
	}
	if req.EntityID == "" {
		return nil, fmt.Errorf("entity id is required: %w", models.ErrValidation)
	}

	priority := req.Priority
	if priority == 0 {
		priority = models.DefaultJobPriority
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.cfg.MaxAttempts
	}

	now := time.Now().UTC()
	j := &models.AsyncJob{
		ID:             newID("job"),
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		EntityID:       req.EntityID,
		CorrelationID:  req.CorrelationID,
		Priority:       priority,
		MaxAttempts:    maxAttempts,
		ScheduledAt:    now,
		CreatedAt:      now,
	}
	if err := s.jobRepo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	j.Status = models.JobQueued
	return j, nil
}

// Claim atomically claims the next due job for a worker.
func (s *JobServiceImpl) Claim(ctx context.Context, workerID string) (*models.AsyncJob, error) {
	return s.jobRepo.Claim(ctx, workerID)
}

// Complete marks a claimed job successful.
func (s *JobServiceImpl) Complete(ctx context.Context, jobID string) error {
	return s.jobRepo.Complete(ctx, jobID)
}

// Fail records a failed attempt and applies the retry policy. Retryable
// failures requeue with exponential backoff until the attempt budget runs
// out; fatal failures and exhausted budgets dead-letter with an outbox
// notice, and a dead-lettered execution pokes the owning run step so the run
// fails instead of hanging.
func (s *JobServiceImpl) Fail(ctx context.Context, jobID string, jobErr error) error {
	j, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	class := job.Classify(jobErr)
	attempts := j.Attempts + 1
	msg := jobErr.Error()

	if job.ShouldRetry(class, attempts, j.MaxAttempts) {
		nextRunAt := job.NextAttemptAt(time.Now().UTC(), s.cfg.BackoffBase(), attempts, s.cfg.BackoffMax())
		return s.jobRepo.FailRetry(ctx, jobID, msg, nextRunAt)
	}

	if err := s.jobRepo.FailDead(ctx, jobID, msg); err != nil {
		return err
	}
	if err := s.deadLetterNotice(ctx, j, msg); err != nil {
		return err
	}
	if j.Type == models.JobExecuteDecision {
		return s.pokeRunStep(ctx, j)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *JobServiceImpl) GetJob(ctx context.Context, jobID string) (*models.AsyncJob, error) {
	return s.jobRepo.GetByID(ctx, jobID)
}

// ListJobs lists jobs with optional filters.
func (s *JobServiceImpl) ListJobs(ctx context.Context, filters primary.JobFilters) ([]*models.AsyncJob, error) {
	return s.jobRepo.List(ctx, secondary.JobFilters{
		OrganizationID: filters.OrganizationID,
		Type:           filters.Type,
		Status:         filters.Status,
		CorrelationID:  filters.CorrelationID,
		Limit:          filters.Limit,
	})
}

func (s *JobServiceImpl) deadLetterNotice(ctx context.Context, j *models.AsyncJob, msg string) error {
	entry := &models.OutboxEntry{
		ID:             newID("obx"),
		OrganizationID: j.OrganizationID,
		Topic:          models.TopicJobDeadLetter,
		Payload: map[string]any{
			"job_id":         j.ID,
			"job_type":       j.Type,
			"entity_id":      j.EntityID,
			"correlation_id": j.CorrelationID,
			"attempts":       j.Attempts + 1,
			"last_error":     msg,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.outboxRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue dead letter notice: %w", err)
	}
	return nil
}

// pokeRunStep enqueues an advance for the run step whose decision execution
// just dead-lettered. The step observes the failed execution and routes its
// failure edge or fails the run.
func (s *JobServiceImpl) pokeRunStep(ctx context.Context, j *models.AsyncJob) error {
	dec, err := s.decisionRepo.GetByID(ctx, j.EntityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	runStep, err := s.playbookRepo.GetRunStepByProposal(ctx, dec.ProposalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.Enqueue(ctx, primary.EnqueueRequest{
		OrganizationID: j.OrganizationID,
		Type:           models.JobAdvancePlaybookStep,
		EntityID:       runStep.ID,
		CorrelationID:  runStep.RunID,
	})
	return err
}

// Ensure JobServiceImpl implements the interface
var _ primary.JobService = (*JobServiceImpl)(nil)
