package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/tracing"
)

// WorkerPool polls the durable job registry and dispatches claimed jobs by
// type. The sqlite store is the only coordination point between workers:
// claims are atomic conditional updates, so pools on separate processes are
// safe against each other.
type WorkerPool struct {
	jobSvc      primary.JobService
	executor    *DecisionExecutor
	playbookSvc primary.PlaybookService
	cfg         *config.Config
}

// NewWorkerPool creates a new WorkerPool with injected dependencies.
func NewWorkerPool(jobSvc primary.JobService, executor *DecisionExecutor, playbookSvc primary.PlaybookService, cfg *config.Config) *WorkerPool {
	return &WorkerPool{
		jobSvc:      jobSvc,
		executor:    executor,
		playbookSvc: playbookSvc,
		cfg:         cfg,
	}
}

// Run starts the configured number of workers and blocks until the context
// is cancelled. Cancellation is cooperative: a claimed job finishes its
// current handler before the worker exits.
func (p *WorkerPool) Run(ctx context.Context) error {
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.loop(ctx, workerID)
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (p *WorkerPool) loop(ctx context.Context, workerID string) error {
	ctx = ctxutil.WithActorID(ctx, "worker:"+workerID)
	ticker := time.NewTicker(p.cfg.PollInterval())
	defer ticker.Stop()

	for {
		// Drain the queue before sleeping.
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			job, err := p.jobSvc.Claim(ctx, workerID)
			if err != nil {
				log.Printf("%s: claim failed: %v", workerID, err)
				break
			}
			if job == nil {
				break
			}
			p.handle(ctx, workerID, job)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// handle runs one claimed job and settles it. Handler errors go through the
// retry policy; settlement errors are logged, leaving the job RUNNING for
// manual inspection rather than corrupting its state.
func (p *WorkerPool) handle(ctx context.Context, workerID string, job *models.AsyncJob) {
	ctx, span := tracing.StartSpan(ctx, "worker.job")
	span.WithAttributes(map[string]string{
		"job.id":   job.ID,
		"job.type": job.Type,
		"worker":   workerID,
	})

	var err error
	switch job.Type {
	case models.JobExecuteDecision:
		err = p.executor.ExecuteDecision(ctx, job.EntityID)
	case models.JobAdvancePlaybookStep:
		err = p.playbookSvc.AdvanceStep(ctx, job.EntityID)
	default:
		err = fmt.Errorf("unknown job type %q: %w", job.Type, models.ErrValidation)
	}
	span.End(err)

	if err == nil {
		if completeErr := p.jobSvc.Complete(ctx, job.ID); completeErr != nil {
			log.Printf("%s: failed to complete job %s: %v", workerID, job.ID, completeErr)
		}
		return
	}

	log.Printf("%s: job %s (%s) failed: %v", workerID, job.ID, job.Type, err)
	if failErr := p.jobSvc.Fail(ctx, job.ID, err); failErr != nil {
		log.Printf("%s: failed to settle job %s: %v", workerID, job.ID, failErr)
	}
}
