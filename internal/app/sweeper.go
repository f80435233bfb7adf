package app

import (
	"context"
	"log"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/tracing"
)

// Sweeper runs the fixed-interval maintenance passes: SLA escalation and
// expiry, WAIT step timeouts, and stalled-run detection. Every pass is
// idempotent and claim-based, so running sweepers on several processes at
// once is safe.
type Sweeper struct {
	approvalSvc primary.ApprovalService
	playbookSvc primary.PlaybookService
	cfg         *config.Config
}

// NewSweeper creates a new Sweeper with injected dependencies.
func NewSweeper(approvalSvc primary.ApprovalService, playbookSvc primary.PlaybookService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		approvalSvc: approvalSvc,
		playbookSvc: playbookSvc,
		cfg:         cfg,
	}
}

// Run blocks, sweeping on the configured interval until the context is
// cancelled. The first sweep happens immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx = ctxutil.WithActorID(ctx, "worker:sweeper")
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one maintenance pass. Failures in one sweep never block the
// others; each is logged and the pass moves on.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "sweeper.pass")
	defer span.End(nil)

	result, err := s.approvalSvc.SweepSLA(ctx)
	if err != nil {
		log.Printf("sweeper: SLA sweep failed: %v", err)
	} else if result.Escalated > 0 || result.Expired > 0 {
		log.Printf("sweeper: escalated %d, expired %d assignments", result.Escalated, result.Expired)
	}

	resumed, err := s.playbookSvc.SweepWaitTimeouts(ctx)
	if err != nil {
		log.Printf("sweeper: wait timeout sweep failed: %v", err)
	} else if resumed > 0 {
		log.Printf("sweeper: resumed %d timed out wait steps", resumed)
	}

	stalled, err := s.playbookSvc.SweepStalledRuns(ctx)
	if err != nil {
		log.Printf("sweeper: stalled run sweep failed: %v", err)
	} else if stalled > 0 {
		log.Printf("sweeper: flagged %d stalled runs", stalled)
	}
}
