package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
	"github.com/example/warden/internal/tracing"
)

// Execution error codes recorded on execution rows.
const (
	errCodeNoConnector = "NO_CONNECTOR"
	errCodeTimeout     = "TIMEOUT"
	errCodeFatal       = "FATAL"
	errCodeTransient   = "TRANSIENT"
)

// DecisionExecutor performs the side effect of an approved decision. This is
// the only place connectors are invoked; everything upstream of it is
// bookkeeping. Every attempt writes exactly one append-only execution row,
// success or not.
type DecisionExecutor struct {
	decisionRepo  secondary.DecisionRepository
	executionRepo secondary.ExecutionRepository
	playbookRepo  secondary.PlaybookRepository
	jobSvc        primary.JobService
	registry      secondary.ConnectorRegistry
	cfg           *config.Config
}

// NewDecisionExecutor creates a new DecisionExecutor with injected dependencies.
func NewDecisionExecutor(
	decisionRepo secondary.DecisionRepository,
	executionRepo secondary.ExecutionRepository,
	playbookRepo secondary.PlaybookRepository,
	jobSvc primary.JobService,
	registry secondary.ConnectorRegistry,
	cfg *config.Config,
) *DecisionExecutor {
	return &DecisionExecutor{
		decisionRepo:  decisionRepo,
		executionRepo: executionRepo,
		playbookRepo:  playbookRepo,
		jobSvc:        jobSvc,
		registry:      registry,
		cfg:           cfg,
	}
}

// ExecuteDecision runs the connector for an approved decision. The returned
// error carries the retry classification: the job layer retries transient
// failures and dead-letters fatal ones.
func (e *DecisionExecutor) ExecuteDecision(ctx context.Context, decisionID string) error {
	ctx, span := tracing.StartSpan(ctx, "execution.decision")
	var execErr error
	defer func() { span.End(execErr) }()
	span.WithAttributes(map[string]string{"decision.id": decisionID})

	dec, err := e.decisionRepo.GetByID(ctx, decisionID)
	if err != nil {
		execErr = err
		return execErr
	}
	if !dec.Executable() {
		execErr = fmt.Errorf("decision %s is %s, not executable: %w", dec.ID, dec.Decision, models.ErrValidation)
		return execErr
	}

	actionType, _ := dec.ProposalSnapshot["action_type"].(string)
	connector, ok := e.registry.Resolve(actionType)
	if !ok {
		execErr = fmt.Errorf("no connector for action type %q: %w", actionType, models.ErrExecutionFatal)
		if recErr := e.record(ctx, dec, nil, errCodeNoConnector, 0); recErr != nil {
			return recErr
		}
		return execErr
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecutionTimeout())
	defer cancel()

	start := time.Now()
	result, err := connector.Invoke(callCtx, dec.OrganizationID, dec.EffectivePayload())
	duration := time.Since(start).Milliseconds()

	if err != nil {
		execErr = fmt.Errorf("connector %s: %w", actionType, err)
		if recErr := e.record(ctx, dec, nil, classifyCode(err), duration); recErr != nil {
			return recErr
		}
		return execErr
	}

	if recErr := e.record(ctx, dec, result, "", duration); recErr != nil {
		execErr = recErr
		return execErr
	}
	execErr = e.advanceOwningStep(ctx, dec)
	return execErr
}

// record writes the append-only execution row for one attempt.
func (e *DecisionExecutor) record(ctx context.Context, dec *models.Decision, result map[string]any, errorCode string, durationMs int64) error {
	status := models.ExecutionSuccess
	if errorCode != "" {
		status = models.ExecutionFailed
	}
	execution := &models.Execution{
		ID:             newID("exe"),
		DecisionID:     dec.ID,
		OrganizationID: dec.OrganizationID,
		Status:         status,
		Result:         result,
		ErrorCode:      errorCode,
		DurationMs:     durationMs,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.executionRepo.Create(ctx, execution); err != nil {
		return fmt.Errorf("failed to record execution for %s: %w", dec.ID, err)
	}
	return nil
}

// advanceOwningStep pokes the run engine after a successful execution of a
// run-step decision. Standalone decisions have no owning step.
func (e *DecisionExecutor) advanceOwningStep(ctx context.Context, dec *models.Decision) error {
	runStep, err := e.playbookRepo.GetRunStepByProposal(ctx, dec.ProposalID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = e.jobSvc.Enqueue(ctx, primary.EnqueueRequest{
		OrganizationID: dec.OrganizationID,
		Type:           models.JobAdvancePlaybookStep,
		EntityID:       runStep.ID,
		CorrelationID:  runStep.RunID,
	})
	return err
}

func classifyCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errCodeTimeout
	case errors.Is(err, models.ErrExecutionFatal):
		return errCodeFatal
	default:
		return errCodeTransient
	}
}
