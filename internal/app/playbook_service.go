package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/playbook"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
	"github.com/example/warden/internal/tracing"
)

// PlaybookServiceImpl implements the PlaybookService interface: template
// lifecycle plus the run engine. The engine is event-driven: every state
// change that can unblock a step enqueues an ADVANCE_PLAYBOOK_STEP job, and
// AdvanceStep is idempotent so redundant pokes are harmless.
type PlaybookServiceImpl struct {
	playbookRepo  secondary.PlaybookRepository
	proposalRepo  secondary.ProposalRepository
	decisionRepo  secondary.DecisionRepository
	executionRepo secondary.ExecutionRepository
	jobRepo       secondary.JobRepository
	outboxRepo    secondary.OutboxRepository
	proposalSvc   *ProposalServiceImpl
	cfg           *config.Config
}

// NewPlaybookService creates a new PlaybookService with injected dependencies.
func NewPlaybookService(
	playbookRepo secondary.PlaybookRepository,
	proposalRepo secondary.ProposalRepository,
	decisionRepo secondary.DecisionRepository,
	executionRepo secondary.ExecutionRepository,
	jobRepo secondary.JobRepository,
	outboxRepo secondary.OutboxRepository,
	proposalSvc *ProposalServiceImpl,
	cfg *config.Config,
) *PlaybookServiceImpl {
	return &PlaybookServiceImpl{
		playbookRepo:  playbookRepo,
		proposalRepo:  proposalRepo,
		decisionRepo:  decisionRepo,
		executionRepo: executionRepo,
		jobRepo:       jobRepo,
		outboxRepo:    outboxRepo,
		proposalSvc:   proposalSvc,
		cfg:           cfg,
	}
}

// CreateTemplate stores a new DRAFT template with its steps. Step edges
// reference steps by name and are resolved to IDs here; the first step is
// the entry step.
func (s *PlaybookServiceImpl) CreateTemplate(ctx context.Context, req primary.CreateTemplateRequest) (*models.PlaybookTemplate, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("organization is required: %w", models.ErrValidation)
	}
	if req.Key == "" {
		return nil, fmt.Errorf("template key is required: %w", models.ErrValidation)
	}
	if len(req.Steps) == 0 {
		return nil, fmt.Errorf("template needs at least one step: %w", models.ErrValidation)
	}

	idByName := make(map[string]string, len(req.Steps))
	for _, def := range req.Steps {
		if def.Name == "" {
			return nil, fmt.Errorf("step name is required: %w", models.ErrValidation)
		}
		if _, dup := idByName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate step name %q: %w", def.Name, models.ErrValidation)
		}
		if !models.ValidStepType(def.StepType) {
			return nil, fmt.Errorf("invalid step type %q: %w", def.StepType, models.ErrValidation)
		}
		if def.StepType == models.StepAction && def.ActionType == "" {
			return nil, fmt.Errorf("action step %q needs an action type: %w", def.Name, models.ErrValidation)
		}
		idByName[def.Name] = newID("step")
	}

	resolve := func(name string) (string, error) {
		if name == "" {
			return "", nil
		}
		id, ok := idByName[name]
		if !ok {
			return "", fmt.Errorf("edge references unknown step %q: %w", name, models.ErrValidation)
		}
		return id, nil
	}

	now := time.Now().UTC()
	templateID := newID("tpl")
	steps := make([]*models.TemplateStep, len(req.Steps))
	for i, def := range req.Steps {
		nextID, err := resolve(def.Next)
		if err != nil {
			return nil, err
		}
		var rules []models.BranchRule
		for _, rd := range def.BranchRules {
			targetID, err := resolve(rd.Next)
			if err != nil {
				return nil, err
			}
			if targetID == "" {
				return nil, fmt.Errorf("branch rule on step %q needs a target: %w", def.Name, models.ErrValidation)
			}
			rules = append(rules, models.BranchRule{When: rd.When, NextStepID: targetID})
		}
		waitForPrevious := true
		if def.WaitForPrevious != nil {
			waitForPrevious = *def.WaitForPrevious
		}
		steps[i] = &models.TemplateStep{
			ID:              idByName[def.Name],
			TemplateID:      templateID,
			Name:            def.Name,
			StepType:        def.StepType,
			StepOrder:       i,
			ActionType:      def.ActionType,
			Params:          def.Params,
			NextStepID:      nextID,
			BranchRules:     rules,
			WaitForPrevious: waitForPrevious,
			TimeoutSeconds:  def.TimeoutSeconds,
			CreatedAt:       now,
		}
	}

	template := &models.PlaybookTemplate{
		ID:             templateID,
		OrganizationID: req.OrganizationID,
		Key:            req.Key,
		Version:        1,
		Status:         models.TemplateDraft,
		EntryStepID:    steps[0].ID,
		CreatedAt:      now,
	}
	if err := s.playbookRepo.CreateTemplate(ctx, template, steps); err != nil {
		return nil, err
	}
	return template, nil
}

// PublishTemplate freezes a DRAFT template.
func (s *PlaybookServiceImpl) PublishTemplate(ctx context.Context, templateID string) error {
	return s.playbookRepo.Publish(ctx, templateID, time.Now().UTC())
}

// CloneTemplate creates a new DRAFT version of a template, remapping step
// IDs and every edge. The clone points back at its source.
func (s *PlaybookServiceImpl) CloneTemplate(ctx context.Context, templateID string) (*models.PlaybookTemplate, error) {
	src, err := s.playbookRepo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	srcSteps, err := s.playbookRepo.ListSteps(ctx, templateID)
	if err != nil {
		return nil, err
	}

	remap := make(map[string]string, len(srcSteps))
	for _, st := range srcSteps {
		remap[st.ID] = newID("step")
	}

	now := time.Now().UTC()
	cloneID := newID("tpl")
	steps := make([]*models.TemplateStep, len(srcSteps))
	for i, st := range srcSteps {
		var rules []models.BranchRule
		for _, r := range st.BranchRules {
			rules = append(rules, models.BranchRule{When: r.When, NextStepID: remap[r.NextStepID]})
		}
		steps[i] = &models.TemplateStep{
			ID:              remap[st.ID],
			TemplateID:      cloneID,
			Name:            st.Name,
			StepType:        st.StepType,
			StepOrder:       st.StepOrder,
			ActionType:      st.ActionType,
			Params:          st.Params,
			NextStepID:      remap[st.NextStepID],
			BranchRules:     rules,
			WaitForPrevious: st.WaitForPrevious,
			TimeoutSeconds:  st.TimeoutSeconds,
			CreatedAt:       now,
		}
	}

	clone := &models.PlaybookTemplate{
		ID:               cloneID,
		OrganizationID:   src.OrganizationID,
		Key:              src.Key,
		Version:          src.Version + 1,
		Status:           models.TemplateDraft,
		ParentTemplateID: src.ID,
		EntryStepID:      remap[src.EntryStepID],
		CreatedAt:        now,
	}
	if err := s.playbookRepo.CreateTemplate(ctx, clone, steps); err != nil {
		return nil, err
	}
	return clone, nil
}

// GetTemplate retrieves a template and its steps.
func (s *PlaybookServiceImpl) GetTemplate(ctx context.Context, templateID string) (*models.PlaybookTemplate, []*models.TemplateStep, error) {
	template, err := s.playbookRepo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.playbookRepo.ListSteps(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	return template, steps, nil
}

// TriggerRun instantiates the latest published version of a template key and
// schedules its entry step.
func (s *PlaybookServiceImpl) TriggerRun(ctx context.Context, req primary.TriggerRunRequest) (*models.PlaybookRun, error) {
	template, err := s.playbookRepo.GetPublishedByKey(ctx, req.OrganizationID, req.TemplateKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &models.PlaybookRun{
		ID:             newID("run"),
		OrganizationID: req.OrganizationID,
		TemplateID:     template.ID,
		Status:         models.RunCreated,
		TriggerContext: req.TriggerContext,
		Outputs:        map[string]any{"trigger": req.TriggerContext},
		CreatedAt:      now,
	}
	if err := s.playbookRepo.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if err := s.playbookRepo.SetRunStatus(ctx, run.ID, models.RunRunning, now); err != nil {
		return nil, err
	}
	run.Status = models.RunRunning

	entry, err := s.playbookRepo.GetStep(ctx, template.EntryStepID)
	if err != nil {
		return nil, err
	}
	if err := s.schedule(ctx, run, entry); err != nil {
		return nil, err
	}
	return run, nil
}

// AdvanceStep drives one run step through its state machine. Idempotent:
// a poke for a step with nothing to do returns nil.
func (s *PlaybookServiceImpl) AdvanceStep(ctx context.Context, runStepID string) error {
	ctx, span := tracing.StartSpan(ctx, "playbook.advance")
	var advErr error
	defer func() { span.End(advErr) }()
	span.WithAttributes(map[string]string{"run_step.id": runStepID})

	rs, err := s.playbookRepo.GetRunStep(ctx, runStepID)
	if err != nil {
		advErr = err
		return advErr
	}
	run, err := s.playbookRepo.GetRun(ctx, rs.RunID)
	if err != nil {
		advErr = err
		return advErr
	}

	if models.RunTerminal(run.Status) {
		if rs.Status == models.RunStepPending || rs.Status == models.RunStepRunning {
			_ = s.playbookRepo.FinishRunStep(ctx, rs.ID, models.RunStepSkipped, nil, "", nil, time.Now().UTC())
		}
		return nil
	}

	ts, err := s.playbookRepo.GetStep(ctx, rs.TemplateStepID)
	if err != nil {
		advErr = err
		return advErr
	}

	switch rs.Status {
	case models.RunStepPending:
		advErr = s.beginStep(ctx, run, rs, ts)
	case models.RunStepRunning:
		advErr = s.resumeActionStep(ctx, run, rs, ts)
	default:
		// Finished steps have nothing left to do.
	}
	return advErr
}

// beginStep dispatches a PENDING step by its type.
func (s *PlaybookServiceImpl) beginStep(ctx context.Context, run *models.PlaybookRun, rs *models.RunStep, ts *models.TemplateStep) error {
	switch ts.StepType {
	case models.StepAction:
		return s.startAction(ctx, run, rs, ts)
	case models.StepWait:
		// Parked until Signal or the timeout sweep.
		return nil
	case models.StepCheck, models.StepBranch:
		return s.completeStep(ctx, run, rs, ts, map[string]any{}, true)
	case models.StepAIRouter:
		// Router outputs are pre-computed and carried in the step params.
		return s.completeStep(ctx, run, rs, ts, ts.Params, true)
	default:
		return fmt.Errorf("unknown step type %q: %w", ts.StepType, models.ErrValidation)
	}
}

// startAction raises a proposal for an action step and routes it through
// governance. The run step is linked to the proposal before the policy
// engine can fire, so any decision finds its owning step.
func (s *PlaybookServiceImpl) startAction(ctx context.Context, run *models.PlaybookRun, rs *models.RunStep, ts *models.TemplateStep) error {
	scope := models.ScopeOrg
	riskLevel := models.RiskMedium
	payload := make(map[string]any, len(ts.Params))
	for k, v := range ts.Params {
		switch k {
		case "scope":
			if sv, ok := v.(string); ok {
				scope = sv
				continue
			}
		case "risk_level":
			if rv, ok := v.(string); ok {
				riskLevel = rv
				continue
			}
		}
		payload[k] = v
	}

	proposal := &models.Proposal{
		ID:             newID("prop"),
		OrganizationID: run.OrganizationID,
		ActionType:     ts.ActionType,
		Scope:          scope,
		Payload:        payload,
		RiskLevel:      riskLevel,
		CorrelationID:  run.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.proposalRepo.Create(ctx, proposal); err != nil {
		return fmt.Errorf("failed to create proposal for step %s: %w", ts.Name, err)
	}
	if err := s.playbookRepo.StartRunStep(ctx, rs.ID, proposal.ID, time.Now().UTC()); err != nil {
		return err
	}
	if _, _, err := s.proposalSvc.govern(ctx, proposal, ""); err != nil {
		return err
	}
	return s.scheduleEagerNext(ctx, run, ts)
}

// resumeActionStep re-enters a RUNNING action step after its proposal was
// decided, executed, or dead-lettered. Missing pieces mean the poke was
// early; the next one comes with the event that creates them.
func (s *PlaybookServiceImpl) resumeActionStep(ctx context.Context, run *models.PlaybookRun, rs *models.RunStep, ts *models.TemplateStep) error {
	dec, err := s.decisionRepo.GetActiveByProposal(ctx, rs.ProposalID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !dec.Executable() {
		outputs := map[string]any{models.OutputStatus: "REJECTED"}
		return s.completeStep(ctx, run, rs, ts, outputs, false)
	}

	execution, err := s.executionRepo.LatestByDecision(ctx, dec.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if execution.Status == models.ExecutionSuccess {
		outputs := map[string]any{
			models.OutputStatus: "SUCCESS",
			models.OutputResult: execution.Result,
		}
		return s.completeStep(ctx, run, rs, ts, outputs, true)
	}

	// An advance after a failed execution only happens once the job is
	// dead-lettered, so the failure is final.
	outputs := map[string]any{
		models.OutputStatus: "FAILED",
		models.OutputError:  execution.ErrorCode,
	}
	return s.completeStep(ctx, run, rs, ts, outputs, false)
}

// completeStep folds the step's outputs into the run, selects the next edge,
// and either schedules the next step, completes the run, or fails it.
// Failed steps route only through branch rules; the unconditional next edge
// is a success edge.
func (s *PlaybookServiceImpl) completeStep(ctx context.Context, run *models.PlaybookRun, rs *models.RunStep, ts *models.TemplateStep, stepOutputs map[string]any, succeeded bool) error {
	now := time.Now().UTC()
	merged := playbook.MergeOutputs(run.Outputs, ts.Name, stepOutputs)

	stepStatus := models.RunStepDone
	if !succeeded {
		stepStatus = models.RunStepFailed
	}

	defaultNext := ts.NextStepID
	if !succeeded {
		defaultNext = ""
	}

	if len(ts.BranchRules) == 0 && defaultNext == "" {
		if err := s.playbookRepo.FinishRunStep(ctx, rs.ID, stepStatus, stepOutputs, "", nil, now); err != nil {
			return err
		}
		if err := s.playbookRepo.SetRunOutputs(ctx, run.ID, merged); err != nil {
			return err
		}
		if succeeded {
			return s.endRun(ctx, run, models.RunCompleted, "")
		}
		return s.failRun(ctx, run, fmt.Sprintf("step %s failed with no failure edge", ts.Name))
	}

	sel, err := playbook.EvaluateBranches(ts.BranchRules, defaultNext, merged)
	if err != nil {
		if finishErr := s.playbookRepo.FinishRunStep(ctx, rs.ID, models.RunStepFailed, stepOutputs, "", nil, now); finishErr != nil {
			return finishErr
		}
		if outErr := s.playbookRepo.SetRunOutputs(ctx, run.ID, merged); outErr != nil {
			return outErr
		}
		// A dead end is deterministic; retrying the job cannot help, so the
		// run fails here and the job itself succeeds.
		return s.failRun(ctx, run, fmt.Sprintf("step %s: %v", ts.Name, err))
	}

	if err := s.playbookRepo.FinishRunStep(ctx, rs.ID, stepStatus, stepOutputs, sel.NextStepID, &sel.Trace, now); err != nil {
		return err
	}
	if err := s.playbookRepo.SetRunOutputs(ctx, run.ID, merged); err != nil {
		return err
	}
	run.Outputs = merged

	next, err := s.playbookRepo.GetStep(ctx, sel.NextStepID)
	if err != nil {
		return err
	}
	return s.schedule(ctx, run, next)
}

// schedule materializes a run step for a template step, once per run, and
// enqueues its advance job. WAIT steps park without a job. When the
// unconditional next step opts out of waiting, it is scheduled eagerly.
func (s *PlaybookServiceImpl) schedule(ctx context.Context, run *models.PlaybookRun, ts *models.TemplateStep) error {
	existing, err := s.playbookRepo.ListRunSteps(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, rs := range existing {
		if rs.TemplateStepID == ts.ID {
			return nil
		}
	}

	now := time.Now().UTC()
	rs := &models.RunStep{
		ID:             newID("rstep"),
		RunID:          run.ID,
		TemplateStepID: ts.ID,
		StepOrder:      ts.StepOrder,
		Status:         models.RunStepPending,
		CreatedAt:      now,
	}
	if err := s.playbookRepo.CreateRunStep(ctx, rs); err != nil {
		return err
	}
	if ts.StepType != models.StepWait {
		if err := s.enqueueAdvance(ctx, run, rs.ID); err != nil {
			return err
		}
	}
	return s.scheduleEagerNext(ctx, run, ts)
}

// scheduleEagerNext pre-schedules the unconditional next step when it is
// marked waitForPrevious=false.
func (s *PlaybookServiceImpl) scheduleEagerNext(ctx context.Context, run *models.PlaybookRun, ts *models.TemplateStep) error {
	if ts.NextStepID == "" {
		return nil
	}
	next, err := s.playbookRepo.GetStep(ctx, ts.NextStepID)
	if err != nil {
		return err
	}
	if next.WaitForPrevious {
		return nil
	}
	return s.schedule(ctx, run, next)
}

func (s *PlaybookServiceImpl) enqueueAdvance(ctx context.Context, run *models.PlaybookRun, runStepID string) error {
	now := time.Now().UTC()
	job := &models.AsyncJob{
		ID:             newID("job"),
		OrganizationID: run.OrganizationID,
		Type:           models.JobAdvancePlaybookStep,
		EntityID:       runStepID,
		CorrelationID:  run.ID,
		Priority:       models.DefaultJobPriority,
		MaxAttempts:    s.cfg.MaxAttempts,
		ScheduledAt:    now,
		CreatedAt:      now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue advance for %s: %w", runStepID, err)
	}
	return nil
}

// Signal resumes a parked WAIT step with an external event payload.
func (s *PlaybookServiceImpl) Signal(ctx context.Context, runID, stepName string, payload map[string]any) error {
	run, err := s.playbookRepo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != models.RunRunning {
		return fmt.Errorf("run %s is %s, not signalable: %w", runID, run.Status, models.ErrValidation)
	}

	steps, err := s.playbookRepo.ListRunSteps(ctx, runID)
	if err != nil {
		return err
	}
	for _, rs := range steps {
		if rs.Status != models.RunStepPending {
			continue
		}
		ts, err := s.playbookRepo.GetStep(ctx, rs.TemplateStepID)
		if err != nil {
			return err
		}
		if ts.StepType != models.StepWait || ts.Name != stepName {
			continue
		}
		outputs := map[string]any{
			models.OutputStatus: "SIGNALED",
			models.OutputResult: payload,
		}
		return s.completeStep(ctx, run, rs, ts, outputs, true)
	}
	return fmt.Errorf("run %s has no waiting step %q: %w", runID, stepName, models.ErrNotFound)
}

// CancelRun cancels a run, skips its open steps, and cancels its still
// queued jobs. Running jobs observe the cancellation cooperatively.
func (s *PlaybookServiceImpl) CancelRun(ctx context.Context, runID string) error {
	run, err := s.playbookRepo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if models.RunTerminal(run.Status) {
		return fmt.Errorf("run %s is already %s: %w", runID, run.Status, models.ErrValidation)
	}

	now := time.Now().UTC()
	if err := s.playbookRepo.SetRunStatus(ctx, runID, models.RunCancelled, now); err != nil {
		return err
	}
	if _, err := s.jobRepo.CancelQueuedByCorrelation(ctx, runID); err != nil {
		return err
	}

	steps, err := s.playbookRepo.ListRunSteps(ctx, runID)
	if err != nil {
		return err
	}
	for _, rs := range steps {
		if rs.Status == models.RunStepPending || rs.Status == models.RunStepRunning {
			if err := s.playbookRepo.FinishRunStep(ctx, rs.ID, models.RunStepSkipped, nil, "", nil, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetRun retrieves a run and its traversed steps.
func (s *PlaybookServiceImpl) GetRun(ctx context.Context, runID string) (*models.PlaybookRun, []*models.RunStep, error) {
	run, err := s.playbookRepo.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.playbookRepo.ListRunSteps(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, steps, nil
}

// SweepWaitTimeouts resumes WAIT steps whose timeout elapsed. A timed-out
// wait completes with a TIMEOUT status so branch rules can route on it.
func (s *PlaybookServiceImpl) SweepWaitTimeouts(ctx context.Context) (int, error) {
	steps, err := s.playbookRepo.WaitingSteps(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, rs := range steps {
		run, err := s.playbookRepo.GetRun(ctx, rs.RunID)
		if err != nil {
			return resumed, err
		}
		ts, err := s.playbookRepo.GetStep(ctx, rs.TemplateStepID)
		if err != nil {
			return resumed, err
		}
		outputs := map[string]any{models.OutputStatus: "TIMEOUT"}
		if err := s.completeStep(ctx, run, rs, ts, outputs, true); err != nil {
			// A concurrent sweep or signal already finished this step.
			continue
		}
		resumed++
	}
	return resumed, nil
}

// SweepStalledRuns emits one outbox notice per stalled run. The repository
// claims each run atomically, so concurrent sweeps never notify twice.
func (s *PlaybookServiceImpl) SweepStalledRuns(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	runs, err := s.playbookRepo.StalledRuns(ctx, now.Add(-s.cfg.StalledAfter()), now)
	if err != nil {
		return 0, err
	}

	for _, run := range runs {
		entry := &models.OutboxEntry{
			ID:             newID("obx"),
			OrganizationID: run.OrganizationID,
			Topic:          models.TopicRunStalled,
			Payload: map[string]any{
				"run_id":      run.ID,
				"template_id": run.TemplateID,
			},
			CreatedAt: now,
		}
		if err := s.outboxRepo.Create(ctx, entry); err != nil {
			return 0, fmt.Errorf("failed to queue stalled run notice: %w", err)
		}
	}
	return len(runs), nil
}

// endRun completes a run. A concurrent cancellation wins; completing a
// terminal run is a no-op.
func (s *PlaybookServiceImpl) endRun(ctx context.Context, run *models.PlaybookRun, status, reason string) error {
	if err := s.playbookRepo.SetRunStatus(ctx, run.ID, status, time.Now().UTC()); err != nil {
		// Not-found means the run is already terminal, so the race was
		// lost cleanly. Anything else is a write failure the job must
		// retry rather than lose the terminal status.
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to end run %s: %w", run.ID, err)
	}
	if status == models.RunFailed {
		entry := &models.OutboxEntry{
			ID:             newID("obx"),
			OrganizationID: run.OrganizationID,
			Topic:          models.TopicRunFailed,
			Payload: map[string]any{
				"run_id":      run.ID,
				"template_id": run.TemplateID,
				"reason":      reason,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.outboxRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to queue run failed notice: %w", err)
		}
	}
	return nil
}

func (s *PlaybookServiceImpl) failRun(ctx context.Context, run *models.PlaybookRun, reason string) error {
	return s.endRun(ctx, run, models.RunFailed, reason)
}

// Ensure PlaybookServiceImpl implements the interface
var _ primary.PlaybookService = (*PlaybookServiceImpl)(nil)
