package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/warden/internal/adapters/connector"
	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/app"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
)

// deployTemplate creates and publishes a template, failing the test on error.
func deployTemplate(t *testing.T, e *engine, key string, steps []primary.StepDefinition) *models.PlaybookTemplate {
	t.Helper()
	ctx := context.Background()
	template, err := e.playbookSvc.CreateTemplate(ctx, primary.CreateTemplateRequest{
		OrganizationID: "org-001",
		Key:            key,
		Steps:          steps,
	})
	require.NoError(t, err)
	require.NoError(t, e.playbookSvc.PublishTemplate(ctx, template.ID))
	return template
}

// trigger starts a run of the template key with an empty trigger context.
func trigger(t *testing.T, e *engine, key string) *models.PlaybookRun {
	t.Helper()
	run, err := e.playbookSvc.TriggerRun(context.Background(), primary.TriggerRunRequest{
		OrganizationID: "org-001",
		TemplateKey:    key,
		TriggerContext: map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	return run
}

// runStepsByName indexes a run's steps by their template step name.
func runStepsByName(t *testing.T, e *engine, runID string) (map[string]*models.RunStep, *models.PlaybookRun) {
	t.Helper()
	ctx := context.Background()
	run, steps, err := e.playbookSvc.GetRun(ctx, runID)
	require.NoError(t, err)
	byName := make(map[string]*models.RunStep, len(steps))
	for _, rs := range steps {
		ts, err := e.playbookRepo.GetStep(ctx, rs.TemplateStepID)
		require.NoError(t, err)
		byName[ts.Name] = rs
	}
	return byName, run
}

// okConnector registers a connector that always succeeds.
func okConnector(e *engine, actionType string) *int {
	calls := new(int)
	e.registry.Register(connector.NewFunc(actionType, func(ctx context.Context, orgID string, payload map[string]any) (map[string]any, error) {
		*calls++
		return map[string]any{"ok": true}, nil
	}))
	return calls
}

func actionStep(name, actionType, next string) primary.StepDefinition {
	return primary.StepDefinition{
		Name:       name,
		StepType:   models.StepAction,
		ActionType: actionType,
		Params:     map[string]any{"risk_level": models.RiskLow},
		Next:       next,
	}
}

func TestRunLinearSuccess(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	calls := okConnector(e, "send_email")

	deployTemplate(t, e, "notify-ops", []primary.StepDefinition{
		actionStep("notify", "send_email", ""),
	})
	run := trigger(t, e, "notify-ops")
	e.drain(t)

	require.Equal(t, 1, *calls)
	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, models.RunStepDone, byName["notify"].Status)
	require.Equal(t, "SUCCESS", byName["notify"].Outputs[models.OutputStatus])
	require.NotEmpty(t, byName["notify"].ProposalID)

	// The step's proposal went through governance like any other.
	proposal, err := e.proposalRepo.GetByID(context.Background(), byName["notify"].ProposalID)
	require.NoError(t, err)
	require.Equal(t, run.ID, proposal.CorrelationID)
}

func TestRunBranchRouting(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "diagnose_host", models.RiskLow)
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	e.addAutoApproveRule(t, "page_oncall", models.RiskLow)
	okConnector(e, "diagnose_host")
	emails := okConnector(e, "send_email")
	pages := okConnector(e, "page_oncall")

	deployTemplate(t, e, "triage", []primary.StepDefinition{
		actionStep("diagnose", "diagnose_host", "route"),
		{
			Name:     "route",
			StepType: models.StepCheck,
			BranchRules: []primary.BranchRuleDef{
				{When: []models.Condition{{Field: "diagnose.status", Op: models.OpEq, Value: "SUCCESS"}}, Next: "notify"},
			},
			Next: "page",
		},
		actionStep("notify", "send_email", ""),
		actionStep("page", "page_oncall", ""),
	})
	run := trigger(t, e, "triage")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, 1, *emails)
	require.Equal(t, 0, *pages, "default edge must not fire when a rule matches")
	require.NotContains(t, byName, "page")

	route := byName["route"]
	require.Equal(t, models.RunStepDone, route.Status)
	require.NotNil(t, route.EvaluationTrace)
	require.Equal(t, 0, route.EvaluationTrace.MatchedRule)
	require.Equal(t, byName["notify"].TemplateStepID, route.SelectedNextStepID)
}

func TestRunActionFailureRoutesFailureEdge(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "restart_service", models.RiskLow)
	e.addAutoApproveRule(t, "page_oncall", models.RiskLow)
	e.registry.Register(connector.NewFunc("restart_service", func(ctx context.Context, orgID string, payload map[string]any) (map[string]any, error) {
		return nil, models.ErrExecutionFatal
	}))
	pages := okConnector(e, "page_oncall")

	deployTemplate(t, e, "remediate", []primary.StepDefinition{
		{
			Name:       "restart",
			StepType:   models.StepAction,
			ActionType: "restart_service",
			Params:     map[string]any{"risk_level": models.RiskLow},
			Next:       "done",
			BranchRules: []primary.BranchRuleDef{
				{When: []models.Condition{{Field: "restart.status", Op: models.OpEq, Value: "FAILED"}}, Next: "page"},
			},
		},
		{Name: "done", StepType: models.StepCheck},
		actionStep("page", "page_oncall", ""),
	})
	run := trigger(t, e, "remediate")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status, "the failure edge recovered the run")
	require.Equal(t, models.RunStepFailed, byName["restart"].Status)
	require.Equal(t, "FATAL", byName["restart"].Outputs[models.OutputError])
	require.Equal(t, 1, *pages)
	require.NotContains(t, byName, "done", "the success edge must not fire for a failed step")

	// The execute job dead-lettered on the way; that is how the run heard
	// about the failure.
	require.Len(t, e.outboxByTopic(t, models.TopicJobDeadLetter), 1)
}

func TestRunActionFailureDeadEndFailsRun(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "restart_service", models.RiskLow)
	e.registry.Register(connector.NewFunc("restart_service", func(ctx context.Context, orgID string, payload map[string]any) (map[string]any, error) {
		return nil, models.ErrExecutionFatal
	}))

	deployTemplate(t, e, "remediate", []primary.StepDefinition{
		actionStep("restart", "restart_service", ""),
	})
	run := trigger(t, e, "remediate")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunFailed, got.Status)
	require.Equal(t, models.RunStepFailed, byName["restart"].Status)
	require.Len(t, e.outboxByTopic(t, models.TopicRunFailed), 1)
}

func TestRunRejectedProposalFailsStep(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	// No policy rule: the action parks on a human assignment.

	deployTemplate(t, e, "risky", []primary.StepDefinition{
		actionStep("wipe", "wipe_disk", ""),
	})
	run := trigger(t, e, "risky")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunRunning, got.Status, "the run waits on the human")
	require.Equal(t, models.RunStepRunning, byName["wipe"].Status)

	_, err := e.decisionSvc.RecordDecision(ctx, primary.RecordDecisionRequest{
		ProposalID: byName["wipe"].ProposalID,
		Decision:   models.DecisionRejected,
		DecidedBy:  "user:reviewer-1",
		Reason:     "not during business hours",
	})
	require.NoError(t, err)
	e.drain(t)

	byName, got = runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunFailed, got.Status)
	require.Equal(t, models.RunStepFailed, byName["wipe"].Status)
	require.Equal(t, "REJECTED", byName["wipe"].Outputs[models.OutputStatus])
}

func TestRunWaitSignal(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	calls := okConnector(e, "send_email")

	deployTemplate(t, e, "maintenance", []primary.StepDefinition{
		{Name: "window", StepType: models.StepWait, Next: "notify"},
		actionStep("notify", "send_email", ""),
	})
	run := trigger(t, e, "maintenance")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunRunning, got.Status)
	require.Equal(t, models.RunStepPending, byName["window"].Status, "wait steps park without a job")
	require.Equal(t, 0, *calls)

	require.NoError(t, e.playbookSvc.Signal(ctx, run.ID, "window", map[string]any{"opened_by": "user:op-1"}))
	e.drain(t)

	byName, got = runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, models.RunStepDone, byName["window"].Status)
	require.Equal(t, "SIGNALED", byName["window"].Outputs[models.OutputStatus])
	require.Equal(t, 1, *calls)

	// Signalling a step that is not waiting is a not-found, and a finished
	// run refuses signals outright.
	err := e.playbookSvc.Signal(ctx, run.ID, "window", nil)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestRunWaitTimeout(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	okConnector(e, "send_email")

	deployTemplate(t, e, "maintenance", []primary.StepDefinition{
		{Name: "window", StepType: models.StepWait, Next: "notify", TimeoutSeconds: 60},
		actionStep("notify", "send_email", ""),
	})
	run := trigger(t, e, "maintenance")

	// Not due yet.
	resumed, err := e.playbookSvc.SweepWaitTimeouts(ctx)
	require.NoError(t, err)
	require.Zero(t, resumed)

	backdateRunSteps(t, e, run.ID)
	resumed, err = e.playbookSvc.SweepWaitTimeouts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, resumed)
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, "TIMEOUT", byName["window"].Outputs[models.OutputStatus])
}

func TestRunCancel(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	calls := okConnector(e, "send_email")

	deployTemplate(t, e, "notify-ops", []primary.StepDefinition{
		actionStep("notify", "send_email", ""),
	})
	run := trigger(t, e, "notify-ops")

	// Cancel before any worker touches the queued advance job.
	require.NoError(t, e.playbookSvc.CancelRun(ctx, run.ID))
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCancelled, got.Status)
	require.Equal(t, models.RunStepSkipped, byName["notify"].Status)
	require.Equal(t, 0, *calls)

	jobs := e.jobsByType(t, models.JobAdvancePlaybookStep)
	require.Len(t, jobs, 1)
	require.Equal(t, models.JobCancelled, jobs[0].Status)

	err := e.playbookSvc.CancelRun(ctx, run.ID)
	require.ErrorIs(t, err, models.ErrValidation, "cancelling twice is rejected")
}

func TestRunAIRouterRouting(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "page_oncall", models.RiskLow)
	pages := okConnector(e, "page_oncall")

	deployTemplate(t, e, "router", []primary.StepDefinition{
		{
			Name:     "classify",
			StepType: models.StepAIRouter,
			Params:   map[string]any{"verdict": "escalate", "confidence": 0.92},
			BranchRules: []primary.BranchRuleDef{
				{When: []models.Condition{{Field: "classify.verdict", Op: models.OpEq, Value: "escalate"}}, Next: "page"},
			},
			Next: "ignore",
		},
		actionStep("page", "page_oncall", ""),
		{Name: "ignore", StepType: models.StepCheck},
	})
	run := trigger(t, e, "router")
	e.drain(t)

	byName, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, 1, *pages)
	require.Equal(t, "escalate", byName["classify"].Outputs["verdict"])
	require.NotContains(t, byName, "ignore")
}

func TestEagerStepSchedulesWithoutWaiting(t *testing.T) {
	e := newEngine(t)
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	e.addAutoApproveRule(t, "open_ticket", models.RiskLow)
	okConnector(e, "send_email")
	tickets := okConnector(e, "open_ticket")
	eager := false

	deployTemplate(t, e, "parallel", []primary.StepDefinition{
		actionStep("notify", "send_email", "ticket"),
		{
			Name:            "ticket",
			StepType:        models.StepAction,
			ActionType:      "open_ticket",
			Params:          map[string]any{"risk_level": models.RiskLow},
			WaitForPrevious: &eager,
		},
	})
	run := trigger(t, e, "parallel")

	// Both steps exist before any job ran: the eager step was scheduled at
	// trigger time, not on completion of its predecessor.
	_, steps, err := e.playbookSvc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	e.drain(t)
	_, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunCompleted, got.Status)
	require.Equal(t, 1, *tickets)

	// Completing "notify" selects "ticket" again; the dedupe keeps it at
	// one run step per template step.
	_, steps, err = e.playbookSvc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
}

func TestTemplateValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	cases := map[string]primary.CreateTemplateRequest{
		"unknown edge": {
			OrganizationID: "org-001", Key: "bad",
			Steps: []primary.StepDefinition{actionStep("a", "send_email", "nowhere")},
		},
		"duplicate name": {
			OrganizationID: "org-001", Key: "bad",
			Steps: []primary.StepDefinition{
				actionStep("a", "send_email", ""),
				actionStep("a", "send_email", ""),
			},
		},
		"action without action type": {
			OrganizationID: "org-001", Key: "bad",
			Steps: []primary.StepDefinition{{Name: "a", StepType: models.StepAction}},
		},
		"bad step type": {
			OrganizationID: "org-001", Key: "bad",
			Steps: []primary.StepDefinition{{Name: "a", StepType: "SLEEP"}},
		},
		"no steps": {OrganizationID: "org-001", Key: "bad"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.playbookSvc.CreateTemplate(ctx, req)
			require.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestTemplateVersioning(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	v1, err := e.playbookSvc.CreateTemplate(ctx, primary.CreateTemplateRequest{
		OrganizationID: "org-001",
		Key:            "triage",
		Steps:          []primary.StepDefinition{actionStep("notify", "send_email", "")},
	})
	require.NoError(t, err)

	// Draft templates are not triggerable.
	_, err = e.playbookSvc.TriggerRun(ctx, primary.TriggerRunRequest{
		OrganizationID: "org-001", TemplateKey: "triage",
	})
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, e.playbookSvc.PublishTemplate(ctx, v1.ID))

	clone, err := e.playbookSvc.CloneTemplate(ctx, v1.ID)
	require.NoError(t, err)
	require.Equal(t, 2, clone.Version)
	require.Equal(t, v1.ID, clone.ParentTemplateID)
	require.Equal(t, models.TemplateDraft, clone.Status)

	// The clone's steps were remapped, not shared.
	_, cloneSteps, err := e.playbookSvc.GetTemplate(ctx, clone.ID)
	require.NoError(t, err)
	_, srcSteps, err := e.playbookSvc.GetTemplate(ctx, v1.ID)
	require.NoError(t, err)
	require.Len(t, cloneSteps, 1)
	require.NotEqual(t, srcSteps[0].ID, cloneSteps[0].ID)

	// Until the clone is published, the v1 version still serves triggers.
	e.addAutoApproveRule(t, "send_email", models.RiskLow)
	okConnector(e, "send_email")
	run := trigger(t, e, "triage")
	require.Equal(t, v1.ID, run.TemplateID)

	// Once published, the newest version wins.
	require.NoError(t, e.playbookSvc.PublishTemplate(ctx, clone.ID))
	run = trigger(t, e, "triage")
	require.Equal(t, clone.ID, run.TemplateID)
}

func TestSweepStalledRuns(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	deployTemplate(t, e, "maintenance", []primary.StepDefinition{
		{Name: "window", StepType: models.StepWait},
	})
	run := trigger(t, e, "maintenance")

	stalled, err := e.playbookSvc.SweepStalledRuns(ctx)
	require.NoError(t, err)
	require.Zero(t, stalled, "a fresh run is not stalled")

	backdateRunSteps(t, e, run.ID)
	backdateRun(t, e, run.ID)

	stalled, err = e.playbookSvc.SweepStalledRuns(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stalled)
	require.Len(t, e.outboxByTopic(t, models.TopicRunStalled), 1)

	// Notifying is once per stall, not once per sweep.
	stalled, err = e.playbookSvc.SweepStalledRuns(ctx)
	require.NoError(t, err)
	require.Zero(t, stalled)
	require.Len(t, e.outboxByTopic(t, models.TopicRunStalled), 1)
}

// backdateRunSteps pushes a run's step timestamps two hours into the past.
func backdateRunSteps(t *testing.T, e *engine, runID string) {
	t.Helper()
	_, err := e.db.Exec(`UPDATE run_steps SET created_at = datetime('now', '-2 hours') WHERE run_id = ?`, runID)
	require.NoError(t, err)
}

// backdateRun pushes a run's own clock two hours into the past.
func backdateRun(t *testing.T, e *engine, runID string) {
	t.Helper()
	_, err := e.db.Exec(`UPDATE playbook_runs SET created_at = datetime('now', '-2 hours'), started_at = datetime('now', '-2 hours'), updated_at = datetime('now', '-2 hours') WHERE id = ?`, runID)
	require.NoError(t, err)
}

// terminalWriteFailRepo fails terminal run-status writes while delegating
// everything else to the real repository.
type terminalWriteFailRepo struct {
	*sqlite.PlaybookRepository
	err error
}

func (r *terminalWriteFailRepo) SetRunStatus(ctx context.Context, id, status string, at time.Time) error {
	if models.RunTerminal(status) {
		return r.err
	}
	return r.PlaybookRepository.SetRunStatus(ctx, id, status, at)
}

func TestRunTerminalWriteFailurePropagates(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	deployTemplate(t, e, "audit-sweep", []primary.StepDefinition{
		{Name: "verify", StepType: models.StepCheck},
	})
	run := trigger(t, e, "audit-sweep")

	wedged := errors.New("disk I/O error")
	svc := app.NewPlaybookService(
		&terminalWriteFailRepo{PlaybookRepository: e.playbookRepo, err: wedged},
		e.proposalRepo, e.decisionRepo, e.executionRepo, e.jobRepo, e.outboxRepo,
		e.proposalSvc, e.cfg,
	)

	jobs := e.jobsByType(t, models.JobAdvancePlaybookStep)
	require.Len(t, jobs, 1)

	// Completing the last step ends the run; a failed terminal write must
	// surface so the job retries instead of reporting success with the run
	// still open.
	err := svc.AdvanceStep(ctx, jobs[0].EntityID)
	require.ErrorIs(t, err, wedged)

	_, got := runStepsByName(t, e, run.ID)
	require.Equal(t, models.RunRunning, got.Status)
}
