// Package app_test exercises the services end to end against real in-memory
// sqlite repositories. Hand-mocking nine repositories would test the mocks;
// the repositories carry the concurrency guarantees, so the tests run on them.
package app_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/example/warden/internal/adapters/connector"
	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/app"
	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/policy"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// engine bundles the full service graph over one test database.
type engine struct {
	db  *sql.DB
	cfg *config.Config

	proposalRepo  *sqlite.ProposalRepository
	decisionRepo  *sqlite.DecisionRepository
	ruleRepo      *sqlite.PolicyRuleRepository
	assignRepo    *sqlite.AssignmentRepository
	jobRepo       *sqlite.JobRepository
	executionRepo *sqlite.ExecutionRepository
	playbookRepo  *sqlite.PlaybookRepository
	evidenceRepo  *sqlite.EvidenceRepository
	outboxRepo    *sqlite.OutboxRepository

	registry *connector.Registry

	proposalSvc *app.ProposalServiceImpl
	decisionSvc *app.DecisionServiceImpl
	policySvc   *app.PolicyServiceImpl
	approvalSvc *app.ApprovalServiceImpl
	jobSvc      *app.JobServiceImpl
	playbookSvc *app.PlaybookServiceImpl
	evidenceSvc *app.EvidenceServiceImpl
	outboxSvc   *app.OutboxServiceImpl
	executor    *app.DecisionExecutor
}

// newEngine wires the services the way internal/wire does, over an
// in-memory database pinned to one connection (each sqlite ":memory:"
// connection is its own empty database).
func newEngine(t *testing.T) *engine {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	testDB.SetMaxOpenConns(1)
	_, err = testDB.Exec(db.GetSchemaSQL())
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	cfg := config.Default()
	cfg.MaxAttempts = 3

	e := &engine{
		db:            testDB,
		cfg:           cfg,
		proposalRepo:  sqlite.NewProposalRepository(testDB, nil),
		decisionRepo:  sqlite.NewDecisionRepository(testDB, nil),
		ruleRepo:      sqlite.NewPolicyRuleRepository(testDB, nil),
		assignRepo:    sqlite.NewAssignmentRepository(testDB, nil),
		jobRepo:       sqlite.NewJobRepository(testDB, nil),
		executionRepo: sqlite.NewExecutionRepository(testDB, nil),
		playbookRepo:  sqlite.NewPlaybookRepository(testDB, nil),
		evidenceRepo:  sqlite.NewEvidenceRepository(testDB, nil),
		outboxRepo:    sqlite.NewOutboxRepository(testDB, nil),
		registry:      connector.NewRegistry(),
	}

	e.policySvc = app.NewPolicyService(e.ruleRepo, policy.Config{Enabled: cfg.PolicyEngineEnabled})
	e.decisionSvc = app.NewDecisionService(e.decisionRepo, e.proposalRepo, e.assignRepo, e.jobRepo, e.playbookRepo, e.outboxRepo, e.evidenceRepo, cfg)
	e.proposalSvc = app.NewProposalService(e.proposalRepo, e.assignRepo, e.policySvc, e.decisionSvc, cfg)
	e.approvalSvc = app.NewApprovalService(e.assignRepo, e.outboxRepo, cfg)
	e.jobSvc = app.NewJobService(e.jobRepo, e.decisionRepo, e.playbookRepo, e.outboxRepo, cfg)
	e.evidenceSvc = app.NewEvidenceService(e.evidenceRepo)
	e.outboxSvc = app.NewOutboxService(e.outboxRepo)
	e.executor = app.NewDecisionExecutor(e.decisionRepo, e.executionRepo, e.playbookRepo, e.jobSvc, e.registry, cfg)
	e.playbookSvc = app.NewPlaybookService(e.playbookRepo, e.proposalRepo, e.decisionRepo, e.executionRepo, e.jobRepo, e.outboxRepo, e.proposalSvc, cfg)

	return e
}

// drain claims and dispatches jobs the way the worker pool does, until no
// job is due. Retry-scheduled jobs sit in the future and stay queued.
func (e *engine) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		job, err := e.jobSvc.Claim(ctx, "worker-test")
		require.NoError(t, err)
		if job == nil {
			return
		}

		var handlerErr error
		switch job.Type {
		case models.JobExecuteDecision:
			handlerErr = e.executor.ExecuteDecision(ctx, job.EntityID)
		case models.JobAdvancePlaybookStep:
			handlerErr = e.playbookSvc.AdvanceStep(ctx, job.EntityID)
		default:
			t.Fatalf("unexpected job type %s", job.Type)
		}

		if handlerErr == nil {
			require.NoError(t, e.jobSvc.Complete(ctx, job.ID))
		} else {
			require.NoError(t, e.jobSvc.Fail(ctx, job.ID, handlerErr))
		}
	}
	t.Fatal("job queue did not drain")
}

// rearmQueuedJobs pulls retry-scheduled jobs back to the present so the
// next drain pass runs them without waiting out the backoff.
func (e *engine) rearmQueuedJobs(t *testing.T) {
	t.Helper()
	_, err := e.db.Exec(`UPDATE async_jobs SET scheduled_at = datetime('now', '-1 second') WHERE status = 'QUEUED'`)
	require.NoError(t, err)
}

// addAutoApproveRule installs a wildcard auto-approval rule and returns its ID.
func (e *engine) addAutoApproveRule(t *testing.T, actionType, maxRisk string) string {
	t.Helper()
	rule, err := e.policySvc.AddRule(context.Background(), primary.AddRuleRequest{
		OrganizationID:     "org-001",
		ActionType:         actionType,
		Scope:              models.ScopeAny,
		MaxRiskLevel:       maxRisk,
		AutoDecision:       models.DecisionApproved,
		AutoDecisionReason: "routine action",
	})
	require.NoError(t, err)
	return rule.ID
}

// outboxByTopic returns all entries recorded for a topic.
func (e *engine) outboxByTopic(t *testing.T, topic string) []*models.OutboxEntry {
	t.Helper()
	entries, err := e.outboxRepo.List(context.Background(), secondary.OutboxFilters{Topic: topic})
	require.NoError(t, err)
	return entries
}

// jobsByType returns all jobs of one type, any status.
func (e *engine) jobsByType(t *testing.T, jobType string) []*models.AsyncJob {
	t.Helper()
	jobs, err := e.jobRepo.List(context.Background(), secondary.JobFilters{Type: jobType})
	require.NoError(t, err)
	return jobs
}

// createProposal ingests a proposal with sensible defaults.
func (e *engine) createProposal(t *testing.T, actionType, riskLevel string) *primary.CreateProposalResponse {
	t.Helper()
	resp, err := e.proposalSvc.CreateProposal(context.Background(), primary.CreateProposalRequest{
		OrganizationID: "org-001",
		ActionType:     actionType,
		Scope:          models.ScopeUser,
		Payload:        map[string]any{"to": "ops@example.com"},
		RiskLevel:      riskLevel,
	})
	require.NoError(t, err)
	return resp
}
