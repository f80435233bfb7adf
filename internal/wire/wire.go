// Package wire provides dependency injection for the warden engine.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/example/warden/internal/adapters/connector"
	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/api"
	"github.com/example/warden/internal/app"
	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/policy"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/ports/primary"
)

var (
	once sync.Once

	cfg      *config.Config
	database *sql.DB

	proposalSvc primary.ProposalService
	decisionSvc primary.DecisionService
	policySvc   primary.PolicyService
	approvalSvc primary.ApprovalService
	jobSvc      primary.JobService
	playbookSvc primary.PlaybookService
	evidenceSvc primary.EvidenceService
	outboxSvc   primary.OutboxService

	executor *app.DecisionExecutor
	workers  *app.WorkerPool
	sweeper  *app.Sweeper
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// DB returns the shared database handle.
func DB() *sql.DB {
	once.Do(initServices)
	return database
}

// ProposalService returns the singleton ProposalService instance.
func ProposalService() primary.ProposalService {
	once.Do(initServices)
	return proposalSvc
}

// DecisionService returns the singleton DecisionService instance.
func DecisionService() primary.DecisionService {
	once.Do(initServices)
	return decisionSvc
}

// PolicyService returns the singleton PolicyService instance.
func PolicyService() primary.PolicyService {
	once.Do(initServices)
	return policySvc
}

// ApprovalService returns the singleton ApprovalService instance.
func ApprovalService() primary.ApprovalService {
	once.Do(initServices)
	return approvalSvc
}

// JobService returns the singleton JobService instance.
func JobService() primary.JobService {
	once.Do(initServices)
	return jobSvc
}

// PlaybookService returns the singleton PlaybookService instance.
func PlaybookService() primary.PlaybookService {
	once.Do(initServices)
	return playbookSvc
}

// EvidenceService returns the singleton EvidenceService instance.
func EvidenceService() primary.EvidenceService {
	once.Do(initServices)
	return evidenceSvc
}

// OutboxService returns the singleton OutboxService instance.
func OutboxService() primary.OutboxService {
	once.Do(initServices)
	return outboxSvc
}

// WorkerPool returns the singleton worker pool.
func WorkerPool() *app.WorkerPool {
	once.Do(initServices)
	return workers
}

// Sweeper returns the singleton SLA / timeout / stall sweeper.
func Sweeper() *app.Sweeper {
	once.Do(initServices)
	return sweeper
}

// APIHandler returns an HTTP handler bound to the singleton services.
func APIHandler() *api.Handler {
	once.Do(initServices)
	return &api.Handler{
		DB:        database,
		Proposals: proposalSvc,
		Decisions: decisionSvc,
		Playbooks: playbookSvc,
		Outbox:    outboxSvc,
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	loaded, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg = loaded

	database, err = db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	audit := sqlite.NewLogWriterAdapter(database)

	proposalRepo := sqlite.NewProposalRepository(database, audit)
	decisionRepo := sqlite.NewDecisionRepository(database, audit)
	ruleRepo := sqlite.NewPolicyRuleRepository(database, audit)
	assignRepo := sqlite.NewAssignmentRepository(database, audit)
	jobRepo := sqlite.NewJobRepository(database, audit)
	executionRepo := sqlite.NewExecutionRepository(database, audit)
	playbookRepo := sqlite.NewPlaybookRepository(database, audit)
	evidenceRepo := sqlite.NewEvidenceRepository(database, audit)
	outboxRepo := sqlite.NewOutboxRepository(database, audit)

	registry := buildRegistry(cfg)

	policyService := app.NewPolicyService(ruleRepo, policy.Config{Enabled: cfg.PolicyEngineEnabled})
	decisionService := app.NewDecisionService(decisionRepo, proposalRepo, assignRepo, jobRepo, playbookRepo, outboxRepo, evidenceRepo, cfg)
	proposalService := app.NewProposalService(proposalRepo, assignRepo, policyService, decisionService, cfg)
	jobService := app.NewJobService(jobRepo, decisionRepo, playbookRepo, outboxRepo, cfg)
	playbookService := app.NewPlaybookService(playbookRepo, proposalRepo, decisionRepo, executionRepo, jobRepo, outboxRepo, proposalService, cfg)

	policySvc = policyService
	decisionSvc = decisionService
	proposalSvc = proposalService
	jobSvc = jobService
	playbookSvc = playbookService
	approvalSvc = app.NewApprovalService(assignRepo, outboxRepo, cfg)
	evidenceSvc = app.NewEvidenceService(evidenceRepo)
	outboxSvc = app.NewOutboxService(outboxRepo)

	executor = app.NewDecisionExecutor(decisionRepo, executionRepo, playbookRepo, jobService, registry, cfg)
	workers = app.NewWorkerPool(jobService, executor, playbookService, cfg)
	sweeper = app.NewSweeper(approvalSvc, playbookService, cfg)
}

// buildRegistry wires one webhook connector per configured action type. An
// action type without a connector fails resolution at execution time and
// dead-letters, which is the safe default for unconfigured side effects.
func buildRegistry(cfg *config.Config) *connector.Registry {
	client := &http.Client{Timeout: 30 * time.Second}
	registry := connector.NewRegistry()
	for actionType, url := range cfg.Webhooks {
		registry.Register(connector.NewWebhookConnector(actionType, url, client))
	}
	// log_message is always available for smoke-testing a fresh install.
	registry.Register(connector.NewLogConnector("log_message"))
	return registry
}
