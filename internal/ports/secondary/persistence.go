// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the application drives
// external systems. Repositories accept and return internal/models types;
// append-only aggregates (decisions, executions, evidence, ledger, outbox)
// deliberately expose no update methods for substantive columns.
package secondary

import (
	"context"
	"time"

	"github.com/example/warden/internal/models"
)

// ProposalRepository defines the secondary port for proposal persistence.
// Proposals are immutable once created.
type ProposalRepository interface {
	// Create persists a new proposal.
	Create(ctx context.Context, proposal *models.Proposal) error

	// GetByID retrieves a proposal by its ID.
	GetByID(ctx context.Context, id string) (*models.Proposal, error)

	// Exists reports whether a proposal exists.
	Exists(ctx context.Context, id string) (bool, error)

	// List retrieves proposals matching the given filters.
	List(ctx context.Context, filters ProposalFilters) ([]*models.Proposal, error)
}

// ProposalFilters contains filter options for querying proposals.
type ProposalFilters struct {
	OrganizationID string
	ActionType     string
	CorrelationID  string
	Limit          int
}

// DecisionRepository defines the secondary port for decision persistence.
// Rows are append-only; the only permitted update is the superseded_by
// bookkeeping column, written through Supersede.
type DecisionRepository interface {
	// CreateIfAbsent atomically inserts a decision unless the proposal
	// already has an active one, in which case it returns
	// models.ErrAlreadyDecided. This is the idempotency guard; it must not
	// be read-then-write.
	CreateIfAbsent(ctx context.Context, decision *models.Decision) error

	// Supersede records newDecision as the correction of oldID within one
	// transaction: the old row gains superseded_by, the new row is
	// inserted as the active decision.
	Supersede(ctx context.Context, oldID string, newDecision *models.Decision) error

	// GetByID retrieves a decision by its ID.
	GetByID(ctx context.Context, id string) (*models.Decision, error)

	// GetActiveByProposal retrieves the non-superseded decision for a
	// proposal, or models.ErrNotFound.
	GetActiveByProposal(ctx context.Context, proposalID string) (*models.Decision, error)

	// List retrieves decisions matching the given filters.
	List(ctx context.Context, filters DecisionFilters) ([]*models.Decision, error)
}

// DecisionFilters contains filter options for querying decisions.
type DecisionFilters struct {
	OrganizationID string
	ProposalID     string
	DecidedBy      string
	Limit          int
}

// PolicyRuleRepository defines the secondary port for policy rules.
type PolicyRuleRepository interface {
	// Create persists a new policy rule.
	Create(ctx context.Context, rule *models.PolicyRule) error

	// GetByID retrieves a rule by its ID.
	GetByID(ctx context.Context, id string) (*models.PolicyRule, error)

	// ListForEvaluation retrieves all rules for (organization, actionType),
	// enabled or not; ordering is applied by the pure engine.
	ListForEvaluation(ctx context.Context, organizationID, actionType string) ([]models.PolicyRule, error)

	// List retrieves rules matching the given filters.
	List(ctx context.Context, filters PolicyRuleFilters) ([]*models.PolicyRule, error)

	// SetEnabled flips a rule's kill switch.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// PolicyRuleFilters contains filter options for querying policy rules.
type PolicyRuleFilters struct {
	OrganizationID string
	ActionType     string
	EnabledOnly    bool
}

// AssignmentRepository defines the secondary port for approval assignments.
type AssignmentRepository interface {
	// Create persists a new assignment.
	Create(ctx context.Context, assignment *models.ApprovalAssignment) error

	// GetByID retrieves an assignment by its ID.
	GetByID(ctx context.Context, id string) (*models.ApprovalAssignment, error)

	// GetOpenByProposal retrieves the PENDING or ACKED assignment for a
	// proposal, or models.ErrNotFound.
	GetOpenByProposal(ctx context.Context, proposalID string) (*models.ApprovalAssignment, error)

	// Ack transitions PENDING -> ACKED. The update is conditional on the
	// current status; zero rows affected surfaces as an error.
	Ack(ctx context.Context, id string, at time.Time) error

	// Complete transitions the open assignment for a proposal to DONE.
	// No-op when the proposal has no open assignment.
	Complete(ctx context.Context, proposalID string, at time.Time) error

	// SweepEscalations escalates every PENDING, not-yet-escalated
	// assignment whose SLA deadline passed before cutoff, routing it to
	// escalateTo. Each row is claimed by a single atomic conditional
	// update, so concurrent sweeps escalate each assignment exactly once.
	// Returns the assignments this call actually escalated.
	SweepEscalations(ctx context.Context, cutoff time.Time, escalateTo, reason string) ([]*models.ApprovalAssignment, error)

	// SweepExpirations expires every open assignment whose SLA deadline
	// plus grace period passed before cutoff. Idempotent under concurrent
	// sweeps; returns the assignments this call actually expired.
	SweepExpirations(ctx context.Context, cutoff time.Time, grace time.Duration) ([]*models.ApprovalAssignment, error)

	// List retrieves assignments matching the given filters.
	List(ctx context.Context, filters AssignmentFilters) ([]*models.ApprovalAssignment, error)
}

// AssignmentFilters contains filter options for querying assignments.
type AssignmentFilters struct {
	OrganizationID string
	ReviewerID     string
	Status         string
	Limit          int
}

// JobRepository defines the secondary port for the durable job registry.
type JobRepository interface {
	// Create persists a new job in QUEUED state.
	Create(ctx context.Context, job *models.AsyncJob) error

	// GetByID retrieves a job by its ID.
	GetByID(ctx context.Context, id string) (*models.AsyncJob, error)

	// Claim atomically claims the oldest due QUEUED job (priority, then
	// creation order) for workerID, moving it to RUNNING. Returns nil when
	// no job is due. Two concurrent claims can never return the same job.
	Claim(ctx context.Context, workerID string) (*models.AsyncJob, error)

	// Complete transitions a RUNNING job to SUCCESS.
	Complete(ctx context.Context, id string) error

	// FailRetry records a failed attempt and requeues the job for nextRunAt.
	FailRetry(ctx context.Context, id, errMsg string, nextRunAt time.Time) error

	// FailDead records a failed attempt and dead-letters the job.
	FailDead(ctx context.Context, id, errMsg string) error

	// CancelQueuedByCorrelation cancels all still-QUEUED jobs with the
	// given correlation ID. RUNNING jobs are untouched; cancellation is
	// cooperative. Returns the number of jobs cancelled.
	CancelQueuedByCorrelation(ctx context.Context, correlationID string) (int, error)

	// List retrieves jobs matching the given filters.
	List(ctx context.Context, filters JobFilters) ([]*models.AsyncJob, error)

	// CountByStatus returns job counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// JobFilters contains filter options for querying jobs.
type JobFilters struct {
	OrganizationID string
	Type           string
	Status         string
	CorrelationID  string
	Limit          int
}

// ExecutionRepository defines the secondary port for execution results.
// Append-only: one row per attempt, retries never overwrite.
type ExecutionRepository interface {
	// Create persists a new execution row.
	Create(ctx context.Context, execution *models.Execution) error

	// GetByID retrieves an execution by its ID.
	GetByID(ctx context.Context, id string) (*models.Execution, error)

	// ListByDecision retrieves all executions for a decision, oldest first.
	ListByDecision(ctx context.Context, decisionID string) ([]*models.Execution, error)

	// LatestByDecision retrieves the newest execution for a decision, or
	// models.ErrNotFound.
	LatestByDecision(ctx context.Context, decisionID string) (*models.Execution, error)
}

// PlaybookRepository defines the secondary port for playbook templates,
// runs, and run steps.
type PlaybookRepository interface {
	// CreateTemplate persists a template and its steps in one transaction.
	CreateTemplate(ctx context.Context, template *models.PlaybookTemplate, steps []*models.TemplateStep) error

	// GetTemplate retrieves a template by its ID.
	GetTemplate(ctx context.Context, id string) (*models.PlaybookTemplate, error)

	// GetPublishedByKey retrieves the highest published version of a
	// template key within an organization.
	GetPublishedByKey(ctx context.Context, organizationID, key string) (*models.PlaybookTemplate, error)

	// Publish transitions a DRAFT template to PUBLISHED. Conditional on
	// current status; publishing a published template is an error.
	Publish(ctx context.Context, id string, at time.Time) error

	// GetStep retrieves a template step by its ID.
	GetStep(ctx context.Context, id string) (*models.TemplateStep, error)

	// ListSteps retrieves a template's steps ordered by step_order.
	ListSteps(ctx context.Context, templateID string) ([]*models.TemplateStep, error)

	// CreateRun persists a new run.
	CreateRun(ctx context.Context, run *models.PlaybookRun) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*models.PlaybookRun, error)

	// SetRunStatus transitions a run's status with optional started/ended
	// stamps. Transitions out of terminal states are rejected in SQL.
	SetRunStatus(ctx context.Context, id, status string, at time.Time) error

	// SetRunOutputs replaces the run's accumulated outputs snapshot.
	SetRunOutputs(ctx context.Context, id string, outputs map[string]any) error

	// CreateRunStep persists a new run step.
	CreateRunStep(ctx context.Context, step *models.RunStep) error

	// GetRunStep retrieves a run step by its ID.
	GetRunStep(ctx context.Context, id string) (*models.RunStep, error)

	// GetRunStepByProposal retrieves the run step that owns a proposal, or
	// models.ErrNotFound for standalone proposals.
	GetRunStepByProposal(ctx context.Context, proposalID string) (*models.RunStep, error)

	// StartRunStep transitions PENDING -> RUNNING and records the proposal
	// the step raised, if any.
	StartRunStep(ctx context.Context, id, proposalID string, at time.Time) error

	// FinishRunStep records a step's terminal status, outputs, selected
	// edge, and evaluation trace.
	FinishRunStep(ctx context.Context, id, status string, outputs map[string]any, selectedNextStepID string, trace *models.EvaluationTrace, at time.Time) error

	// ListRunSteps retrieves a run's steps ordered by step_order.
	ListRunSteps(ctx context.Context, runID string) ([]*models.RunStep, error)

	// WaitingSteps retrieves PENDING WAIT steps of RUNNING runs whose
	// timeout elapsed before cutoff.
	WaitingSteps(ctx context.Context, cutoff time.Time) ([]*models.RunStep, error)

	// StalledRuns retrieves RUNNING runs with no step activity since
	// cutoff that have not been notified yet, marking each notified with
	// an atomic conditional update so concurrent sweeps report a run once.
	StalledRuns(ctx context.Context, cutoff time.Time, notifiedAt time.Time) ([]*models.PlaybookRun, error)
}

// EvidenceRepository defines the secondary port for the evidence and
// reasoning ledger. Append-only by construction: no update or delete
// methods exist on this interface.
type EvidenceRepository interface {
	// CreateEvidence persists a new evidence object.
	CreateEvidence(ctx context.Context, evidence *models.EvidenceObject) error

	// GetEvidence retrieves an evidence object by its ID.
	GetEvidence(ctx context.Context, id string) (*models.EvidenceObject, error)

	// CreateLink persists a new explainability link.
	CreateLink(ctx context.Context, link *models.ExplainabilityLink) error

	// ListLinks retrieves links from a governance record, oldest first.
	ListLinks(ctx context.Context, fromType, fromID string) ([]*models.ExplainabilityLink, error)

	// CreateLedgerEntry persists a new reasoning ledger entry.
	CreateLedgerEntry(ctx context.Context, entry *models.ReasoningLedgerEntry) error

	// LatestLedgerEntry retrieves the newest entry for an entity, or
	// models.ErrNotFound.
	LatestLedgerEntry(ctx context.Context, entityType, entityID string) (*models.ReasoningLedgerEntry, error)

	// ListLedgerEntries retrieves all entries for an entity, oldest first.
	ListLedgerEntries(ctx context.Context, entityType, entityID string) ([]*models.ReasoningLedgerEntry, error)
}

// OutboxRepository defines the secondary port for the notification outbox.
// Entries are append-only; only status bookkeeping may change.
type OutboxRepository interface {
	// Create persists a new QUEUED entry.
	Create(ctx context.Context, entry *models.OutboxEntry) error

	// GetByID retrieves an entry by its ID.
	GetByID(ctx context.Context, id string) (*models.OutboxEntry, error)

	// ListQueued retrieves up to limit QUEUED entries, oldest first.
	ListQueued(ctx context.Context, limit int) ([]*models.OutboxEntry, error)

	// MarkSent transitions an entry to SENT.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkFailed transitions an entry to FAILED with a delivery error.
	MarkFailed(ctx context.Context, id, deliveryError string) error

	// List retrieves entries matching the given filters.
	List(ctx context.Context, filters OutboxFilters) ([]*models.OutboxEntry, error)
}

// OutboxFilters contains filter options for querying outbox entries.
type OutboxFilters struct {
	OrganizationID string
	Topic          string
	Status         string
	Limit          int
}
