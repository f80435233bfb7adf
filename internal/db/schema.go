package db

// SchemaSQL is the complete modern schema for fresh warden installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). If repository code references a column
// that doesn't exist here, tests fail immediately with "no such column",
// catching drift at development time instead of production.
//
// The original product schema carried divergent duplicate table definitions
// across files; this file deliberately replaces that with one authoritative
// definition plus the migration history in migrations.go. Keep the two in
// sync when adding columns or tables.
//
// Append-only tables (decisions, executions, evidence_objects,
// explainability_links, reasoning_ledger, outbox) must never receive an
// UPDATE to substantive columns; the only sanctioned updates are
// decisions.superseded_by and the outbox status bookkeeping columns.
const SchemaSQL = `
-- Audit log (every repository mutation)
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id TEXT,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Proposals (immutable governance subjects)
CREATE TABLE IF NOT EXISTS proposals (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	scope TEXT NOT NULL CHECK(scope IN ('USER', 'ORG', 'INITIATIVE')),
	payload TEXT NOT NULL DEFAULT '{}',
	risk_level TEXT NOT NULL CHECK(risk_level IN ('LOW', 'MEDIUM', 'HIGH')),
	correlation_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_proposals_org ON proposals(organization_id, action_type);
CREATE INDEX IF NOT EXISTS idx_proposals_correlation ON proposals(correlation_id);

-- Decisions (append-only; one active decision per proposal)
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	proposal_id TEXT NOT NULL REFERENCES proposals(id),
	organization_id TEXT NOT NULL,
	decision TEXT NOT NULL CHECK(decision IN ('APPROVED', 'REJECTED', 'MODIFIED')),
	decided_by TEXT NOT NULL,
	reason TEXT,
	modified_payload TEXT,
	proposal_snapshot TEXT NOT NULL,
	supersedes_id TEXT REFERENCES decisions(id),
	superseded_by TEXT REFERENCES decisions(id),
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- The idempotency guard: at most one non-superseded decision per proposal.
CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_active
	ON decisions(proposal_id) WHERE superseded_by IS NULL;

-- Policy rules (per-organization auto-decision rules)
CREATE TABLE IF NOT EXISTS policy_rules (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	scope TEXT NOT NULL CHECK(scope IN ('USER', 'ORG', 'INITIATIVE', 'ANY')),
	max_risk_level TEXT NOT NULL CHECK(max_risk_level IN ('LOW', 'MEDIUM', 'HIGH')),
	conditions TEXT NOT NULL DEFAULT '[]',
	auto_decision TEXT NOT NULL CHECK(auto_decision IN ('APPROVED', 'REJECTED')),
	auto_decision_reason TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_policy_rules_eval ON policy_rules(organization_id, action_type);

-- Approval assignments (reviewer + SLA deadline; escalated at most once)
CREATE TABLE IF NOT EXISTS approval_assignments (
	id TEXT PRIMARY KEY,
	proposal_id TEXT NOT NULL REFERENCES proposals(id),
	organization_id TEXT NOT NULL,
	reviewer_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('PENDING', 'ACKED', 'DONE', 'EXPIRED')) DEFAULT 'PENDING',
	sla_due_at DATETIME NOT NULL,
	escalated_to_user_id TEXT,
	escalated_at DATETIME,
	escalation_reason TEXT,
	acked_at DATETIME,
	completed_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assignments_sweep ON approval_assignments(status, sla_due_at);
CREATE INDEX IF NOT EXISTS idx_assignments_proposal ON approval_assignments(proposal_id);

-- Async jobs (durable source of truth for every unit of async work)
CREATE TABLE IF NOT EXISTS async_jobs (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('EXECUTE_DECISION', 'ADVANCE_PLAYBOOK_STEP')),
	entity_id TEXT NOT NULL,
	correlation_id TEXT,
	priority INTEGER NOT NULL DEFAULT 5,
	status TEXT NOT NULL CHECK(status IN ('QUEUED', 'RUNNING', 'SUCCESS', 'FAILED', 'DEAD_LETTER', 'CANCELLED')) DEFAULT 'QUEUED',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 5,
	scheduled_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	claimed_by TEXT,
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_claim ON async_jobs(status, scheduled_at, priority, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_correlation ON async_jobs(correlation_id, status);

-- Executions (append-only; one row per attempt, never overwritten)
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL REFERENCES decisions(id),
	organization_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('SUCCESS', 'FAILED')),
	result TEXT,
	error_code TEXT,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_decision ON executions(decision_id, created_at);

-- Playbook templates (immutable once published; edits clone a new version)
CREATE TABLE IF NOT EXISTS playbook_templates (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	key TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL CHECK(status IN ('DRAFT', 'PUBLISHED', 'ARCHIVED')) DEFAULT 'DRAFT',
	parent_template_id TEXT REFERENCES playbook_templates(id),
	entry_step_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	published_at DATETIME,
	UNIQUE(organization_id, key, version)
);

CREATE TABLE IF NOT EXISTS template_steps (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL REFERENCES playbook_templates(id),
	name TEXT NOT NULL,
	step_type TEXT NOT NULL CHECK(step_type IN ('ACTION', 'CHECK', 'WAIT', 'BRANCH', 'AI_ROUTER')),
	step_order INTEGER NOT NULL,
	action_type TEXT,
	params TEXT NOT NULL DEFAULT '{}',
	next_step_id TEXT,
	branch_rules TEXT NOT NULL DEFAULT '[]',
	wait_for_previous INTEGER NOT NULL DEFAULT 1,
	timeout_seconds INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(template_id, name)
);

CREATE INDEX IF NOT EXISTS idx_template_steps_template ON template_steps(template_id, step_order);

-- Playbook runs and traversed steps
CREATE TABLE IF NOT EXISTS playbook_runs (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	template_id TEXT NOT NULL REFERENCES playbook_templates(id),
	status TEXT NOT NULL CHECK(status IN ('CREATED', 'RUNNING', 'COMPLETED', 'FAILED', 'CANCELLED')) DEFAULT 'CREATED',
	trigger_context TEXT NOT NULL DEFAULT '{}',
	outputs TEXT NOT NULL DEFAULT '{}',
	stalled_notified_at DATETIME,
	started_at DATETIME,
	ended_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS run_steps (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES playbook_runs(id),
	template_step_id TEXT NOT NULL REFERENCES template_steps(id),
	step_order INTEGER NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('PENDING', 'RUNNING', 'DONE', 'SKIPPED', 'FAILED')) DEFAULT 'PENDING',
	outputs TEXT NOT NULL DEFAULT '{}',
	selected_next_step_id TEXT,
	evaluation_trace TEXT,
	proposal_id TEXT REFERENCES proposals(id),
	started_at DATETIME,
	ended_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id, step_order);
CREATE INDEX IF NOT EXISTS idx_run_steps_proposal ON run_steps(proposal_id);

-- Evidence and reasoning ledger (append-only by construction)
CREATE TABLE IF NOT EXISTS evidence_objects (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS explainability_links (
	id TEXT PRIMARY KEY,
	from_type TEXT NOT NULL CHECK(from_type IN ('PROPOSAL', 'DECISION', 'EXECUTION', 'RUN_STEP')),
	from_id TEXT NOT NULL,
	evidence_id TEXT NOT NULL REFERENCES evidence_objects(id),
	weight REAL NOT NULL DEFAULT 1.0,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_from ON explainability_links(from_type, from_id);

CREATE TABLE IF NOT EXISTS reasoning_ledger (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	confidence REAL NOT NULL,
	model TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ledger_entity ON reasoning_ledger(entity_type, entity_id, created_at);

-- Notification outbox (append-only; only status bookkeeping is updated)
CREATE TABLE IF NOT EXISTS outbox (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	topic TEXT NOT NULL CHECK(topic IN ('SLA_ESCALATED', 'ASSIGNMENT_EXPIRED', 'JOB_DEAD_LETTER', 'RUN_FAILED', 'RUN_STALLED', 'DECISION_RECORDED')),
	payload TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL CHECK(status IN ('QUEUED', 'SENT', 'FAILED')) DEFAULT 'QUEUED',
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	sent_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_outbox_queued ON outbox(status, created_at);
`

// GetSchemaSQL returns the authoritative schema. Tests must use this
// instead of hardcoding CREATE TABLE statements.
func GetSchemaSQL() string {
	return SchemaSQL
}

// InitSchema applies the authoritative schema and stamps the migration
// history so a fresh install never replays old migrations. Existing
// databases pick up pending migrations instead.
func InitSchema() error {
	conn, err := GetDB()
	if err != nil {
		return err
	}

	var fresh bool
	err = conn.QueryRow("SELECT COUNT(*) = 0 FROM sqlite_master WHERE type = 'table' AND name = 'proposals'").Scan(&fresh)
	if err != nil {
		return err
	}

	if fresh {
		if _, err := conn.Exec(SchemaSQL); err != nil {
			return err
		}
		return StampAllMigrations(conn)
	}
	return runMigrationsOn(conn)
}
