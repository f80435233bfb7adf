package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// PlaybookRepository implements secondary.PlaybookRepository with SQLite.
type PlaybookRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewPlaybookRepository creates a new SQLite playbook repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewPlaybookRepository(db *sql.DB, logWriter secondary.LogWriter) *PlaybookRepository {
	return &PlaybookRepository{db: db, logWriter: logWriter}
}

// CreateTemplate persists a template and its steps in one transaction.
func (r *PlaybookRepository) CreateTemplate(ctx context.Context, template *models.PlaybookTemplate, steps []*models.TemplateStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playbook_templates (id, organization_id, key, version, status, parent_template_id, entry_step_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.OrganizationID,
		template.Key,
		template.Version,
		template.Status,
		nullString(template.ParentTemplateID),
		nullString(template.EntryStepID),
		sqlTime(template.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("template %s v%d already exists: %w", template.Key, template.Version, models.ErrValidation)
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	for _, step := range steps {
		params, err := marshalJSON(step.Params)
		if err != nil {
			return err
		}
		rules, err := marshalBranchRules(step.BranchRules)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO template_steps (id, template_id, name, step_type, step_order, action_type, params, next_step_id, branch_rules, wait_for_previous, timeout_seconds, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			step.ID,
			step.TemplateID,
			step.Name,
			step.StepType,
			step.StepOrder,
			nullString(step.ActionType),
			params,
			nullString(step.NextStepID),
			rules,
			boolToInt(step.WaitForPrevious),
			nullInt(step.TimeoutSeconds),
			sqlTime(step.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create template step %s: %w", step.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "playbook_template", template.ID)
	}
	return nil
}

// GetTemplate retrieves a template by its ID.
func (r *PlaybookRepository) GetTemplate(ctx context.Context, id string) (*models.PlaybookTemplate, error) {
	row := r.db.QueryRowContext(ctx, selectTemplate+` WHERE id = ?`, id)
	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

// GetPublishedByKey retrieves the highest published version of a template key.
func (r *PlaybookRepository) GetPublishedByKey(ctx context.Context, organizationID, key string) (*models.PlaybookTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		selectTemplate+` WHERE organization_id = ? AND key = ? AND status = ? ORDER BY version DESC LIMIT 1`,
		organizationID, key, models.TemplatePublished,
	)
	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no published template %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published template: %w", err)
	}
	return template, nil
}

// Publish transitions a DRAFT template to PUBLISHED.
func (r *PlaybookRepository) Publish(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playbook_templates SET status = ?, published_at = ? WHERE id = ? AND status = ?`,
		models.TemplatePublished, sqlTime(at), id, models.TemplateDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to publish template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check publish result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("template %s is not a draft: %w", id, models.ErrTemplateImmutable)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "playbook_template", id, "status", models.TemplateDraft, models.TemplatePublished)
	}
	return nil
}

// GetStep retrieves a template step by its ID.
func (r *PlaybookRepository) GetStep(ctx context.Context, id string) (*models.TemplateStep, error) {
	row := r.db.QueryRowContext(ctx, selectTemplateStep+` WHERE id = ?`, id)
	step, err := scanTemplateStep(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template step %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template step: %w", err)
	}
	return step, nil
}

// ListSteps retrieves a template's steps ordered by step_order.
func (r *PlaybookRepository) ListSteps(ctx context.Context, templateID string) ([]*models.TemplateStep, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTemplateStep+` WHERE template_id = ? ORDER BY step_order, id`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list template steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.TemplateStep
	for rows.Next() {
		step, err := scanTemplateStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// CreateRun persists a new run.
func (r *PlaybookRepository) CreateRun(ctx context.Context, run *models.PlaybookRun) error {
	triggerContext, err := marshalJSON(run.TriggerContext)
	if err != nil {
		return err
	}
	outputs, err := marshalJSON(run.Outputs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO playbook_runs (id, organization_id, template_id, status, trigger_context, outputs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.OrganizationID,
		run.TemplateID,
		run.Status,
		triggerContext,
		outputs,
		sqlTime(run.CreatedAt),
		sqlTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "playbook_run", run.ID)
	}
	return nil
}

// GetRun retrieves a run by its ID.
func (r *PlaybookRepository) GetRun(ctx context.Context, id string) (*models.PlaybookRun, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// SetRunStatus transitions a run's status. Terminal states are absorbing:
// the conditional update refuses to move a COMPLETED, FAILED, or CANCELLED
// run anywhere else.
func (r *PlaybookRepository) SetRunStatus(ctx context.Context, id, status string, at time.Time) error {
	query := `UPDATE playbook_runs SET status = ?, updated_at = ?`
	args := []any{status, sqlTime(at)}
	if status == models.RunRunning {
		query += `, started_at = COALESCE(started_at, ?)`
		args = append(args, sqlTime(at))
	}
	if models.RunTerminal(status) {
		query += `, ended_at = ?`
		args = append(args, sqlTime(at))
	}
	query += ` WHERE id = ? AND status NOT IN (?, ?, ?)`
	args = append(args, id, models.RunCompleted, models.RunFailed, models.RunCancelled)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run status result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s is terminal or missing: %w", id, models.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "playbook_run", id, "status", "", status)
	}
	return nil
}

// SetRunOutputs replaces the run's accumulated outputs snapshot.
func (r *PlaybookRepository) SetRunOutputs(ctx context.Context, id string, outputs map[string]any) error {
	encoded, err := marshalJSON(outputs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE playbook_runs SET outputs = ?, updated_at = ? WHERE id = ?`,
		encoded, sqlTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set run outputs: %w", err)
	}
	return nil
}

// CreateRunStep persists a new run step.
func (r *PlaybookRepository) CreateRunStep(ctx context.Context, step *models.RunStep) error {
	outputs, err := marshalJSON(step.Outputs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO run_steps (id, run_id, template_step_id, step_order, status, outputs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		step.ID,
		step.RunID,
		step.TemplateStepID,
		step.StepOrder,
		step.Status,
		outputs,
		sqlTime(step.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run step: %w", err)
	}
	return nil
}

// GetRunStep retrieves a run step by its ID.
func (r *PlaybookRepository) GetRunStep(ctx context.Context, id string) (*models.RunStep, error) {
	row := r.db.QueryRowContext(ctx, selectRunStep+` WHERE id = ?`, id)
	step, err := scanRunStep(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run step %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run step: %w", err)
	}
	return step, nil
}

// GetRunStepByProposal retrieves the run step that owns a proposal.
// Standalone proposals have no owning step and return models.ErrNotFound.
func (r *PlaybookRepository) GetRunStepByProposal(ctx context.Context, proposalID string) (*models.RunStep, error) {
	row := r.db.QueryRowContext(ctx, selectRunStep+` WHERE proposal_id = ?`, proposalID)
	step, err := scanRunStep(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no run step for proposal %s: %w", proposalID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run step by proposal: %w", err)
	}
	return step, nil
}

// StartRunStep transitions PENDING -> RUNNING and records the raised proposal.
func (r *PlaybookRepository) StartRunStep(ctx context.Context, id, proposalID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE run_steps SET status = ?, proposal_id = ?, started_at = ? WHERE id = ? AND status = ?`,
		models.RunStepRunning, nullString(proposalID), sqlTime(at), id, models.RunStepPending,
	)
	if err != nil {
		return fmt.Errorf("failed to start run step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run step start result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run step %s is not pending: %w", id, models.ErrNotFound)
	}
	return nil
}

// FinishRunStep records a step's terminal status, outputs, selected edge,
// and evaluation trace.
func (r *PlaybookRepository) FinishRunStep(ctx context.Context, id, status string, outputs map[string]any, selectedNextStepID string, trace *models.EvaluationTrace, at time.Time) error {
	encoded, err := marshalJSON(outputs)
	if err != nil {
		return err
	}
	var traceCol sql.NullString
	if trace != nil {
		data, err := json.Marshal(trace)
		if err != nil {
			return fmt.Errorf("failed to encode evaluation trace: %w", err)
		}
		traceCol = sql.NullString{String: string(data), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE run_steps SET status = ?, outputs = ?, selected_next_step_id = ?, evaluation_trace = ?, ended_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		status, encoded, nullString(selectedNextStepID), traceCol, sqlTime(at),
		id, models.RunStepPending, models.RunStepRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run step finish result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run step %s already finished: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListRunSteps retrieves a run's steps ordered by step_order.
func (r *PlaybookRepository) ListRunSteps(ctx context.Context, runID string) ([]*models.RunStep, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRunStep+` WHERE run_id = ? ORDER BY step_order, created_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.RunStep
	for rows.Next() {
		step, err := scanRunStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// WaitingSteps retrieves PENDING WAIT steps of RUNNING runs whose timeout
// elapsed before cutoff.
func (r *PlaybookRepository) WaitingSteps(ctx context.Context, cutoff time.Time) ([]*models.RunStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rs.id, rs.run_id, rs.template_step_id, rs.step_order, rs.status, rs.outputs,
		        rs.selected_next_step_id, rs.evaluation_trace, rs.proposal_id, rs.started_at, rs.ended_at, rs.created_at
		 FROM run_steps rs
		 JOIN template_steps ts ON ts.id = rs.template_step_id
		 JOIN playbook_runs pr ON pr.id = rs.run_id
		 WHERE rs.status = ? AND ts.step_type = ? AND pr.status = ?
		   AND ts.timeout_seconds IS NOT NULL
		   AND datetime(rs.created_at, '+' || ts.timeout_seconds || ' seconds') <= datetime(?)
		 ORDER BY rs.created_at, rs.id`,
		models.RunStepPending, models.StepWait, models.RunRunning, sqlTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query waiting steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.RunStep
	for rows.Next() {
		step, err := scanRunStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiting step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// StalledRuns retrieves RUNNING runs with no step activity since cutoff that
// have not been notified yet. Each run is claimed by an atomic conditional
// update on stalled_notified_at, so concurrent sweeps report a run once.
func (r *PlaybookRepository) StalledRuns(ctx context.Context, cutoff time.Time, notifiedAt time.Time) ([]*models.PlaybookRun, error) {
	ids, err := r.stalledCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var runs []*models.PlaybookRun
	for _, id := range ids {
		result, err := r.db.ExecContext(ctx,
			`UPDATE playbook_runs SET stalled_notified_at = ?
			 WHERE id = ? AND status = ? AND stalled_notified_at IS NULL`,
			sqlTime(notifiedAt), id, models.RunRunning,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to claim stalled run %s: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check stalled claim: %w", err)
		}
		if affected == 0 {
			continue // another sweep got there first
		}
		run, err := r.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *PlaybookRepository) stalledCandidates(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pr.id FROM playbook_runs pr
		 WHERE pr.status = ? AND pr.stalled_notified_at IS NULL
		   AND pr.updated_at <= ?
		   AND NOT EXISTS (
		       SELECT 1 FROM run_steps rs
		       WHERE rs.run_id = pr.id
		         AND COALESCE(rs.ended_at, rs.started_at, rs.created_at) > ?
		   )
		 ORDER BY pr.updated_at, pr.id`,
		models.RunRunning, sqlTime(cutoff), sqlTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stalled runs: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

const selectTemplate = `SELECT id, organization_id, key, version, status, parent_template_id, entry_step_id, created_at, published_at FROM playbook_templates`

func scanTemplate(row rowScanner) (*models.PlaybookTemplate, error) {
	var (
		template    models.PlaybookTemplate
		parentID    sql.NullString
		entryStepID sql.NullString
		createdAt   time.Time
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&template.ID, &template.OrganizationID, &template.Key, &template.Version, &template.Status,
		&parentID, &entryStepID, &createdAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}
	template.ParentTemplateID = parentID.String
	template.EntryStepID = entryStepID.String
	template.CreatedAt = createdAt
	template.PublishedAt = timePtr(publishedAt)
	return &template, nil
}

const selectTemplateStep = `SELECT id, template_id, name, step_type, step_order, action_type, params, next_step_id, branch_rules, wait_for_previous, timeout_seconds, created_at FROM template_steps`

func scanTemplateStep(row rowScanner) (*models.TemplateStep, error) {
	var (
		step            models.TemplateStep
		actionType      sql.NullString
		params          string
		nextStepID      sql.NullString
		rules           string
		waitForPrevious int
		timeoutSeconds  sql.NullInt64
		createdAt       time.Time
	)
	err := row.Scan(
		&step.ID, &step.TemplateID, &step.Name, &step.StepType, &step.StepOrder,
		&actionType, &params, &nextStepID, &rules, &waitForPrevious, &timeoutSeconds, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	step.ActionType = actionType.String
	step.Params, err = unmarshalJSON(params)
	if err != nil {
		return nil, err
	}
	step.NextStepID = nextStepID.String
	step.BranchRules, err = unmarshalBranchRules(rules)
	if err != nil {
		return nil, err
	}
	step.WaitForPrevious = waitForPrevious != 0
	step.TimeoutSeconds = int(timeoutSeconds.Int64)
	step.CreatedAt = createdAt
	return &step, nil
}

const selectRun = `SELECT id, organization_id, template_id, status, trigger_context, outputs, stalled_notified_at, started_at, ended_at, created_at FROM playbook_runs`

func scanRun(row rowScanner) (*models.PlaybookRun, error) {
	var (
		run               models.PlaybookRun
		triggerContext    string
		outputs           string
		stalledNotifiedAt sql.NullTime
		startedAt         sql.NullTime
		endedAt           sql.NullTime
		createdAt         time.Time
	)
	err := row.Scan(
		&run.ID, &run.OrganizationID, &run.TemplateID, &run.Status,
		&triggerContext, &outputs, &stalledNotifiedAt, &startedAt, &endedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	run.TriggerContext, err = unmarshalJSON(triggerContext)
	if err != nil {
		return nil, err
	}
	run.Outputs, err = unmarshalJSON(outputs)
	if err != nil {
		return nil, err
	}
	run.StalledNotifiedAt = timePtr(stalledNotifiedAt)
	run.StartedAt = timePtr(startedAt)
	run.EndedAt = timePtr(endedAt)
	run.CreatedAt = createdAt
	return &run, nil
}

const selectRunStep = `SELECT id, run_id, template_step_id, step_order, status, outputs, selected_next_step_id, evaluation_trace, proposal_id, started_at, ended_at, created_at FROM run_steps`

func scanRunStep(row rowScanner) (*models.RunStep, error) {
	var (
		step       models.RunStep
		outputs    string
		selected   sql.NullString
		trace      sql.NullString
		proposalID sql.NullString
		startedAt  sql.NullTime
		endedAt    sql.NullTime
		createdAt  time.Time
	)
	err := row.Scan(
		&step.ID, &step.RunID, &step.TemplateStepID, &step.StepOrder, &step.Status,
		&outputs, &selected, &trace, &proposalID, &startedAt, &endedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	step.Outputs, err = unmarshalJSON(outputs)
	if err != nil {
		return nil, err
	}
	step.SelectedNextStepID = selected.String
	if trace.Valid {
		var decoded models.EvaluationTrace
		if err := json.Unmarshal([]byte(trace.String), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode evaluation trace: %w", err)
		}
		step.EvaluationTrace = &decoded
	}
	step.ProposalID = proposalID.String
	step.StartedAt = timePtr(startedAt)
	step.EndedAt = timePtr(endedAt)
	step.CreatedAt = createdAt
	return &step, nil
}

func marshalBranchRules(rules []models.BranchRule) (string, error) {
	if rules == nil {
		return "[]", nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("failed to encode branch rules: %w", err)
	}
	return string(data), nil
}

func unmarshalBranchRules(raw string) ([]models.BranchRule, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var rules []models.BranchRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("failed to decode branch rules: %w", err)
	}
	return rules, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ secondary.PlaybookRepository = (*PlaybookRepository)(nil)
