package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// AssignmentRepository implements secondary.AssignmentRepository with
// SQLite. Escalation and expiry sweeps claim rows with single atomic
// conditional updates, so concurrent sweeps transition each row once.
type AssignmentRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewAssignmentRepository creates a new SQLite assignment repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewAssignmentRepository(db *sql.DB, logWriter secondary.LogWriter) *AssignmentRepository {
	return &AssignmentRepository{db: db, logWriter: logWriter}
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.ApprovalAssignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO approval_assignments (id, proposal_id, organization_id, reviewer_id, status, sla_due_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID,
		assignment.ProposalID,
		assignment.OrganizationID,
		assignment.ReviewerID,
		assignment.Status,
		sqlTime(assignment.SLADueAt),
		sqlTime(assignment.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "approval_assignment", assignment.ID)
	}
	return nil
}

// GetByID retrieves an assignment by its ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.ApprovalAssignment, error) {
	row := r.db.QueryRowContext(ctx, selectAssignment+` WHERE id = ?`, id)
	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

// GetOpenByProposal retrieves the PENDING or ACKED assignment for a proposal.
func (r *AssignmentRepository) GetOpenByProposal(ctx context.Context, proposalID string) (*models.ApprovalAssignment, error) {
	row := r.db.QueryRowContext(ctx,
		selectAssignment+` WHERE proposal_id = ? AND status IN ('PENDING', 'ACKED') ORDER BY created_at DESC LIMIT 1`,
		proposalID,
	)
	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no open assignment for proposal %s: %w", proposalID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open assignment: %w", err)
	}
	return assignment, nil
}

// Ack transitions PENDING -> ACKED. Conditional on the current status.
func (r *AssignmentRepository) Ack(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE approval_assignments SET status = 'ACKED', acked_at = ? WHERE id = ? AND status = 'PENDING'`,
		sqlTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("failed to ack assignment: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("assignment %s is not PENDING", id)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "approval_assignment", id, "status", "PENDING", "ACKED")
	}
	return nil
}

// Complete transitions the open assignment for a proposal to DONE.
// No-op when the proposal has no open assignment.
func (r *AssignmentRepository) Complete(ctx context.Context, proposalID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE approval_assignments SET status = 'DONE', completed_at = ? WHERE proposal_id = ? AND status IN ('PENDING', 'ACKED')`,
		sqlTime(at), proposalID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}
	return nil
}

// SweepEscalations escalates breached, not-yet-escalated assignments.
// Each row is claimed by an atomic conditional update whose WHERE clause
// repeats the guard (status PENDING, escalated_at IS NULL), so a concurrent
// sweep passing the same candidate list escalates nothing twice.
func (r *AssignmentRepository) SweepEscalations(ctx context.Context, cutoff time.Time, escalateTo, reason string) ([]*models.ApprovalAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM approval_assignments WHERE status = 'PENDING' AND escalated_at IS NULL AND sla_due_at < ?`,
		sqlTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find breached assignments: %w", err)
	}
	candidates, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	var escalated []*models.ApprovalAssignment
	for _, id := range candidates {
		result, err := r.db.ExecContext(ctx,
			`UPDATE approval_assignments
			 SET escalated_to_user_id = ?, escalated_at = ?, escalation_reason = ?
			 WHERE id = ? AND status = 'PENDING' AND escalated_at IS NULL`,
			escalateTo, sqlTime(cutoff), reason, id,
		)
		if err != nil {
			return escalated, fmt.Errorf("failed to escalate assignment %s: %w", id, err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			continue // another sweep got there first
		}

		assignment, err := r.GetByID(ctx, id)
		if err != nil {
			return escalated, err
		}
		escalated = append(escalated, assignment)

		if r.logWriter != nil {
			_ = r.logWriter.LogUpdate(ctx, "approval_assignment", id, "escalated_to_user_id", "", escalateTo)
		}
	}
	return escalated, nil
}

// SweepExpirations expires open assignments past the grace period.
func (r *AssignmentRepository) SweepExpirations(ctx context.Context, cutoff time.Time, grace time.Duration) ([]*models.ApprovalAssignment, error) {
	deadline := sqlTime(cutoff.Add(-grace))
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM approval_assignments WHERE status IN ('PENDING', 'ACKED') AND sla_due_at < ?`,
		deadline,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find expirable assignments: %w", err)
	}
	candidates, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	var expired []*models.ApprovalAssignment
	for _, id := range candidates {
		result, err := r.db.ExecContext(ctx,
			`UPDATE approval_assignments SET status = 'EXPIRED' WHERE id = ? AND status IN ('PENDING', 'ACKED')`,
			id,
		)
		if err != nil {
			return expired, fmt.Errorf("failed to expire assignment %s: %w", id, err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			continue
		}

		assignment, err := r.GetByID(ctx, id)
		if err != nil {
			return expired, err
		}
		expired = append(expired, assignment)

		if r.logWriter != nil {
			_ = r.logWriter.LogUpdate(ctx, "approval_assignment", id, "status", "", "EXPIRED")
		}
	}
	return expired, nil
}

// List retrieves assignments matching the given filters.
func (r *AssignmentRepository) List(ctx context.Context, filters secondary.AssignmentFilters) ([]*models.ApprovalAssignment, error) {
	query := selectAssignment + ` WHERE 1=1`
	args := []any{}

	if filters.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filters.OrganizationID)
	}
	if filters.ReviewerID != "" {
		query += " AND reviewer_id = ?"
		args = append(args, filters.ReviewerID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY sla_due_at, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.ApprovalAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

const selectAssignment = `SELECT id, proposal_id, organization_id, reviewer_id, status, sla_due_at, escalated_to_user_id, escalated_at, escalation_reason, acked_at, completed_at, created_at FROM approval_assignments`

func scanAssignment(row rowScanner) (*models.ApprovalAssignment, error) {
	var (
		assignment  models.ApprovalAssignment
		slaDueAt    time.Time
		escalatedTo sql.NullString
		escalatedAt sql.NullTime
		escReason   sql.NullString
		ackedAt     sql.NullTime
		completedAt sql.NullTime
		createdAt   time.Time
	)
	err := row.Scan(
		&assignment.ID, &assignment.ProposalID, &assignment.OrganizationID, &assignment.ReviewerID,
		&assignment.Status, &slaDueAt, &escalatedTo, &escalatedAt, &escReason, &ackedAt, &completedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	assignment.SLADueAt = slaDueAt
	assignment.EscalatedToUser = escalatedTo.String
	assignment.EscalatedAt = timePtr(escalatedAt)
	assignment.EscalationReason = escReason.String
	assignment.AckedAt = timePtr(ackedAt)
	assignment.CompletedAt = timePtr(completedAt)
	assignment.CreatedAt = createdAt
	return &assignment, nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ secondary.AssignmentRepository = (*AssignmentRepository)(nil)
