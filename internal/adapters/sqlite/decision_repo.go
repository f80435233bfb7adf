package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// DecisionRepository implements secondary.DecisionRepository with SQLite.
// Decisions are append-only. The partial unique index idx_decisions_active
// enforces at most one non-superseded decision per proposal, so the insert
// itself is the concurrency guard: no read-then-write anywhere.
type DecisionRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewDecisionRepository creates a new SQLite decision repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewDecisionRepository(db *sql.DB, logWriter secondary.LogWriter) *DecisionRepository {
	return &DecisionRepository{db: db, logWriter: logWriter}
}

// CreateIfAbsent atomically inserts a decision unless the proposal already
// has an active one. Concurrent callers race on the unique index; exactly
// one wins, the rest get models.ErrAlreadyDecided.
func (r *DecisionRepository) CreateIfAbsent(ctx context.Context, decision *models.Decision) error {
	return r.insert(ctx, r.db, decision)
}

// Supersede records newDecision as the correction of oldID. The old row's
// superseded_by stamp and the new insert happen in one transaction so no
// reader ever observes zero or two active decisions.
func (r *DecisionRepository) Supersede(ctx context.Context, oldID string, newDecision *models.Decision) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin supersede: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE decisions SET superseded_by = ? WHERE id = ? AND superseded_by IS NULL`,
		newDecision.ID, oldID,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede decision: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("decision %s not found or already superseded", oldID)
	}

	if err := r.insert(ctx, tx, newDecision); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit supersede: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "decision", oldID, "superseded_by", "", newDecision.ID)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *DecisionRepository) insert(ctx context.Context, ex execer, decision *models.Decision) error {
	snapshot, err := marshalJSON(decision.ProposalSnapshot)
	if err != nil {
		return err
	}
	var modified sql.NullString
	if decision.ModifiedPayload != nil {
		encoded, err := marshalJSON(decision.ModifiedPayload)
		if err != nil {
			return err
		}
		modified = sql.NullString{String: encoded, Valid: true}
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO decisions (id, proposal_id, organization_id, decision, decided_by, reason, modified_payload, proposal_snapshot, supersedes_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID,
		decision.ProposalID,
		decision.OrganizationID,
		decision.Decision,
		decision.DecidedBy,
		nullString(decision.Reason),
		modified,
		snapshot,
		nullString(decision.SupersedesID),
		sqlTime(decision.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("proposal %s: %w", decision.ProposalID, models.ErrAlreadyDecided)
	}
	if err != nil {
		return fmt.Errorf("failed to create decision: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "decision", decision.ID)
	}
	return nil
}

// GetByID retrieves a decision by its ID.
func (r *DecisionRepository) GetByID(ctx context.Context, id string) (*models.Decision, error) {
	row := r.db.QueryRowContext(ctx, selectDecision+` WHERE id = ?`, id)
	decision, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return decision, nil
}

// GetActiveByProposal retrieves the non-superseded decision for a proposal.
func (r *DecisionRepository) GetActiveByProposal(ctx context.Context, proposalID string) (*models.Decision, error) {
	row := r.db.QueryRowContext(ctx,
		selectDecision+` WHERE proposal_id = ? AND superseded_by IS NULL`,
		proposalID,
	)
	decision, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active decision for proposal %s: %w", proposalID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active decision: %w", err)
	}
	return decision, nil
}

// List retrieves decisions matching the given filters.
func (r *DecisionRepository) List(ctx context.Context, filters secondary.DecisionFilters) ([]*models.Decision, error) {
	query := selectDecision + ` WHERE 1=1`
	args := []any{}

	if filters.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filters.OrganizationID)
	}
	if filters.ProposalID != "" {
		query += " AND proposal_id = ?"
		args = append(args, filters.ProposalID)
	}
	if filters.DecidedBy != "" {
		query += " AND decided_by = ?"
		args = append(args, filters.DecidedBy)
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

const selectDecision = `SELECT id, proposal_id, organization_id, decision, decided_by, reason, modified_payload, proposal_snapshot, supersedes_id, superseded_by, created_at FROM decisions`

func scanDecision(row rowScanner) (*models.Decision, error) {
	var (
		decision   models.Decision
		reason     sql.NullString
		modified   sql.NullString
		snapshot   string
		supersedes sql.NullString
		superseded sql.NullString
		createdAt  time.Time
	)
	err := row.Scan(
		&decision.ID, &decision.ProposalID, &decision.OrganizationID, &decision.Decision,
		&decision.DecidedBy, &reason, &modified, &snapshot, &supersedes, &superseded, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	decision.Reason = reason.String
	if modified.Valid {
		decision.ModifiedPayload, err = unmarshalJSON(modified.String)
		if err != nil {
			return nil, err
		}
	}
	decision.ProposalSnapshot, err = unmarshalJSON(snapshot)
	if err != nil {
		return nil, err
	}
	decision.SupersedesID = supersedes.String
	decision.SupersededBy = superseded.String
	decision.CreatedAt = createdAt
	return &decision, nil
}

var _ secondary.DecisionRepository = (*DecisionRepository)(nil)
