package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// ProposalRepository implements secondary.ProposalRepository with SQLite.
// Proposals are immutable: this repository exposes no update path at all.
type ProposalRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewProposalRepository creates a new SQLite proposal repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewProposalRepository(db *sql.DB, logWriter secondary.LogWriter) *ProposalRepository {
	return &ProposalRepository{db: db, logWriter: logWriter}
}

// Create persists a new proposal.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	payload, err := marshalJSON(proposal.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO proposals (id, organization_id, action_type, scope, payload, risk_level, correlation_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		proposal.ID,
		proposal.OrganizationID,
		proposal.ActionType,
		proposal.Scope,
		payload,
		proposal.RiskLevel,
		nullString(proposal.CorrelationID),
		sqlTime(proposal.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "proposal", proposal.ID)
	}

	return nil
}

// GetByID retrieves a proposal by its ID.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, action_type, scope, payload, risk_level, correlation_id, created_at FROM proposals WHERE id = ?`,
		id,
	)
	proposal, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

// Exists reports whether a proposal exists.
func (r *ProposalRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proposals WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check proposal existence: %w", err)
	}
	return count > 0, nil
}

// List retrieves proposals matching the given filters.
func (r *ProposalRepository) List(ctx context.Context, filters secondary.ProposalFilters) ([]*models.Proposal, error) {
	query := `SELECT id, organization_id, action_type, scope, payload, risk_level, correlation_id, created_at FROM proposals WHERE 1=1`
	args := []any{}

	if filters.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filters.OrganizationID)
	}
	if filters.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, filters.ActionType)
	}
	if filters.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, filters.CorrelationID)
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var (
		proposal      models.Proposal
		payload       string
		correlationID sql.NullString
		createdAt     time.Time
	)
	err := row.Scan(
		&proposal.ID, &proposal.OrganizationID, &proposal.ActionType, &proposal.Scope,
		&payload, &proposal.RiskLevel, &correlationID, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	proposal.Payload, err = unmarshalJSON(payload)
	if err != nil {
		return nil, err
	}
	proposal.CorrelationID = correlationID.String
	proposal.CreatedAt = createdAt
	return &proposal, nil
}

var _ secondary.ProposalRepository = (*ProposalRepository)(nil)
