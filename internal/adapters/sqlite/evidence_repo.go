package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// EvidenceRepository implements secondary.EvidenceRepository with SQLite.
// Append-only by construction: no update or delete statements exist here.
type EvidenceRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewEvidenceRepository creates a new SQLite evidence repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewEvidenceRepository(db *sql.DB, logWriter secondary.LogWriter) *EvidenceRepository {
	return &EvidenceRepository{db: db, logWriter: logWriter}
}

// CreateEvidence persists a new evidence object.
func (r *EvidenceRepository) CreateEvidence(ctx context.Context, evidence *models.EvidenceObject) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO evidence_objects (id, organization_id, kind, content, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		evidence.ID,
		evidence.OrganizationID,
		evidence.Kind,
		evidence.Content,
		evidence.SHA256,
		sqlTime(evidence.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create evidence: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "evidence", evidence.ID)
	}
	return nil
}

// GetEvidence retrieves an evidence object by its ID.
func (r *EvidenceRepository) GetEvidence(ctx context.Context, id string) (*models.EvidenceObject, error) {
	var (
		evidence  models.EvidenceObject
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, kind, content, sha256, created_at FROM evidence_objects WHERE id = ?`,
		id,
	).Scan(&evidence.ID, &evidence.OrganizationID, &evidence.Kind, &evidence.Content, &evidence.SHA256, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evidence %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	evidence.CreatedAt = createdAt
	return &evidence, nil
}

// CreateLink persists a new explainability link.
func (r *EvidenceRepository) CreateLink(ctx context.Context, link *models.ExplainabilityLink) error {
	if !models.ValidLinkFromType(link.FromType) {
		return fmt.Errorf("unknown link source type %q: %w", link.FromType, models.ErrValidation)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO explainability_links (id, from_type, from_id, evidence_id, weight, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.FromType,
		link.FromID,
		link.EvidenceID,
		link.Weight,
		nullString(link.Note),
		sqlTime(link.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create explainability link: %w", err)
	}
	return nil
}

// ListLinks retrieves links from a governance record, oldest first.
func (r *EvidenceRepository) ListLinks(ctx context.Context, fromType, fromID string) ([]*models.ExplainabilityLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_type, from_id, evidence_id, weight, note, created_at
		 FROM explainability_links WHERE from_type = ? AND from_id = ? ORDER BY created_at, id`,
		fromType, fromID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list explainability links: %w", err)
	}
	defer rows.Close()

	var links []*models.ExplainabilityLink
	for rows.Next() {
		var (
			link      models.ExplainabilityLink
			note      sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&link.ID, &link.FromType, &link.FromID, &link.EvidenceID, &link.Weight, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan explainability link: %w", err)
		}
		link.Note = note.String
		link.CreatedAt = createdAt
		links = append(links, &link)
	}
	return links, rows.Err()
}

// CreateLedgerEntry persists a new reasoning ledger entry.
func (r *EvidenceRepository) CreateLedgerEntry(ctx context.Context, entry *models.ReasoningLedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reasoning_ledger (id, entity_type, entity_id, summary, confidence, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Summary,
		entry.Confidence,
		nullString(entry.Model),
		sqlTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// LatestLedgerEntry retrieves the newest entry for an entity. Corrections
// append rather than update, so the latest row wins.
func (r *EvidenceRepository) LatestLedgerEntry(ctx context.Context, entityType, entityID string) (*models.ReasoningLedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		selectLedgerEntry+` WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		entityType, entityID,
	)
	entry, err := scanLedgerEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no ledger entries for %s %s: %w", entityType, entityID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ledger entry: %w", err)
	}
	return entry, nil
}

// ListLedgerEntries retrieves all entries for an entity, oldest first.
func (r *EvidenceRepository) ListLedgerEntries(ctx context.Context, entityType, entityID string) ([]*models.ReasoningLedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		selectLedgerEntry+` WHERE entity_type = ? AND entity_id = ? ORDER BY created_at, id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ReasoningLedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const selectLedgerEntry = `SELECT id, entity_type, entity_id, summary, confidence, model, created_at FROM reasoning_ledger`

func scanLedgerEntry(row rowScanner) (*models.ReasoningLedgerEntry, error) {
	var (
		entry     models.ReasoningLedgerEntry
		model     sql.NullString
		createdAt time.Time
	)
	err := row.Scan(&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Summary, &entry.Confidence, &model, &createdAt)
	if err != nil {
		return nil, err
	}
	entry.Model = model.String
	entry.CreatedAt = createdAt
	return &entry, nil
}

var _ secondary.EvidenceRepository = (*EvidenceRepository)(nil)
