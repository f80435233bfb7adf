package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// OutboxRepository implements secondary.OutboxRepository with SQLite.
type OutboxRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewOutboxRepository creates a new SQLite outbox repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewOutboxRepository(db *sql.DB, logWriter secondary.LogWriter) *OutboxRepository {
	return &OutboxRepository{db: db, logWriter: logWriter}
}

// Create persists a new QUEUED entry.
func (r *OutboxRepository) Create(ctx context.Context, entry *models.OutboxEntry) error {
	payload, err := marshalJSON(entry.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO outbox (id, organization_id, topic, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrganizationID,
		entry.Topic,
		payload,
		models.OutboxQueued,
		sqlTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox entry: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "outbox", entry.ID)
	}
	return nil
}

// GetByID retrieves an entry by its ID.
func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*models.OutboxEntry, error) {
	row := r.db.QueryRowContext(ctx, selectOutbox+` WHERE id = ?`, id)
	entry, err := scanOutbox(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("outbox entry %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox entry: %w", err)
	}
	return entry, nil
}

// ListQueued retrieves up to limit QUEUED entries, oldest first.
func (r *OutboxRepository) ListQueued(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		selectOutbox+` WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		models.OutboxQueued, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued outbox entries: %w", err)
	}
	defer rows.Close()
	return collectOutbox(rows)
}

// MarkSent transitions an entry to SENT.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, sent_at = ?, last_error = NULL WHERE id = ? AND status != ?`,
		models.OutboxSent, sqlTime(at), id, models.OutboxSent,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check outbox update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox entry %s not found or already sent: %w", id, models.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "outbox", id, "status", models.OutboxQueued, models.OutboxSent)
	}
	return nil
}

// MarkFailed transitions an entry to FAILED with a delivery error.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, deliveryError string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, last_error = ? WHERE id = ?`,
		models.OutboxFailed, deliveryError, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check outbox update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// List retrieves entries matching the given filters.
func (r *OutboxRepository) List(ctx context.Context, filters secondary.OutboxFilters) ([]*models.OutboxEntry, error) {
	query := selectOutbox + ` WHERE 1=1`
	var args []any
	if filters.OrganizationID != "" {
		query += ` AND organization_id = ?`
		args = append(args, filters.OrganizationID)
	}
	if filters.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, filters.Topic)
	}
	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, filters.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	defer rows.Close()
	return collectOutbox(rows)
}

const selectOutbox = `SELECT id, organization_id, topic, payload, status, last_error, created_at, sent_at FROM outbox`

func scanOutbox(row rowScanner) (*models.OutboxEntry, error) {
	var (
		entry     models.OutboxEntry
		payload   string
		lastError sql.NullString
		createdAt time.Time
		sentAt    sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.OrganizationID, &entry.Topic, &payload, &entry.Status, &lastError, &createdAt, &sentAt)
	if err != nil {
		return nil, err
	}
	entry.Payload, err = unmarshalJSON(payload)
	if err != nil {
		return nil, err
	}
	entry.LastError = lastError.String
	entry.CreatedAt = createdAt
	entry.SentAt = timePtr(sentAt)
	return &entry, nil
}

func collectOutbox(rows *sql.Rows) ([]*models.OutboxEntry, error) {
	var entries []*models.OutboxEntry
	for rows.Next() {
		entry, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ secondary.OutboxRepository = (*OutboxRepository)(nil)
