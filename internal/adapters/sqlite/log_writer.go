package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/warden/internal/ctxutil"
)

// LogWriterAdapter implements secondary.LogWriter against the audit_log
// table. Audit entries are append-only; failures to audit are returned to
// the caller but repositories treat them as best-effort.
type LogWriterAdapter struct {
	db *sql.DB
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(db *sql.DB) *LogWriterAdapter {
	return &LogWriterAdapter{db: db}
}

// LogCreate logs a create operation for an entity.
func (w *LogWriterAdapter) LogCreate(ctx context.Context, entityType, entityID string) error {
	return w.writeLog(ctx, entityType, entityID, "create", "", "", "")
}

// LogUpdate logs an update operation for an entity field.
func (w *LogWriterAdapter) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return w.writeLog(ctx, entityType, entityID, "update", fieldName, oldValue, newValue)
}

func (w *LogWriterAdapter) writeLog(ctx context.Context, entityType, entityID, action, fieldName, oldValue, newValue string) error {
	actorID := ctxutil.ActorFromContext(ctx)

	_, err := w.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, entity_type, entity_id, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(actorID), entityType, entityID, action,
		nullString(fieldName), nullString(oldValue), nullString(newValue),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
