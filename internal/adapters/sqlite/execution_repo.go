package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

// ExecutionRepository implements secondary.ExecutionRepository with SQLite.
// Append-only: one row per attempt, retries never overwrite prior rows.
type ExecutionRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewExecutionRepository creates a new SQLite execution repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewExecutionRepository(db *sql.DB, logWriter secondary.LogWriter) *ExecutionRepository {
	return &ExecutionRepository{db: db, logWriter: logWriter}
}

// Create persists a new execution row.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	var result sql.NullString
	if execution.Result != nil {
		encoded, err := marshalJSON(execution.Result)
		if err != nil {
			return err
		}
		result = sql.NullString{String: encoded, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO executions (id, decision_id, organization_id, status, result, error_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID,
		execution.DecisionID,
		execution.OrganizationID,
		execution.Status,
		result,
		nullString(execution.ErrorCode),
		execution.DurationMs,
		sqlTime(execution.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "execution", execution.ID)
	}
	return nil
}

// GetByID retrieves an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, selectExecution+` WHERE id = ?`, id)
	execution, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return execution, nil
}

// ListByDecision retrieves all executions for a decision, oldest first.
func (r *ExecutionRepository) ListByDecision(ctx context.Context, decisionID string) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx,
		selectExecution+` WHERE decision_id = ? ORDER BY created_at, id`,
		decisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

// LatestByDecision retrieves the newest execution for a decision.
func (r *ExecutionRepository) LatestByDecision(ctx context.Context, decisionID string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx,
		selectExecution+` WHERE decision_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		decisionID,
	)
	execution, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no executions for decision %s: %w", decisionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest execution: %w", err)
	}
	return execution, nil
}

const selectExecution = `SELECT id, decision_id, organization_id, status, result, error_code, duration_ms, created_at FROM executions`

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		result    sql.NullString
		errorCode sql.NullString
		createdAt time.Time
	)
	err := row.Scan(
		&execution.ID, &execution.DecisionID, &execution.OrganizationID, &execution.Status,
		&result, &errorCode, &execution.DurationMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		execution.Result, err = unmarshalJSON(result.String)
		if err != nil {
			return nil, err
		}
	}
	execution.ErrorCode = errorCode.String
	execution.CreatedAt = createdAt
	return &execution, nil
}

var _ secondary.ExecutionRepository = (*ExecutionRepository)(nil)
