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

// PolicyRuleRepository implements secondary.PolicyRuleRepository with SQLite.
type PolicyRuleRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewPolicyRuleRepository creates a new SQLite policy rule repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewPolicyRuleRepository(db *sql.DB, logWriter secondary.LogWriter) *PolicyRuleRepository {
	return &PolicyRuleRepository{db: db, logWriter: logWriter}
}

// Create persists a new policy rule.
func (r *PolicyRuleRepository) Create(ctx context.Context, rule *models.PolicyRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	if rule.Conditions == nil {
		conditions = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO policy_rules (id, organization_id, action_type, scope, max_risk_level, conditions, auto_decision, auto_decision_reason, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrganizationID,
		rule.ActionType,
		rule.Scope,
		rule.MaxRiskLevel,
		string(conditions),
		rule.AutoDecision,
		nullString(rule.AutoDecisionReason),
		rule.Enabled,
		sqlTime(rule.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create policy rule: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "policy_rule", rule.ID)
	}
	return nil
}

// GetByID retrieves a rule by its ID.
func (r *PolicyRuleRepository) GetByID(ctx context.Context, id string) (*models.PolicyRule, error) {
	row := r.db.QueryRowContext(ctx, selectPolicyRule+` WHERE id = ?`, id)
	rule, err := scanPolicyRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy rule %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy rule: %w", err)
	}
	return rule, nil
}

// ListForEvaluation retrieves all rules for (organization, actionType).
// No ordering is applied here: the pure engine owns the evaluation order
// so it can be tested without a database.
func (r *PolicyRuleRepository) ListForEvaluation(ctx context.Context, organizationID, actionType string) ([]models.PolicyRule, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPolicyRule+` WHERE organization_id = ? AND action_type = ?`,
		organizationID, actionType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for evaluation: %w", err)
	}
	defer rows.Close()

	var rules []models.PolicyRule
	for rows.Next() {
		rule, err := scanPolicyRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// List retrieves rules matching the given filters.
func (r *PolicyRuleRepository) List(ctx context.Context, filters secondary.PolicyRuleFilters) ([]*models.PolicyRule, error) {
	query := selectPolicyRule + ` WHERE 1=1`
	args := []any{}

	if filters.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filters.OrganizationID)
	}
	if filters.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, filters.ActionType)
	}
	if filters.EnabledOnly {
		query += " AND enabled = 1"
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.PolicyRule
	for rows.Next() {
		rule, err := scanPolicyRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SetEnabled flips a rule's kill switch.
func (r *PolicyRuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE policy_rules SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update policy rule: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("policy rule %s: %w", id, models.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "policy_rule", id, "enabled", "", fmt.Sprintf("%t", enabled))
	}
	return nil
}

const selectPolicyRule = `SELECT id, organization_id, action_type, scope, max_risk_level, conditions, auto_decision, auto_decision_reason, enabled, created_at FROM policy_rules`

func scanPolicyRule(row rowScanner) (*models.PolicyRule, error) {
	var (
		rule       models.PolicyRule
		conditions string
		reason     sql.NullString
		createdAt  time.Time
	)
	err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.ActionType, &rule.Scope, &rule.MaxRiskLevel,
		&conditions, &rule.AutoDecision, &reason, &rule.Enabled, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions: %w", err)
	}
	rule.AutoDecisionReason = reason.String
	rule.CreatedAt = createdAt
	return &rule, nil
}

var _ secondary.PolicyRuleRepository = (*PolicyRuleRepository)(nil)
