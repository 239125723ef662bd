package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// RuleRepository handles automation rule database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `
	id, name, owner_id, target_workflow_type, conditions, logic_operator,
	assign_to_user_id, cron_expression, is_active, created_at, updated_at
`

// Save inserts or replaces a rule.
func (rr *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return persistence.NewRuleError("Save", rule.ID, err)
	}

	query := `
		INSERT INTO automation_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			target_workflow_type = EXCLUDED.target_workflow_type,
			conditions = EXCLUDED.conditions,
			logic_operator = EXCLUDED.logic_operator,
			assign_to_user_id = EXCLUDED.assign_to_user_id,
			cron_expression = EXCLUDED.cron_expression,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = rr.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.OwnerID, rule.TargetWorkflowType, conditions, rule.LogicOperator,
		rule.AssignToUserID, rule.CronExpression, rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRuleError("Save", rule.ID, err)
	}

	return nil
}

// GetByID returns a rule by its ID.
func (rr *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`

	rule, err := rr.scanRule(rr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRuleError("GetByID", id, persistence.ErrRuleNotFound)
		}

		return nil, persistence.NewRuleError("GetByID", id, err)
	}

	return rule, nil
}

// ListByOwner returns the operator's rules, optionally only active ones.
func (rr *RuleRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE owner_id = $1 ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + ruleColumns + ` FROM automation_rules WHERE owner_id = $1 AND is_active ORDER BY created_at`
	}

	return rr.query(ctx, query, ownerID)
}

// ListActive returns every active rule across all owners.
func (rr *RuleRepository) ListActive(ctx context.Context) ([]*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE is_active ORDER BY created_at`

	return rr.query(ctx, query)
}

// Delete removes a rule.
func (rr *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := rr.db.ExecContext(ctx, "DELETE FROM automation_rules WHERE id = $1", id)
	if err != nil {
		return persistence.NewRuleError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRuleError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewRuleError("Delete", id, persistence.ErrRuleNotFound)
	}

	return nil
}

func (rr *RuleRepository) query(ctx context.Context, query string, args ...any) ([]*models.AutomationRule, error) {
	rows, err := rr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			rr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var rules []*models.AutomationRule

	for rows.Next() {
		rule, err := rr.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func (rr *RuleRepository) scanRule(row rowScanner) (*models.AutomationRule, error) {
	var (
		rule       models.AutomationRule
		conditions []byte
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.OwnerID, &rule.TargetWorkflowType, &conditions, &rule.LogicOperator,
		&rule.AssignToUserID, &rule.CronExpression, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalInto(conditions, &rule.Conditions); err != nil {
		return nil, err
	}

	return &rule, nil
}
