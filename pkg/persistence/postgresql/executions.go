package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id, type, customer_id, assigned_user_id, escalation_user_id, status,
	workflow_data, priority_score, priority_factors,
	snoozed_until, snoozed_by, active_triggers, trigger_history, woken_at,
	review_status, review_iteration, rejection_history,
	automation_rule_id, launch_key, skip_reason,
	created_at, updated_at, started_at, completed_at, skipped_at
`

// Save inserts a new execution.
func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	fields, err := marshalExecutionJSON(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID, execution.Type, execution.CustomerID, execution.AssignedUserID,
		execution.EscalationUserID, execution.Status,
		fields.workflowData, execution.PriorityScore, fields.priorityFactors,
		execution.SnoozedUntil, execution.SnoozedBy, fields.activeTriggers, fields.triggerHistory, execution.WokenAt,
		execution.ReviewStatus, execution.ReviewIteration, fields.rejectionHistory,
		execution.AutomationRuleID, execution.LaunchKey, execution.SkipReason,
		execution.CreatedAt, execution.UpdatedAt, execution.StartedAt, execution.CompletedAt, execution.SkippedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// ListByAssignee returns every execution assigned to the operator.
func (er *ExecutionRepository) ListByAssignee(ctx context.Context, userID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE assigned_user_id = $1 ORDER BY created_at`

	return er.query(ctx, query, userID)
}

// ListByStatus returns every execution in the given status.
func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE status = $1 ORDER BY created_at`

	return er.query(ctx, query, status)
}

// UpdateGuarded updates the execution only when the stored row still holds
// the expected status and updated_at. A zero-row update against an existing
// row means a concurrent writer won the race.
func (er *ExecutionRepository) UpdateGuarded(ctx context.Context, execution *models.WorkflowExecution,
	expectedStatus models.ExecutionStatus, expectedUpdatedAt time.Time,
) error {
	fields, err := marshalExecutionJSON(execution)
	if err != nil {
		return persistence.NewExecutionError("UpdateGuarded", execution.ID, err)
	}

	query := `
		UPDATE workflow_executions SET
			type = $2, customer_id = $3, assigned_user_id = $4, escalation_user_id = $5, status = $6,
			workflow_data = $7, priority_score = $8, priority_factors = $9,
			snoozed_until = $10, snoozed_by = $11, active_triggers = $12, trigger_history = $13, woken_at = $14,
			review_status = $15, review_iteration = $16, rejection_history = $17,
			automation_rule_id = $18, launch_key = $19, skip_reason = $20,
			updated_at = $21, started_at = $22, completed_at = $23, skipped_at = $24
		WHERE id = $1 AND status = $25 AND updated_at = $26
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.Type, execution.CustomerID, execution.AssignedUserID, execution.EscalationUserID, execution.Status,
		fields.workflowData, execution.PriorityScore, fields.priorityFactors,
		execution.SnoozedUntil, execution.SnoozedBy, fields.activeTriggers, fields.triggerHistory, execution.WokenAt,
		execution.ReviewStatus, execution.ReviewIteration, fields.rejectionHistory,
		execution.AutomationRuleID, execution.LaunchKey, execution.SkipReason,
		execution.UpdatedAt, execution.StartedAt, execution.CompletedAt, execution.SkippedAt,
		expectedStatus, expectedUpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("UpdateGuarded", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("UpdateGuarded", execution.ID, err)
	}

	if affected == 0 {
		var exists bool

		err = er.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE id = $1)", execution.ID).Scan(&exists)
		if err != nil {
			return persistence.NewExecutionError("UpdateGuarded", execution.ID, err)
		}

		if !exists {
			return persistence.NewExecutionError("UpdateGuarded", execution.ID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("UpdateGuarded", execution.ID, persistence.ErrConflict)
	}

	return nil
}

// HasLaunch reports whether the rule already launched an execution with the
// given launch key.
func (er *ExecutionRepository) HasLaunch(ctx context.Context, ruleID, launchKey string) (bool, error) {
	var exists bool

	err := er.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE automation_rule_id = $1 AND launch_key = $2)",
		ruleID, launchKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check launch key: %w", err)
	}

	return exists, nil
}

func (er *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (er *ExecutionRepository) scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution        models.WorkflowExecution
		workflowData     []byte
		priorityFactors  []byte
		activeTriggers   []byte
		triggerHistory   []byte
		rejectionHistory []byte
	)

	err := row.Scan(
		&execution.ID, &execution.Type, &execution.CustomerID, &execution.AssignedUserID,
		&execution.EscalationUserID, &execution.Status,
		&workflowData, &execution.PriorityScore, &priorityFactors,
		&execution.SnoozedUntil, &execution.SnoozedBy, &activeTriggers, &triggerHistory, &execution.WokenAt,
		&execution.ReviewStatus, &execution.ReviewIteration, &rejectionHistory,
		&execution.AutomationRuleID, &execution.LaunchKey, &execution.SkipReason,
		&execution.CreatedAt, &execution.UpdatedAt, &execution.StartedAt, &execution.CompletedAt, &execution.SkippedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalInto(workflowData, &execution.WorkflowData); err != nil {
		return nil, err
	}

	if len(priorityFactors) > 0 {
		if err := unmarshalInto(priorityFactors, &execution.PriorityFactors); err != nil {
			return nil, err
		}
	}

	if err := unmarshalInto(activeTriggers, &execution.ActiveTriggers); err != nil {
		return nil, err
	}

	if err := unmarshalInto(triggerHistory, &execution.TriggerHistory); err != nil {
		return nil, err
	}

	if err := unmarshalInto(rejectionHistory, &execution.RejectionHistory); err != nil {
		return nil, err
	}

	return &execution, nil
}

type executionJSONFields struct {
	workflowData     []byte
	priorityFactors  []byte
	activeTriggers   []byte
	triggerHistory   []byte
	rejectionHistory []byte
}

func marshalExecutionJSON(execution *models.WorkflowExecution) (executionJSONFields, error) {
	var (
		fields executionJSONFields
		err    error
	)

	if fields.workflowData, err = marshalOr(execution.WorkflowData, "{}"); err != nil {
		return fields, err
	}

	if execution.PriorityFactors != nil {
		if fields.priorityFactors, err = json.Marshal(execution.PriorityFactors); err != nil {
			return fields, err
		}
	}

	if fields.activeTriggers, err = marshalOr(execution.ActiveTriggers, "[]"); err != nil {
		return fields, err
	}

	if fields.triggerHistory, err = marshalOr(execution.TriggerHistory, "[]"); err != nil {
		return fields, err
	}

	if fields.rejectionHistory, err = marshalOr(execution.RejectionHistory, "[]"); err != nil {
		return fields, err
	}

	return fields, nil
}

func marshalOr(value any, empty string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return []byte(empty), nil
	}

	return data, nil
}

func unmarshalInto(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}
