package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ScheduleRepository handles rule schedule database operations.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `
	id, rule_id, cron_expression, next_due_at, active, created_at, updated_at
`

// Save inserts or replaces a schedule.
func (sr *ScheduleRepository) Save(ctx context.Context, schedule *models.RuleSchedule) error {
	query := `
		INSERT INTO rule_schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			next_due_at = EXCLUDED.next_due_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := sr.db.ExecContext(ctx, query,
		schedule.ID, schedule.RuleID, schedule.CronExpression,
		schedule.NextDueAt, schedule.Active, schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

// GetByRuleID returns the schedule attached to a rule.
func (sr *ScheduleRepository) GetByRuleID(ctx context.Context, ruleID string) (*models.RuleSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM rule_schedules WHERE rule_id = $1`

	schedule, err := sr.scanSchedule(sr.db.QueryRowContext(ctx, query, ruleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, fmt.Errorf("failed to get schedule for rule %s: %w", ruleID, err)
	}

	return schedule, nil
}

// ListDue returns active schedules whose next due time has passed.
func (sr *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.RuleSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM rule_schedules WHERE active AND next_due_at <= $1 ORDER BY next_due_at`

	rows, err := sr.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			sr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var schedules []*models.RuleSchedule

	for rows.Next() {
		schedule, err := sr.scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

// Delete removes the schedule attached to a rule.
func (sr *ScheduleRepository) Delete(ctx context.Context, ruleID string) error {
	_, err := sr.db.ExecContext(ctx, "DELETE FROM rule_schedules WHERE rule_id = $1", ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule for rule %s: %w", ruleID, err)
	}

	return nil
}

func (sr *ScheduleRepository) scanSchedule(row rowScanner) (*models.RuleSchedule, error) {
	var schedule models.RuleSchedule

	err := row.Scan(
		&schedule.ID, &schedule.RuleID, &schedule.CronExpression,
		&schedule.NextDueAt, &schedule.Active, &schedule.CreatedAt, &schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &schedule, nil
}
