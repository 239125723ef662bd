// Package persistence provides the data storage abstraction layer for
// workflow executions, automation rules, customers, and rule schedules.
package persistence

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Persistence is the record-store contract of the orchestration engine. All
// engine state lives behind it; the engine itself is stateless.
type Persistence interface {
	Executions() ExecutionRepository
	Rules() RuleRepository
	Customers() CustomerRepository
	Schedules() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutionRepository stores workflow executions. State transitions go
// through UpdateGuarded, which is a compare-and-swap on (status, updated_at):
// a concurrent writer that got there first surfaces as ErrConflict, never as
// a silent overwrite.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// ListByAssignee returns every execution assigned to the operator,
	// terminal ones included; callers filter.
	ListByAssignee(ctx context.Context, userID string) ([]*models.WorkflowExecution, error)
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error)

	// UpdateGuarded persists the execution only if the stored record still
	// has the expected status and updated_at. Returns ErrConflict otherwise.
	UpdateGuarded(ctx context.Context, execution *models.WorkflowExecution,
		expectedStatus models.ExecutionStatus, expectedUpdatedAt time.Time) error

	// HasLaunch reports whether the rule already launched an execution for
	// the given launch key (rule+event+day idempotency).
	HasLaunch(ctx context.Context, ruleID, launchKey string) (bool, error)
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	Save(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*models.AutomationRule, error)
	ListActive(ctx context.Context) ([]*models.AutomationRule, error)
	Delete(ctx context.Context, id string) error
}

// CustomerRepository stores reference customer data. The orchestration core
// only reads it; writes exist for ingestion and tests.
type CustomerRepository interface {
	Save(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)

	// List returns every customer. Scheduled rule passes evaluate the due
	// rule against each one.
	List(ctx context.Context) ([]*models.Customer, error)
}

// ScheduleRepository stores recurring rule-evaluation schedules with
// precomputed due times.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.RuleSchedule) error
	GetByRuleID(ctx context.Context, ruleID string) (*models.RuleSchedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.RuleSchedule, error)

	// Delete removes the schedule attached to the rule, if any.
	Delete(ctx context.Context, ruleID string) error
}
