// Package rules implements the automation rule engine: standing condition
// sets that launch workflow executions when matched against incoming
// business events.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/conditions"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// RuleOutcome records what one rule did during an evaluation pass.
type RuleOutcome string

const (
	OutcomeLaunched   RuleOutcome = "launched"
	OutcomeNotMatched RuleOutcome = "not_matched"
	OutcomeDuplicate  RuleOutcome = "duplicate"
	OutcomeFailed     RuleOutcome = "failed"
)

// RuleRun is the per-rule audit entry of an evaluation pass.
type RuleRun struct {
	RuleID      string      `json:"rule_id"`
	RuleName    string      `json:"rule_name"`
	Outcome     RuleOutcome `json:"outcome"`
	ExecutionID string      `json:"execution_id,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// ErrorDetail captures a single rule failure without aborting the batch.
type ErrorDetail struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Error    string `json:"error"`
}

// EvaluationResult summarizes one pass over the active rule set. A batch of
// N rules with one bad rule still produces N-1 correct outcomes; the bad one
// lands in Errors.
type EvaluationResult struct {
	Evaluated int           `json:"evaluated"`
	Launched  []string      `json:"launched"` // Execution IDs created this pass
	Errors    []ErrorDetail `json:"errors"`
	Runs      []RuleRun     `json:"runs"`
}

// Engine evaluates automation rules against business events and launches
// workflow executions for satisfied rules.
type Engine struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates a rule engine over the given record store.
func NewEngine(persistence persistence.Persistence, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: persistence,
		logger:      logger.With("module", "rules"),
		now:         time.Now,
	}
}

// WithClock overrides the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// EvaluateRule reports whether the rule's condition set matches the snapshot.
// A single-condition rule ignores the logic operator.
func (e *Engine) EvaluateRule(rule *models.AutomationRule, snapshot map[string]any) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	return conditions.EvaluateSet(rule.Conditions, rule.LogicOperator, snapshot), nil
}

// EvaluateAllActiveRules evaluates every active rule against the event and
// launches one execution per satisfied rule. Launches are idempotent per
// rule+event+day; a rule that fails mid-batch is captured into the result and
// evaluation continues.
func (e *Engine) EvaluateAllActiveRules(ctx context.Context, event *events.BusinessEvent) (*EvaluationResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	activeRules, err := e.persistence.Rules().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}

	snapshot := e.buildSnapshot(ctx, event)
	result := &EvaluationResult{}

	for _, rule := range activeRules {
		result.Evaluated++

		run := e.evaluateOne(ctx, rule, event, snapshot)
		result.Runs = append(result.Runs, run)

		switch run.Outcome {
		case OutcomeLaunched:
			result.Launched = append(result.Launched, run.ExecutionID)
		case OutcomeFailed:
			result.Errors = append(result.Errors, ErrorDetail{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    run.Message,
			})
		}
	}

	e.logger.InfoContext(ctx, "Rule evaluation pass finished",
		"event_type", event.Type,
		"evaluated", result.Evaluated,
		"launched", len(result.Launched),
		"errors", len(result.Errors))

	return result, nil
}

// EvaluateScheduledRule runs one rule against every customer, as a recurring
// schedule firing does. Each customer gets a synthetic scheduled_evaluation
// event without an ID, so at most one execution launches per rule, customer
// and day no matter how often the schedule fires.
func (e *Engine) EvaluateScheduledRule(ctx context.Context, rule *models.AutomationRule) (*EvaluationResult, error) {
	customers, err := e.persistence.Customers().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	result := &EvaluationResult{}

	for _, customer := range customers {
		event := events.NewBusinessEvent(events.EventScheduledEvaluation, customer.ID, nil)
		snapshot := e.buildSnapshot(ctx, event)

		result.Evaluated++

		run := e.evaluateOne(ctx, rule, event, snapshot)
		result.Runs = append(result.Runs, run)

		switch run.Outcome {
		case OutcomeLaunched:
			result.Launched = append(result.Launched, run.ExecutionID)
		case OutcomeFailed:
			result.Errors = append(result.Errors, ErrorDetail{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    run.Message,
			})
		}
	}

	e.logger.InfoContext(ctx, "Scheduled rule pass finished",
		"rule_id", rule.ID,
		"customers", result.Evaluated,
		"launched", len(result.Launched),
		"errors", len(result.Errors))

	return result, nil
}

// evaluateOne runs a single rule with full failure isolation.
func (e *Engine) evaluateOne(ctx context.Context, rule *models.AutomationRule, event *events.BusinessEvent, snapshot map[string]any) (run RuleRun) {
	run = RuleRun{RuleID: rule.ID, RuleName: rule.Name}

	defer func() {
		if recovered := recover(); recovered != nil {
			run.Outcome = OutcomeFailed
			run.Message = fmt.Sprintf("rule evaluation panicked: %v", recovered)
			e.logger.ErrorContext(ctx, "Rule evaluation panicked", "rule_id", rule.ID, "panic", recovered)
		}
	}()

	matched, err := e.EvaluateRule(rule, snapshot)
	if err != nil {
		run.Outcome = OutcomeFailed
		run.Message = err.Error()

		return run
	}

	if !matched {
		run.Outcome = OutcomeNotMatched

		return run
	}

	launchKey := LaunchKey(event, e.now().UTC())

	duplicate, err := e.persistence.Executions().HasLaunch(ctx, rule.ID, launchKey)
	if err != nil {
		run.Outcome = OutcomeFailed
		run.Message = fmt.Sprintf("launch dedup check failed: %v", err)

		return run
	}

	if duplicate {
		run.Outcome = OutcomeDuplicate
		run.Message = "already launched for this event today"

		return run
	}

	execution, err := e.launch(ctx, rule, event, launchKey)
	if err != nil {
		run.Outcome = OutcomeFailed
		run.Message = fmt.Sprintf("launch failed: %v", err)

		return run
	}

	run.Outcome = OutcomeLaunched
	run.ExecutionID = execution.ID

	return run
}

// launch creates exactly one execution for a satisfied rule.
func (e *Engine) launch(ctx context.Context, rule *models.AutomationRule, event *events.BusinessEvent, launchKey string) (*models.WorkflowExecution, error) {
	assignee := rule.OwnerID
	if rule.AssignToUserID != "" {
		assignee = rule.AssignToUserID
	}

	now := e.now().UTC()
	execution := &models.WorkflowExecution{
		ID:               uuid.New().String(),
		Type:             rule.TargetWorkflowType,
		CustomerID:       event.CustomerID,
		AssignedUserID:   assignee,
		Status:           models.ExecutionStatusNotStarted,
		AutomationRuleID: rule.ID,
		LaunchKey:        launchKey,
		WorkflowData: map[string]any{
			"launched_by_rule": rule.Name,
			"trigger_event":    event.Type,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Rule launched execution",
		"rule_id", rule.ID, "execution_id", execution.ID, "type", execution.Type)

	return execution, nil
}

// buildSnapshot merges the event payload with the customer snapshot when one
// is available. A missing customer record is logged and the event evaluates
// on its own fields only.
func (e *Engine) buildSnapshot(ctx context.Context, event *events.BusinessEvent) map[string]any {
	snapshot := event.Snapshot()

	if event.CustomerID == "" {
		return snapshot
	}

	customer, err := e.persistence.Customers().GetByID(ctx, event.CustomerID)
	if err != nil {
		e.logger.WarnContext(ctx, "Customer lookup failed during rule evaluation",
			"customer_id", event.CustomerID, "error", err)

		return snapshot
	}

	for key, value := range customer.Snapshot(e.now().UTC()) {
		// Event fields win over reference data: the event is newer.
		if _, present := snapshot[key]; !present {
			snapshot[key] = value
		}
	}

	return snapshot
}

// LaunchKey derives the idempotency key for a rule launch: the triggering
// event occurrence plus the evaluation day.
func LaunchKey(event *events.BusinessEvent, now time.Time) string {
	return event.DedupKey() + ":" + now.Format("2006-01-02")
}
