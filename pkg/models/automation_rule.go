package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ComparisonOperator is the comparator of an EventCondition.
type ComparisonOperator string

const (
	OperatorEquals        ComparisonOperator = "eq"
	OperatorNotEquals     ComparisonOperator = "neq"
	OperatorGreaterThan   ComparisonOperator = "gt"
	OperatorLessThan      ComparisonOperator = "lt"
	OperatorGreaterEquals ComparisonOperator = "gte"
	OperatorLessEquals    ComparisonOperator = "lte"
	OperatorContains      ComparisonOperator = "contains"
	OperatorDateBefore    ComparisonOperator = "date_before"
	OperatorDateAfter     ComparisonOperator = "date_after"
)

// KnownOperators lists every comparator the condition evaluator supports.
var KnownOperators = []ComparisonOperator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterEquals,
	OperatorLessEquals,
	OperatorContains,
	OperatorDateBefore,
	OperatorDateAfter,
}

// IsValid reports whether the operator is supported.
func (o ComparisonOperator) IsValid() bool {
	for _, known := range KnownOperators {
		if o == known {
			return true
		}
	}

	return false
}

// EventCondition is a (field, comparator, value) triple evaluated against a
// context snapshot. Stateless and side-effect-free.
type EventCondition struct {
	Field    string             `json:"field"    validate:"required"`
	Operator ComparisonOperator `json:"operator" validate:"required"`
	Value    any                `json:"value"`
}

// LogicOperator combines the conditions of a two-condition rule.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Rule validation errors.
var (
	ErrRuleNoConditions       = errors.New("rule must have at least one condition")
	ErrRuleTooManyConditions  = errors.New("rule must have at most two conditions")
	ErrRuleMissingCombinator  = errors.New("rule with two conditions requires a logic operator")
	ErrRuleInvalidCombinator  = errors.New("logic operator must be AND or OR")
	ErrRuleInvalidCondition   = errors.New("rule condition is malformed")
	ErrRuleInvalidCron        = errors.New("rule evaluation schedule is not a valid cron expression")
	ErrRuleTargetTypeRequired = errors.New("rule target workflow type is required")
)

// AutomationRule is a standing, per-operator condition set that auto-creates
// workflow executions when matched against incoming business events.
type AutomationRule struct {
	ID      string `json:"id"`
	Name    string `json:"name"     validate:"required,min=3"`
	OwnerID string `json:"owner_id" validate:"required"`

	// TargetWorkflowType is the type of execution launched when the rule fires.
	TargetWorkflowType WorkflowType `json:"target_workflow_type" validate:"required"`

	// Conditions holds one or two conditions; LogicOperator combines them
	// when two are present and is ignored for single-condition rules.
	Conditions    []EventCondition `json:"conditions"`
	LogicOperator LogicOperator    `json:"logic_operator,omitempty"`

	// AssignToUserID overrides rule-owner assignment for launched executions.
	AssignToUserID string `json:"assign_to_user_id,omitempty"`

	// CronExpression, when set, schedules recurring evaluation passes for
	// this rule (standard 5-field format). Empty means event-driven only.
	CronExpression string `json:"cron_expression,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces the rule invariants: 1–2 conditions, exactly one
// combinator when two conditions exist, well-formed conditions, and a
// parseable cron expression when one is set. Callers persist nothing until
// this passes.
func (r *AutomationRule) Validate() error {
	if !r.TargetWorkflowType.IsValid() {
		return ErrRuleTargetTypeRequired
	}

	if r.CronExpression != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(r.CronExpression); err != nil {
			return ErrRuleInvalidCron
		}
	}

	switch len(r.Conditions) {
	case 0:
		return ErrRuleNoConditions
	case 1:
		// Single-condition rules evaluate directly; combinator ignored.
	case 2:
		if r.LogicOperator == "" {
			return ErrRuleMissingCombinator
		}

		if r.LogicOperator != LogicAnd && r.LogicOperator != LogicOr {
			return ErrRuleInvalidCombinator
		}
	default:
		return ErrRuleTooManyConditions
	}

	for _, condition := range r.Conditions {
		if condition.Field == "" || !condition.Operator.IsValid() {
			return ErrRuleInvalidCondition
		}
	}

	return nil
}
