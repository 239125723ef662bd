// Package web provides HTTP handlers and REST API endpoints for the
// orchestration engine.
package web

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// CreateExecutionRequest represents the request body for creating an execution.
type CreateExecutionRequest struct {
	Type           string         `json:"type"             validate:"required"`
	CustomerID     string         `json:"customer_id"      validate:"required"`
	AssignedUserID string         `json:"assigned_user_id" validate:"required"`
	WorkflowData   map[string]any `json:"workflow_data,omitempty"`
}

// SkipRequest carries the mandatory reason for skipping an execution.
type SkipRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

// SnoozeRequest carries the wake trigger set for snoozing an execution.
type SnoozeRequest struct {
	Triggers []WakeTriggerRequest `json:"triggers" validate:"required,min=1,dive"`
	ActorID  string               `json:"actor_id"`
}

// WakeTriggerRequest is the wire form of one wake trigger.
type WakeTriggerRequest struct {
	Type          string                  `json:"type"     validate:"required,oneof=date event"`
	WakeAt        *time.Time              `json:"wake_at,omitempty"`
	Conditions    []models.EventCondition `json:"conditions,omitempty"`
	LogicOperator string                  `json:"logic_operator,omitempty"`
}

// EscalateRequest names the secondary responsible party.
type EscalateRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	ActorID      string `json:"actor_id"`
}

// RejectReviewRequest carries the mandatory rejection reason.
type RejectReviewRequest struct {
	Reason  string `json:"reason" validate:"required,min=1"`
	Notes   string `json:"notes,omitempty"`
	ActorID string `json:"actor_id"`
}

// ApproveReviewRequest identifies the approving reviewer.
type ApproveReviewRequest struct {
	ActorID string `json:"actor_id"`
}

// StepResultRequest wraps a step-result payload.
type StepResultRequest struct {
	Payload map[string]any `json:"payload" validate:"required"`
}

// CreateRuleRequest represents the request body for creating an automation rule.
type CreateRuleRequest struct {
	Name               string                  `json:"name"                 validate:"required,min=3"`
	OwnerID            string                  `json:"owner_id"             validate:"required"`
	TargetWorkflowType string                  `json:"target_workflow_type" validate:"required"`
	Conditions         []models.EventCondition `json:"conditions"           validate:"required,min=1,max=2"`
	LogicOperator      string                  `json:"logic_operator,omitempty"`
	AssignToUserID     string                  `json:"assign_to_user_id,omitempty"`
	CronExpression     string                  `json:"cron_expression,omitempty"`
	IsActive           bool                    `json:"is_active"`
}

// UpdateRuleRequest mirrors CreateRuleRequest for full replacement updates.
type UpdateRuleRequest struct {
	Name               string                  `json:"name"                 validate:"required,min=3"`
	TargetWorkflowType string                  `json:"target_workflow_type" validate:"required"`
	Conditions         []models.EventCondition `json:"conditions"           validate:"required,min=1,max=2"`
	LogicOperator      string                  `json:"logic_operator,omitempty"`
	AssignToUserID     string                  `json:"assign_to_user_id,omitempty"`
	CronExpression     string                  `json:"cron_expression,omitempty"`
	IsActive           bool                    `json:"is_active"`
}

// IngestEventRequest represents an incoming business event.
type IngestEventRequest struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"        validate:"required"`
	CustomerID string         `json:"customer_id"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func (r *SnoozeRequest) toTriggers() []models.WakeTrigger {
	triggers := make([]models.WakeTrigger, 0, len(r.Triggers))
	for _, t := range r.Triggers {
		triggers = append(triggers, models.WakeTrigger{
			Type:          models.WakeTriggerType(t.Type),
			WakeAt:        t.WakeAt,
			Conditions:    t.Conditions,
			LogicOperator: models.LogicOperator(t.LogicOperator),
		})
	}

	return triggers
}

func (r *CreateRuleRequest) toModel() *models.AutomationRule {
	return &models.AutomationRule{
		Name:               r.Name,
		OwnerID:            r.OwnerID,
		TargetWorkflowType: models.WorkflowType(r.TargetWorkflowType),
		Conditions:         r.Conditions,
		LogicOperator:      models.LogicOperator(r.LogicOperator),
		AssignToUserID:     r.AssignToUserID,
		CronExpression:     r.CronExpression,
		IsActive:           r.IsActive,
	}
}

func (r *UpdateRuleRequest) toModel() *models.AutomationRule {
	return &models.AutomationRule{
		Name:               r.Name,
		TargetWorkflowType: models.WorkflowType(r.TargetWorkflowType),
		Conditions:         r.Conditions,
		LogicOperator:      models.LogicOperator(r.LogicOperator),
		AssignToUserID:     r.AssignToUserID,
		CronExpression:     r.CronExpression,
		IsActive:           r.IsActive,
	}
}
