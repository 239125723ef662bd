// Package models defines the core domain models for customer-success workflow orchestration.
package models

import "time"

// WorkflowType classifies the kind of guided work an execution represents.
type WorkflowType string

const (
	WorkflowTypeRisk        WorkflowType = "risk"
	WorkflowTypeOpportunity WorkflowType = "opportunity"
	WorkflowTypeStrategic   WorkflowType = "strategic"
	WorkflowTypeRenewal     WorkflowType = "renewal"
)

// KnownWorkflowTypes lists every workflow type the engine understands.
var KnownWorkflowTypes = []WorkflowType{
	WorkflowTypeRisk,
	WorkflowTypeOpportunity,
	WorkflowTypeStrategic,
	WorkflowTypeRenewal,
}

// IsValid reports whether the workflow type is one the engine understands.
func (t WorkflowType) IsValid() bool {
	for _, known := range KnownWorkflowTypes {
		if t == known {
			return true
		}
	}

	return false
}

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusNotStarted ExecutionStatus = "not_started" // Created, waiting to be picked up
	ExecutionStatusUnderway   ExecutionStatus = "underway"    // An operator is actively working it
	ExecutionStatusCompleted  ExecutionStatus = "completed"   // Terminal
	ExecutionStatusSkipped    ExecutionStatus = "skipped"     // Terminal, reversible only by re-creation
	ExecutionStatusSnoozed    ExecutionStatus = "snoozed"     // Paused until a wake trigger fires
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusSkipped
}

// ReviewStatus is the parallel review sub-state gating a completed step's output.
type ReviewStatus string

// A rejection does not close the review: the sub-state stays pending with an
// incremented iteration, so "rejected" is an event in the history, not a
// status.
const (
	ReviewStatusNone     ReviewStatus = ""
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
)

// RejectionEntry is one entry in an execution's append-only rejection history.
type RejectionEntry struct {
	Iteration  int       `json:"iteration"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	RejectedBy string    `json:"rejected_by,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

// PriorityFactors is the structured breakdown behind a computed priority score.
type PriorityFactors struct {
	TypeWeight       float64 `json:"type_weight"`
	RenewalProximity float64 `json:"renewal_proximity"`
	HealthRisk       float64 `json:"health_risk"`
	ARRAtStake       float64 `json:"arr_at_stake"`
	WakeBump         float64 `json:"wake_bump"`
}

// Total sums the individual factor contributions.
func (f PriorityFactors) Total() float64 {
	return f.TypeWeight + f.RenewalProximity + f.HealthRisk + f.ARRAtStake + f.WakeBump
}

// WorkflowExecution is the unit of work: one scheduled piece of guided work
// tied to a customer and assigned to an operator. It is owned exclusively by
// the orchestration engine once created; surrounding layers read it and
// submit transition requests.
type WorkflowExecution struct {
	ID             string       `json:"id"`
	Type           WorkflowType `json:"type"        validate:"required"`
	CustomerID     string       `json:"customer_id" validate:"required"`
	AssignedUserID string       `json:"assigned_user_id"`

	// EscalationUserID adds a secondary responsible party. It never replaces
	// AssignedUserID: escalation is not reassignment.
	EscalationUserID string `json:"escalation_user_id,omitempty"`

	Status ExecutionStatus `json:"status"`

	// WorkflowData accumulates step results and check-ins. Schema-on-read:
	// known step shapes are validated where they are consumed, unknown keys
	// pass through untouched.
	WorkflowData map[string]any `json:"workflow_data,omitempty"`

	PriorityScore   float64          `json:"priority_score"`
	PriorityFactors *PriorityFactors `json:"priority_factors,omitempty"`

	// Snooze bookkeeping. ActiveTriggers holds the trigger set while the
	// execution is snoozed and is cleared on wake; SnoozedUntil and
	// TriggerHistory remain for audit.
	SnoozedUntil   *time.Time    `json:"snoozed_until,omitempty"`
	SnoozedBy      string        `json:"snoozed_by,omitempty"`
	ActiveTriggers []WakeTrigger `json:"active_triggers,omitempty"`
	TriggerHistory []WakeTrigger `json:"trigger_history,omitempty"`
	WokenAt        *time.Time    `json:"woken_at,omitempty"`

	// Review sub-state. ReviewIteration starts at 1 when review opens and
	// strictly increases on every rejection; it never resets except through
	// re-creation of the execution.
	ReviewStatus     ReviewStatus     `json:"review_status,omitempty"`
	ReviewIteration  int              `json:"review_iteration,omitempty"`
	RejectionHistory []RejectionEntry `json:"rejection_history,omitempty"`

	// Automation provenance: set when the execution was launched by a rule.
	AutomationRuleID string `json:"automation_rule_id,omitempty"`
	LaunchKey        string `json:"launch_key,omitempty"`

	SkipReason  string     `json:"skip_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SkippedAt   *time.Time `json:"skipped_at,omitempty"`
}

// RecentlyWoken reports whether the execution woke from a snooze within the
// given window. Recently woken work gets a priority bump so it resurfaces
// above newly created same-type executions.
func (e *WorkflowExecution) RecentlyWoken(now time.Time, window time.Duration) bool {
	return e.WokenAt != nil && now.Sub(*e.WokenAt) <= window
}
