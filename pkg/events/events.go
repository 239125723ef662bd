// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "cadence.events"                        // Workflow lifecycle events
const BusinessEventsTopic = "cadence.business-events" // Incoming business events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionCreatedEvent   EventType = "execution.created"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionSkippedEvent   EventType = "execution.skipped"
	ExecutionSnoozedEvent   EventType = "execution.snoozed"
	ExecutionWokenEvent     EventType = "execution.woken"
	ExecutionEscalatedEvent EventType = "execution.escalated"

	// Review sub-flow events.
	ReviewRejectedEvent EventType = "review.rejected"
	ReviewApprovedEvent EventType = "review.approved"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	CustomerID  string         `json:"customer_id,omitempty"`
	ActorID     string         `json:"actor_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionCreated struct {
	BaseEvent

	WorkflowType models.WorkflowType `json:"workflow_type"`
	AssignedTo   string              `json:"assigned_to"`
	RuleID       string              `json:"rule_id,omitempty"`
}

func (e ExecutionCreated) GetType() EventType {
	return ExecutionCreatedEvent
}

type ExecutionStarted struct {
	BaseEvent

	StartedAt time.Time `json:"started_at"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionSkipped struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e ExecutionSkipped) GetType() EventType {
	return ExecutionSkippedEvent
}

type ExecutionSnoozed struct {
	BaseEvent

	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
	TriggerCount int        `json:"trigger_count"`
}

func (e ExecutionSnoozed) GetType() EventType {
	return ExecutionSnoozedEvent
}

type ExecutionWoken struct {
	BaseEvent

	// WakeSource says what fired: "date" or "event".
	WakeSource string `json:"wake_source"`
}

func (e ExecutionWoken) GetType() EventType {
	return ExecutionWokenEvent
}

type ExecutionEscalated struct {
	BaseEvent

	EscalationUserID string `json:"escalation_user_id"`
}

func (e ExecutionEscalated) GetType() EventType {
	return ExecutionEscalatedEvent
}

type ReviewRejected struct {
	BaseEvent

	Iteration int    `json:"iteration"`
	Reason    string `json:"reason"`
}

func (e ReviewRejected) GetType() EventType {
	return ReviewRejectedEvent
}

type ReviewApproved struct {
	BaseEvent

	Iteration int `json:"iteration"`
}

func (e ReviewApproved) GetType() EventType {
	return ReviewApprovedEvent
}
