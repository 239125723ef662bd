package events

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEventData is returned when business event data cannot be parsed or is invalid.
var ErrInvalidEventData = errors.New("invalid event data")

// Well-known business event types. The set is open: rules and wake triggers
// match on payload fields, so new event types need no engine change.
const (
	EventHealthScoreChanged = "health_score_changed"
	EventRenewalApproaching = "renewal_approaching"
	EventUsageDrop          = "usage_drop"
	EventSupportEscalated   = "support_escalated"
	EventContractSigned     = "contract_signed"

	// EventScheduledEvaluation marks the synthetic events of a recurring rule
	// pass. They carry no ID so launch dedup keys off type + customer + day.
	EventScheduledEvaluation = "scheduled_evaluation"
)

// BusinessEvent is an incoming business occurrence evaluated against
// automation rules and event wake triggers. Events arrive over the event bus
// or the queue receiver; the engine never produces them.
type BusinessEvent struct {
	// ID uniquely identifies this event occurrence. Optional: producers that
	// cannot supply one get a deduplication key derived from type + customer.
	ID string `json:"id,omitempty"`

	// Type names what happened, e.g. "health_score_changed".
	Type string `json:"type" validate:"required"`

	// CustomerID scopes the event to a customer account when applicable.
	CustomerID string `json:"customer_id,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`

	// Payload carries event-specific fields; conditions are evaluated against
	// it merged with the customer snapshot.
	Payload map[string]any `json:"payload"`
}

// NewBusinessEvent creates a business event stamped with the current time.
func NewBusinessEvent(eventType, customerID string, payload map[string]any) *BusinessEvent {
	if payload == nil {
		payload = make(map[string]any)
	}

	return &BusinessEvent{
		Type:       eventType,
		CustomerID: customerID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Validate performs basic validation on the event structure.
func (e *BusinessEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEventData)
	}

	return nil
}

// DedupKey identifies the triggering occurrence for launch idempotency:
// the event ID when the producer supplied one, else type + customer.
func (e *BusinessEvent) DedupKey() string {
	if e.ID != "" {
		return e.ID
	}

	return e.Type + ":" + e.CustomerID
}

// Snapshot builds the condition-evaluation context for this event: the
// payload plus the event's own identity fields. Callers merge in the customer
// snapshot when one is available.
func (e *BusinessEvent) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(e.Payload)+2)

	for key, value := range e.Payload {
		snapshot[key] = value
	}

	snapshot["event_type"] = e.Type
	if e.CustomerID != "" {
		snapshot["customer_id"] = e.CustomerID
	}

	return snapshot
}

// GetPayloadString safely extracts a string value from the event payload.
func (e *BusinessEvent) GetPayloadString(key string) (string, bool) {
	value, exists := e.Payload[key]
	if !exists {
		return "", false
	}

	strValue, ok := value.(string)

	return strValue, ok
}

// GetPayloadFloat safely extracts a numeric value from the event payload.
func (e *BusinessEvent) GetPayloadFloat(key string) (float64, bool) {
	value, exists := e.Payload[key]
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
