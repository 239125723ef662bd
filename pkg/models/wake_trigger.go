package models

import (
	"errors"
	"time"
)

// WakeTriggerType discriminates the two kinds of wake triggers.
type WakeTriggerType string

const (
	WakeTriggerDate  WakeTriggerType = "date"
	WakeTriggerEvent WakeTriggerType = "event"
)

// Wake trigger validation errors.
var (
	ErrSnoozeNoTriggers        = errors.New("snooze requires at least one wake trigger")
	ErrTriggerInvalidType      = errors.New("wake trigger type must be date or event")
	ErrTriggerMissingWakeAt    = errors.New("date trigger requires a wake timestamp")
	ErrTriggerMissingCondition = errors.New("event trigger requires at least one condition")
	ErrTriggerInvalidCondition = errors.New("event trigger condition is malformed")
	ErrTriggerInvalidLogic     = errors.New("event trigger with two conditions requires AND or OR")
)

// WakeTrigger ends a snooze period: either an absolute wake timestamp or a
// condition set matched against events arriving while the execution sleeps.
// A snoozed execution wakes on the first of its triggers to fire.
type WakeTrigger struct {
	Type WakeTriggerType `json:"type" validate:"required"`

	// Date trigger.
	WakeAt *time.Time `json:"wake_at,omitempty"`

	// Event trigger: same shape and combination semantics as a rule's
	// condition set.
	Conditions    []EventCondition `json:"conditions,omitempty"`
	LogicOperator LogicOperator    `json:"logic_operator,omitempty"`
}

// Validate checks the trigger's shape. Called at snooze time, before any
// state mutation.
func (t *WakeTrigger) Validate() error {
	switch t.Type {
	case WakeTriggerDate:
		if t.WakeAt == nil || t.WakeAt.IsZero() {
			return ErrTriggerMissingWakeAt
		}
	case WakeTriggerEvent:
		switch len(t.Conditions) {
		case 0:
			return ErrTriggerMissingCondition
		case 1:
		case 2:
			if t.LogicOperator != LogicAnd && t.LogicOperator != LogicOr {
				return ErrTriggerInvalidLogic
			}
		default:
			return ErrTriggerInvalidCondition
		}

		for _, condition := range t.Conditions {
			if condition.Field == "" || !condition.Operator.IsValid() {
				return ErrTriggerInvalidCondition
			}
		}
	default:
		return ErrTriggerInvalidType
	}

	return nil
}

// ValidateTriggerSet validates a whole snooze trigger set, all-or-nothing.
func ValidateTriggerSet(triggers []WakeTrigger) error {
	if len(triggers) == 0 {
		return ErrSnoozeNoTriggers
	}

	for i := range triggers {
		if err := triggers[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// EarliestWakeAt returns the soonest date-trigger timestamp in the set, used
// to populate snoozed_until for display and audit. Nil when the set has no
// date triggers.
func EarliestWakeAt(triggers []WakeTrigger) *time.Time {
	var earliest *time.Time

	for i := range triggers {
		trigger := triggers[i]
		if trigger.Type != WakeTriggerDate || trigger.WakeAt == nil {
			continue
		}

		if earliest == nil || trigger.WakeAt.Before(*earliest) {
			earliest = trigger.WakeAt
		}
	}

	return earliest
}
